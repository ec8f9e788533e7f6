package page

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store 页面数据访问层
type Store struct {
	db *gorm.DB
}

// NewStore 创建 Store 实例
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get 按 ID 查询页面
func (s *Store) Get(ctx context.Context, id string) (*Page, error) {
	var p Page
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("页面不存在")
		}
		return nil, fmt.Errorf("查询页面失败: %w", err)
	}
	return &p, nil
}

// List 按状态过滤的页面列表（status 为空时返回全部），按更新时间倒序
func (s *Store) List(ctx context.Context, status string, limit, offset int) ([]Page, int64, error) {
	query := s.db.WithContext(ctx).Model(&Page{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计页面失败: %w", err)
	}

	var pages []Page
	if err := query.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&pages).Error; err != nil {
		return nil, 0, fmt.Errorf("查询页面列表失败: %w", err)
	}
	return pages, total, nil
}

// GetMeta 查询页面的全部元数据行
func (s *Store) GetMeta(ctx context.Context, pageID string) ([]PageMeta, error) {
	var rows []PageMeta
	if err := s.db.WithContext(ctx).Where("page_id = ?", pageID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询页面元数据失败: %w", err)
	}
	return rows, nil
}

// CreateExemplar 在事务内创建范例页（模板包导入时调用）
func (s *Store) CreateExemplar(ctx context.Context, tx *gorm.DB, title, body, status, authorID string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("页面标题不能为空")
	}
	if status == "" {
		status = "draft"
	}

	p := &Page{
		ID:       uuid.New().String(),
		Title:    title,
		Content:  body,
		Status:   status,
		AuthorID: authorID,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		return "", fmt.Errorf("创建页面失败: %w", err)
	}
	return p.ID, nil
}

// UpdateExemplarBody 在事务内刷新范例页正文（模板包版本更新时调用）
func (s *Store) UpdateExemplarBody(ctx context.Context, tx *gorm.DB, pageID, body string) error {
	result := tx.WithContext(ctx).Model(&Page{}).
		Where("id = ?", pageID).
		Update("content", body)
	if result.Error != nil {
		return fmt.Errorf("更新页面正文失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("页面不存在")
	}
	return nil
}

// DeleteTx 在事务内删除页面及其元数据和分类法关联
func (s *Store) DeleteTx(ctx context.Context, tx *gorm.DB, pageID string) error {
	if err := tx.WithContext(ctx).Where("page_id = ?", pageID).Delete(&PageMeta{}).Error; err != nil {
		return fmt.Errorf("删除页面元数据失败: %w", err)
	}
	if err := tx.WithContext(ctx).Where("page_id = ?", pageID).Delete(&PageTerm{}).Error; err != nil {
		return fmt.Errorf("删除分类法关联失败: %w", err)
	}
	if err := tx.WithContext(ctx).Where("id = ?", pageID).Delete(&Page{}).Error; err != nil {
		return fmt.Errorf("删除页面失败: %w", err)
	}
	return nil
}
