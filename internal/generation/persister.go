package generation

import (
	"context"
	"fmt"
	"regexp"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/google/uuid"
)

// PageDuplicator 克隆范例页的协作方接口（由 page.Duplicator 实现）
type PageDuplicator interface {
	Duplicate(ctx context.Context, tx *gorm.DB, sourcePageID, title, authorID string, placeholders map[string]string) (string, error)
}

// PageDeleter 删除页面的协作方接口（由 page.Store 实现）
type PageDeleter interface {
	DeleteTx(ctx context.Context, tx *gorm.DB, pageID string) error
}

// EmbedRef 生成结果的嵌入引用
// 页面正文里占位符被替换成这种短代码，渲染时再解析回结果内容
func EmbedRef(resultID string) string {
	return fmt.Sprintf("[tmpltr id=%q]", resultID)
}

var embedRefPattern = regexp.MustCompile(`\[tmpltr id="([^"]+)"\]`)

// Persister 生成结果持久化器
// 记录、结果、目标页面在同一个事务内落库，任何一步失败全部回滚
type Persister struct {
	db         *gorm.DB
	duplicator PageDuplicator
	pages      PageDeleter
}

// NewPersister 创建 Persister 实例
func NewPersister(db *gorm.DB, duplicator PageDuplicator, pages PageDeleter) *Persister {
	return &Persister{db: db, duplicator: duplicator, pages: pages}
}

// SaveInput 一次生成任务的落库输入
type SaveInput struct {
	TemplateID   string
	SourcePageID string
	PageTitle    string
	FieldValues  map[string]string
	CreatedBy    string
	Outputs      []PromptOutput
	// PromptTexts 提示词 ID → 替换后实际发送的文本，存入结果行供追溯
	PromptTexts map[string]string
}

// SaveResult 落库结果
type SaveResult struct {
	GeneratedPageID string `json:"generatedPageId"`
	PageID          string `json:"pageId"`
	ResultsCount    int    `json:"resultsCount"`
}

// Save 持久化生成结果并克隆目标页面
// 顺序有讲究：先插生成记录（PageID 暂空）和结果行，拿到结果 ID 才能
// 构建占位符→嵌入引用映射；页面克隆完成后再回填 PageID
func (p *Persister) Save(ctx context.Context, input *SaveInput) (*SaveResult, error) {
	fieldValues := make(datatypes.JSONMap, len(input.FieldValues))
	for k, v := range input.FieldValues {
		fieldValues[k] = v
	}

	var result SaveResult
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := &GeneratedPage{
			ID:          uuid.New().String(),
			TemplateID:  input.TemplateID,
			PageID:      "",
			PageTitle:   input.PageTitle,
			FieldValues: fieldValues,
			Status:      "completed",
			CreatedBy:   input.CreatedBy,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("创建生成记录失败: %w", err)
		}

		placeholders := make(map[string]string, len(input.Outputs))
		for _, output := range input.Outputs {
			row := &PromptResult{
				ID:               uuid.New().String(),
				GeneratedPageID:  record.ID,
				PromptID:         output.PromptID,
				Placeholder:      output.Placeholder,
				PromptTextUsed:   input.PromptTexts[output.PromptID],
				AIResponse:       output.Content,
				TokensUsed:       output.TokensUsed,
				ProcessingTimeMs: output.ProcessingTimeMs,
			}
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("保存提示词结果失败: %w", err)
			}
			placeholders[output.Placeholder] = EmbedRef(row.ID)
		}

		pageID, err := p.duplicator.Duplicate(ctx, tx, input.SourcePageID, input.PageTitle, input.CreatedBy, placeholders)
		if err != nil {
			return err
		}

		if err := tx.Model(&GeneratedPage{}).Where("id = ?", record.ID).
			Update("page_id", pageID).Error; err != nil {
			return fmt.Errorf("回填页面 ID 失败: %w", err)
		}

		result = SaveResult{
			GeneratedPageID: record.ID,
			PageID:          pageID,
			ResultsCount:    len(input.Outputs),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get 查询生成记录及其结果行
func (p *Persister) Get(ctx context.Context, id string) (*GeneratedPage, error) {
	var record GeneratedPage
	if err := p.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("生成记录不存在")
		}
		return nil, fmt.Errorf("查询生成记录失败: %w", err)
	}

	if err := p.db.WithContext(ctx).
		Where("generated_page_id = ?", record.ID).
		Order("created_at ASC").
		Find(&record.Results).Error; err != nil {
		return nil, fmt.Errorf("查询提示词结果失败: %w", err)
	}
	return &record, nil
}

// List 按模板过滤的生成记录列表（templateID 为空时返回全部），按创建时间倒序
func (p *Persister) List(ctx context.Context, templateID string, limit, offset int) ([]GeneratedPage, int64, error) {
	query := p.db.WithContext(ctx).Model(&GeneratedPage{})
	if templateID != "" {
		query = query.Where("template_id = ?", templateID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计生成记录失败: %w", err)
	}

	var records []GeneratedPage
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("查询生成记录列表失败: %w", err)
	}
	return records, total, nil
}

// ResultContent 查询单条结果的生成内容（嵌入引用解析用）
func (p *Persister) ResultContent(ctx context.Context, resultID string) (string, error) {
	var row PromptResult
	if err := p.db.WithContext(ctx).Select("ai_response").
		Where("id = ?", resultID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", gorm.ErrRecordNotFound
		}
		return "", fmt.Errorf("查询提示词结果失败: %w", err)
	}
	return row.AIResponse, nil
}

// Delete 删除生成记录、结果行及克隆出的页面
func (p *Persister) Delete(ctx context.Context, id string) error {
	record, err := p.Get(ctx, id)
	if err != nil {
		return err
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if record.PageID != "" {
			if err := p.pages.DeleteTx(ctx, tx, record.PageID); err != nil {
				return err
			}
		}
		if err := tx.Where("generated_page_id = ?", record.ID).Delete(&PromptResult{}).Error; err != nil {
			return fmt.Errorf("删除提示词结果失败: %w", err)
		}
		if err := tx.Where("id = ?", record.ID).Delete(&GeneratedPage{}).Error; err != nil {
			return fmt.Errorf("删除生成记录失败: %w", err)
		}
		return nil
	})
}
