package template

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/francis150/tmpltr/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service 模板管理服务
// 独占模板、字段、提示词三张表的读写
type Service struct {
	db *gorm.DB
}

// NewService 创建 Service 实例
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ============================================================================
// 模板 CRUD
// ============================================================================

// CreateRequest 创建模板请求
type CreateRequest struct {
	Name        string
	Description string
	Status      string
	PageID      *string
	CreatedBy   string
}

// Create 创建模板
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Template, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("模板名称不能为空")
	}

	tmpl := &Template{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		PageID:      req.PageID,
		Status:      coerceStatus(req.Status),
		CreatedBy:   req.CreatedBy,
	}

	if err := s.db.WithContext(ctx).Create(tmpl).Error; err != nil {
		return nil, fmt.Errorf("创建模板失败: %w", err)
	}

	return tmpl, nil
}

// Get 查询单个模板（不含已软删除）
func (s *Service) Get(ctx context.Context, id string) (*Template, error) {
	var tmpl Template
	if err := s.db.WithContext(ctx).
		Scopes(common.NotDeleted()).
		Where("id = ?", id).
		First(&tmpl).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("模板不存在")
		}
		return nil, fmt.Errorf("查询模板失败: %w", err)
	}
	return &tmpl, nil
}

// GetWithChildren 查询模板并加载字段和提示词
func (s *Service) GetWithChildren(ctx context.Context, id string) (*Template, error) {
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields, err := s.GetFields(ctx, id)
	if err != nil {
		return nil, err
	}
	prompts, err := s.GetPrompts(ctx, id)
	if err != nil {
		return nil, err
	}

	tmpl.Fields = fields
	tmpl.Prompts = prompts
	return tmpl, nil
}

// List 查询全部模板（按创建时间倒序，不含已软删除）
func (s *Service) List(ctx context.Context) ([]*Template, error) {
	var templates []*Template
	if err := s.db.WithContext(ctx).
		Scopes(common.NotDeleted()).
		Order("created_at DESC").
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("查询模板列表失败: %w", err)
	}
	return templates, nil
}

// FindByImportID 按导入来源标识查找模板
func (s *Service) FindByImportID(ctx context.Context, importID string) (*Template, error) {
	var tmpl Template
	err := s.db.WithContext(ctx).
		Scopes(common.NotDeleted()).
		Where("import_id = ?", importID).
		First(&tmpl).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("按导入标识查询模板失败: %w", err)
	}
	return &tmpl, nil
}

// SaveRequest 保存模板全量状态请求
// Fields/Prompts 为 nil 时保持原有集合不变；非 nil 时执行调和式更新
type SaveRequest struct {
	ID          string
	Name        string
	Description *string
	Status      string
	PageID      *string
	Fields      []FieldInput
	Prompts     []PromptInput
}

// Save 保存模板（元数据 + 字段 + 提示词，单事务）
func (s *Service) Save(ctx context.Context, req *SaveRequest) (*Template, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("模板名称不能为空")
	}

	tmpl, err := s.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"name":    strings.TrimSpace(req.Name),
			"status":  coerceStatus(req.Status),
			"page_id": req.PageID,
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}

		if err := tx.Model(&Template{}).Where("id = ?", tmpl.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("保存模板元数据失败: %w", err)
		}

		if req.Fields != nil {
			if err := saveFieldsTx(tx, tmpl.ID, req.Fields); err != nil {
				return err
			}
		}
		if req.Prompts != nil {
			if err := savePromptsTx(tx, tmpl.ID, req.Prompts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, req.ID)
}

// SoftDelete 软删除模板
// 同时清空导入谱系，使同一模板包之后可以重新导入
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&Template{}).
		Where("id = ?", tmpl.ID).
		Updates(map[string]any{
			"deleted_at": &now,
			"import_id":  nil,
		}).Error; err != nil {
		return fmt.Errorf("删除模板失败: %w", err)
	}
	return nil
}

// Duplicate 复制模板（含字段和提示词，单事务）
// 副本始终为草稿状态，不继承导入谱系
func (s *Service) Duplicate(ctx context.Context, id, createdBy string) (*Template, error) {
	src, err := s.GetWithChildren(ctx, id)
	if err != nil {
		return nil, err
	}

	dup := &Template{
		ID:          uuid.New().String(),
		Name:        src.Name + " (Copy)",
		Description: src.Description,
		Status:      StatusDraft,
		CreatedBy:   createdBy,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dup).Error; err != nil {
			return fmt.Errorf("创建模板副本失败: %w", err)
		}

		fields := make([]FieldInput, 0, len(src.Fields))
		for _, f := range src.Fields {
			fields = append(fields, FieldInput{
				Identifier:   f.Identifier,
				Label:        f.Label,
				DefaultValue: f.DefaultValue,
				Required:     f.Required,
			})
		}
		if err := saveFieldsTx(tx, dup.ID, fields); err != nil {
			return fmt.Errorf("复制模板字段失败: %w", err)
		}

		prompts := make([]PromptInput, 0, len(src.Prompts))
		for _, p := range src.Prompts {
			prompts = append(prompts, PromptInput{
				Title:       p.Title,
				Guide:       p.Guide,
				Placeholder: p.Placeholder,
				Text:        p.PromptText,
				MaxTokens:   p.MaxTokens,
				Temperature: p.Temperature,
			})
		}
		if err := savePromptsTx(tx, dup.ID, prompts); err != nil {
			return fmt.Errorf("复制模板提示词失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return dup, nil
}

// ============================================================================
// 字段 / 提示词集合（调和式更新）
// ============================================================================

// FieldInput 字段提交数据
// ID 非空表示更新已有行（保持行标识不变），为空表示新增
type FieldInput struct {
	ID           string `json:"id"`
	Identifier   string `json:"identifier"`
	Label        string `json:"label"`
	DefaultValue string `json:"default_value"`
	Required     bool   `json:"required"`
}

// PromptInput 提示词提交数据
type PromptInput struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Guide       string  `json:"guide"`
	Placeholder string  `json:"placeholder"`
	Text        string  `json:"text"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// GetFields 查询模板字段（按展示顺序）
func (s *Service) GetFields(ctx context.Context, templateID string) ([]Field, error) {
	var fields []Field
	if err := s.db.WithContext(ctx).
		Scopes(common.ByTemplate(templateID)).
		Order("field_order ASC").
		Find(&fields).Error; err != nil {
		return nil, fmt.Errorf("查询模板字段失败: %w", err)
	}
	return fields, nil
}

// GetPrompts 查询模板提示词（按展示顺序）
func (s *Service) GetPrompts(ctx context.Context, templateID string) ([]Prompt, error) {
	var prompts []Prompt
	if err := s.db.WithContext(ctx).
		Scopes(common.ByTemplate(templateID)).
		Order("prompt_order ASC").
		Find(&prompts).Error; err != nil {
		return nil, fmt.Errorf("查询模板提示词失败: %w", err)
	}
	return prompts, nil
}

// SaveFields 调和式保存字段集合
// 调用方提交期望的完整集合：带 ID 的原地更新，不带 ID 的新增，
// 未出现在提交集合中的已有行删除；顺序按提交位置重新编号
func (s *Service) SaveFields(ctx context.Context, templateID string, inputs []FieldInput) error {
	if _, err := s.Get(ctx, templateID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveFieldsTx(tx, templateID, inputs)
	})
}

// SavePrompts 调和式保存提示词集合，语义同 SaveFields
func (s *Service) SavePrompts(ctx context.Context, templateID string, inputs []PromptInput) error {
	if _, err := s.Get(ctx, templateID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return savePromptsTx(tx, templateID, inputs)
	})
}

func saveFieldsTx(tx *gorm.DB, templateID string, inputs []FieldInput) error {
	// 标识符唯一性检查（忽略大小写）
	seen := make(map[string]struct{}, len(inputs))
	for i := range inputs {
		identifier := NormalizeIdentifier(inputs[i].Identifier)
		if identifier == "" {
			return fmt.Errorf("第 %d 个字段缺少标识符", i+1)
		}
		key := strings.ToLower(identifier)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("字段标识符 %s 重复", identifier)
		}
		seen[key] = struct{}{}
		inputs[i].Identifier = identifier
	}

	kept := make([]string, 0, len(inputs))
	for i, in := range inputs {
		if in.ID != "" {
			updates := map[string]any{
				"identifier":    in.Identifier,
				"label":         in.Label,
				"default_value": in.DefaultValue,
				"required":      in.Required,
				"field_order":   i,
			}
			if err := tx.Model(&Field{}).
				Where("id = ? AND template_id = ?", in.ID, templateID).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("更新字段失败: %w", err)
			}
			kept = append(kept, in.ID)
		} else {
			field := &Field{
				ID:           uuid.New().String(),
				TemplateID:   templateID,
				Identifier:   in.Identifier,
				Label:        in.Label,
				DefaultValue: in.DefaultValue,
				Required:     in.Required,
				FieldOrder:   i,
			}
			if err := tx.Create(field).Error; err != nil {
				return fmt.Errorf("新增字段失败: %w", err)
			}
			kept = append(kept, field.ID)
		}
	}

	// 删除未出现在提交集合中的已有行
	query := tx.Where("template_id = ?", templateID)
	if len(kept) > 0 {
		query = query.Where("id NOT IN ?", kept)
	}
	if err := query.Delete(&Field{}).Error; err != nil {
		return fmt.Errorf("清理多余字段失败: %w", err)
	}
	return nil
}

func savePromptsTx(tx *gorm.DB, templateID string, inputs []PromptInput) error {
	// 占位符在模板内唯一（忽略大小写），重复会让结果映射互相覆盖
	seen := make(map[string]struct{}, len(inputs))
	for i := range inputs {
		placeholder := strings.TrimSpace(inputs[i].Placeholder)
		if placeholder == "" {
			continue
		}
		key := strings.ToLower(placeholder)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("提示词占位符 %s 重复", placeholder)
		}
		seen[key] = struct{}{}
		inputs[i].Placeholder = placeholder
	}

	kept := make([]string, 0, len(inputs))
	for i, in := range inputs {
		maxTokens := in.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 1000
		}
		temperature := in.Temperature
		if temperature <= 0 {
			temperature = 0.7
		}

		if in.ID != "" {
			updates := map[string]any{
				"title":        in.Title,
				"guide":        in.Guide,
				"placeholder":  in.Placeholder,
				"prompt_text":  in.Text,
				"max_tokens":   maxTokens,
				"temperature":  temperature,
				"prompt_order": i,
			}
			if err := tx.Model(&Prompt{}).
				Where("id = ? AND template_id = ?", in.ID, templateID).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("更新提示词失败: %w", err)
			}
			kept = append(kept, in.ID)
		} else {
			prompt := &Prompt{
				ID:          uuid.New().String(),
				TemplateID:  templateID,
				Title:       in.Title,
				Guide:       in.Guide,
				Placeholder: in.Placeholder,
				PromptText:  in.Text,
				MaxTokens:   maxTokens,
				Temperature: temperature,
				PromptOrder: i,
			}
			if err := tx.Create(prompt).Error; err != nil {
				return fmt.Errorf("新增提示词失败: %w", err)
			}
			kept = append(kept, prompt.ID)
		}
	}

	query := tx.Where("template_id = ?", templateID)
	if len(kept) > 0 {
		query = query.Where("id NOT IN ?", kept)
	}
	if err := query.Delete(&Prompt{}).Error; err != nil {
		return fmt.Errorf("清理多余提示词失败: %w", err)
	}
	return nil
}

// NormalizeIdentifier 规范化字段标识符：去除首尾空白并补全 @ 前缀
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	if !strings.HasPrefix(identifier, "@") {
		identifier = "@" + identifier
	}
	return identifier
}

// coerceStatus 非法状态静默回退为草稿
// 沿用既有行为：集合外的状态值不报错，避免客户端小幅漂移导致保存失败
func coerceStatus(status string) TemplateStatus {
	switch TemplateStatus(status) {
	case StatusDraft, StatusPublished:
		return TemplateStatus(status)
	default:
		return StatusDraft
	}
}
