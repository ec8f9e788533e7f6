package template

import (
	"github.com/francis150/tmpltr/internal/common"
)

// TemplateStatus 模板生命周期状态
type TemplateStatus string

const (
	StatusDraft     TemplateStatus = "draft"     // 草稿
	StatusPublished TemplateStatus = "published" // 已发布
)

// Template 页面生成模板
// 聚合一组输入字段和提示词，并关联一个模板页（范例内容项）
type Template struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string `json:"name" gorm:"size:255;not null"`
	Description string `json:"description" gorm:"type:text"`

	// 模板页（生成时克隆的范例页面），发布前必须配置
	PageID *string `json:"pageId" gorm:"type:uuid;index"`

	Status TemplateStatus `json:"status" gorm:"size:20;not null;default:draft;index"`

	// 导入谱系：从打包模板导入时记录来源标识与版本，软删除时清空以便重新导入
	ImportID      *string `json:"importId,omitempty" gorm:"size:100;index"`
	ImportVersion string  `json:"importVersion,omitempty" gorm:"size:50"`

	CreatedBy string `json:"createdBy" gorm:"size:100"`

	common.TimestampModel
	common.SoftDeleteModel

	Fields  []Field  `json:"fields,omitempty" gorm:"-"`
	Prompts []Prompt `json:"prompts,omitempty" gorm:"-"`
}

func (Template) TableName() string {
	return "templates"
}

// CanGenerate 是否满足生成条件（已发布且配置了模板页）
func (t *Template) CanGenerate() bool {
	return t.Status == StatusPublished && t.PageID != nil && *t.PageID != ""
}

// Field 模板输入字段
// Identifier 是机器安全的标识符（@前缀），生成前代入提示词文本
type Field struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	TemplateID string `json:"templateId" gorm:"type:uuid;not null;index"`

	Identifier   string `json:"identifier" gorm:"size:100;not null"`
	Label        string `json:"label" gorm:"size:255;not null"`
	DefaultValue string `json:"defaultValue" gorm:"type:text"`
	Required     bool   `json:"required" gorm:"default:false"`

	// 展示顺序，保存时按提交顺序重新编号
	FieldOrder int `json:"fieldOrder" gorm:"default:0;index"`

	common.TimestampModel
}

func (Field) TableName() string {
	return "template_fields"
}

// Prompt 模板提示词
// Placeholder 标记生成结果在模板页中的嵌入位置
type Prompt struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	TemplateID string `json:"templateId" gorm:"type:uuid;not null;index"`

	Title       string `json:"title" gorm:"size:255;not null"`
	Guide       string `json:"guide" gorm:"type:text"` // 编写指引，不发送给生成服务
	Placeholder string `json:"placeholder" gorm:"size:100;not null;index"`
	PromptText  string `json:"promptText" gorm:"type:text;not null"`

	MaxTokens   int     `json:"maxTokens" gorm:"default:1000"`
	Temperature float64 `json:"temperature" gorm:"type:decimal(3,2);default:0.7"`

	PromptOrder int `json:"promptOrder" gorm:"default:0;index"`

	common.TimestampModel
}

func (Prompt) TableName() string {
	return "template_prompts"
}
