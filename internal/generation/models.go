package generation

import (
	"github.com/francis150/tmpltr/internal/common"

	"gorm.io/datatypes"
)

// GeneratedPage 一次生成任务的持久化记录
// PageID 在事务内先以空值插入，克隆出目标页面后再回填，
// 保证记录 ID 可以参与占位符映射的构建
type GeneratedPage struct {
	ID          string            `json:"id" gorm:"primaryKey;type:uuid"`
	TemplateID  string            `json:"templateId" gorm:"type:uuid;not null;index"`
	PageID      string            `json:"pageId" gorm:"type:uuid;index"`
	PageTitle   string            `json:"pageTitle" gorm:"size:255;not null"`
	FieldValues datatypes.JSONMap `json:"fieldValues" gorm:"type:json"`
	Status      string            `json:"status" gorm:"size:20;not null;default:completed"`
	CreatedBy   string            `json:"createdBy" gorm:"size:100;index"`

	common.TimestampModel

	Results []PromptResult `json:"results,omitempty" gorm:"-"`
}

func (GeneratedPage) TableName() string {
	return "generated_pages"
}

// PromptResult 单条提示词的生成结果
// PromptTextUsed 是字段替换之后、真正发给生成服务的文本，用于事后追溯
type PromptResult struct {
	ID               string `json:"id" gorm:"primaryKey;type:uuid"`
	GeneratedPageID  string `json:"generatedPageId" gorm:"type:uuid;not null;index"`
	PromptID         string `json:"promptId" gorm:"type:uuid;not null"`
	Placeholder      string `json:"placeholder" gorm:"size:100;not null"`
	PromptTextUsed   string `json:"promptTextUsed" gorm:"type:text"`
	AIResponse       string `json:"aiResponse" gorm:"type:text"`
	TokensUsed       int    `json:"tokensUsed" gorm:"default:0"`
	ProcessingTimeMs int64  `json:"processingTimeMs" gorm:"default:0"`

	common.TimestampModel
}

func (PromptResult) TableName() string {
	return "prompt_results"
}
