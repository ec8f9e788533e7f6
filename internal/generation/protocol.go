package generation

import (
	"encoding/json"
)

// 生成服务的事件名
const (
	EventRequest  = "prompt-processing-request"
	EventProgress = "prompt-processing-progress"
	EventSuccess  = "prompt-processing-success"
	EventError    = "prompt-processing-error"
)

// Envelope 连接上的事件帧：事件名 + 原始负载
// 负载延迟到事件名分发后再解码，未知事件直接忽略
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EngineSpec 生成引擎选择
type EngineSpec struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// PromptSettings 单条提示词的生成参数
type PromptSettings struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// JobPrompt 发给生成服务的单条提示词
// Text 是字段替换后的最终文本，OriginalText 保留替换前的原文供服务端记录
type JobPrompt struct {
	ID           string         `json:"id"`
	Placeholder  string         `json:"placeholder"`
	Text         string         `json:"text"`
	OriginalText string         `json:"originalText"`
	Settings     PromptSettings `json:"settings"`
}

// JobTemplate 任务关联的模板摘要
type JobTemplate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// JobMetadata 请求附带的元信息
type JobMetadata struct {
	UserID        string `json:"user_id"`
	Timestamp     int64  `json:"timestamp"`
	PluginVersion string `json:"plugin_version"`
}

// JobRequest 生成任务请求负载
type JobRequest struct {
	JobID            string      `json:"job_id"`
	Engine           EngineSpec  `json:"engine"`
	Token            string      `json:"token"`
	RequestingDomain string      `json:"requesting_domain"`
	Template         JobTemplate `json:"template"`
	PageTitle        string      `json:"page_title"`
	Prompts          []JobPrompt `json:"prompts"`
	Metadata         JobMetadata `json:"metadata"`
}

// ProgressEvent 进度事件负载
// Progress 是 0..1 的小数进度，沿用生成服务的原始刻度
type ProgressEvent struct {
	JobID    string  `json:"job_id"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// PromptOutput 单条提示词的生成产出
type PromptOutput struct {
	PromptID         string `json:"prompt_id"`
	Placeholder      string `json:"placeholder"`
	Content          string `json:"content"`
	TokensUsed       int    `json:"tokens_used"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// SuccessSummary 任务级统计
type SuccessSummary struct {
	TotalTokens      int   `json:"total_tokens"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// SuccessEvent 成功事件负载
type SuccessEvent struct {
	JobID   string         `json:"job_id"`
	Results []PromptOutput `json:"results"`
	Summary SuccessSummary `json:"summary"`
}

// ErrorEvent 失败事件负载
type ErrorEvent struct {
	JobID string `json:"job_id"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
