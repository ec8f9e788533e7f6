package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/francis150/tmpltr/internal/config"
	"github.com/francis150/tmpltr/internal/logger"
	"github.com/francis150/tmpltr/internal/metrics"
	"github.com/francis150/tmpltr/internal/template"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service 生成流程编排
// 校验 → 字段替换 → 提交任务并等待 → 结果落库，一步失败整次失败
type Service struct {
	templates *template.Service
	client    *Client
	persister *Persister
	cfg       *config.GeneratorConfig
	siteURL   string
}

// NewService 创建 Service 实例
func NewService(templates *template.Service, client *Client, persister *Persister, cfg *config.GeneratorConfig, siteURL string) *Service {
	return &Service{
		templates: templates,
		client:    client,
		persister: persister,
		cfg:       cfg,
		siteURL:   siteURL,
	}
}

// GenerateRequest 一次生成请求
type GenerateRequest struct {
	TemplateID  string            `json:"templateId" binding:"required"`
	PageTitle   string            `json:"pageTitle" binding:"required"`
	FieldValues map[string]string `json:"fieldValues"`
}

// Generate 执行完整生成流程
// token 原样透传给生成服务做鉴权，本服务不解析其内容
func (s *Service) Generate(ctx context.Context, userID, token string, req *GenerateRequest) (*SaveResult, error) {
	start := time.Now()
	result, err := s.generate(ctx, userID, token, req)

	outcome := classifyOutcome(err)
	metrics.GenerationJobsTotal.WithLabelValues(outcome).Inc()
	metrics.GenerationJobDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.WithContext(ctx).Warn("生成任务失败",
			zap.String("templateId", req.TemplateID),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return nil, err
	}
	logger.WithContext(ctx).Info("生成任务完成",
		zap.String("templateId", req.TemplateID),
		zap.String("pageId", result.PageID),
		zap.Int("resultsCount", result.ResultsCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (s *Service) generate(ctx context.Context, userID, token string, req *GenerateRequest) (*SaveResult, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	tmpl, err := s.templates.GetWithChildren(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if !tmpl.CanGenerate() {
		return nil, fmt.Errorf("模板尚未发布或未配置模板页")
	}
	if len(tmpl.Prompts) == 0 {
		return nil, ErrNoPrompts
	}

	fieldValues, err := resolveFieldValues(tmpl.Fields, req.FieldValues)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	prompts := make([]JobPrompt, len(tmpl.Prompts))
	promptTexts := make(map[string]string, len(tmpl.Prompts))
	for i, p := range tmpl.Prompts {
		text := Substitute(p.PromptText, fieldValues)
		promptTexts[p.ID] = text
		prompts[i] = JobPrompt{
			ID:           p.ID,
			Placeholder:  p.Placeholder,
			Text:         text,
			OriginalText: p.PromptText,
			Settings: PromptSettings{
				MaxTokens:   p.MaxTokens,
				Temperature: p.Temperature,
			},
		}
	}

	jobReq := &JobRequest{
		JobID:            jobID,
		Engine:           EngineSpec{Provider: s.cfg.Provider, Model: s.cfg.Model},
		Token:            token,
		RequestingDomain: s.siteURL,
		Template:         JobTemplate{ID: tmpl.ID, Name: tmpl.Name},
		PageTitle:        req.PageTitle,
		Prompts:          prompts,
		Metadata: JobMetadata{
			UserID:        userID,
			Timestamp:     time.Now().Unix(),
			PluginVersion: s.cfg.PluginVersion,
		},
	}

	outputs, summary, err := s.client.Run(ctx, jobReq)
	if err != nil {
		return nil, err
	}
	if summary != nil {
		logger.WithContext(ctx).Debug("生成服务统计",
			zap.String("jobId", jobID),
			zap.Int("totalTokens", summary.TotalTokens),
			zap.Int64("processingTimeMs", summary.ProcessingTimeMs),
		)
	}

	saved, err := s.persister.Save(ctx, &SaveInput{
		TemplateID:   tmpl.ID,
		SourcePageID: *tmpl.PageID,
		PageTitle:    req.PageTitle,
		FieldValues:  fieldValues,
		CreatedBy:    userID,
		Outputs:      outputs,
		PromptTexts:  promptTexts,
	})
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return saved, nil
}

// PersistRequest 直接落库的生成结果（生成流程已在外部完成）
type PersistRequest struct {
	TemplateID  string            `json:"templateId" binding:"required"`
	PageTitle   string            `json:"pageTitle" binding:"required"`
	FieldValues map[string]string `json:"fieldValues"`
	Results     []PromptOutput    `json:"results" binding:"required"`
}

// Persist 跳过任务提交，直接持久化已有结果并克隆目标页面
func (s *Service) Persist(ctx context.Context, userID string, req *PersistRequest) (*SaveResult, error) {
	tmpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if !tmpl.CanGenerate() {
		return nil, fmt.Errorf("模板尚未发布或未配置模板页")
	}

	saved, err := s.persister.Save(ctx, &SaveInput{
		TemplateID:   tmpl.ID,
		SourcePageID: *tmpl.PageID,
		PageTitle:    req.PageTitle,
		FieldValues:  req.FieldValues,
		CreatedBy:    userID,
		Outputs:      req.Results,
	})
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return saved, nil
}

// resolveFieldValues 合并用户输入与字段默认值
// 空值回退到默认值；必填字段既没有输入也没有默认值时拒绝
func resolveFieldValues(fields []template.Field, input map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		value := input[f.Identifier]
		if value == "" {
			value = f.DefaultValue
		}
		if value == "" && f.Required {
			return nil, fmt.Errorf("缺少必填字段 %s", f.Label)
		}
		values[f.Identifier] = value
	}
	return values, nil
}

// ResolveEmbeds 把正文中的嵌入引用替换为对应的生成内容
// 引用指向的结果不存在时替换为空串，不中断渲染
func (s *Service) ResolveEmbeds(ctx context.Context, body string) (string, error) {
	var resolveErr error
	resolved := embedRefPattern.ReplaceAllStringFunc(body, func(match string) string {
		if resolveErr != nil {
			return match
		}
		sub := embedRefPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		content, err := s.persister.ResultContent(ctx, sub[1])
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ""
			}
			resolveErr = err
			return match
		}
		return content
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return resolved, nil
}
