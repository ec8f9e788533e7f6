package templates

import (
	"io"
	"strings"

	"github.com/francis150/tmpltr/internal/common"
	"github.com/francis150/tmpltr/internal/middleware"
	"github.com/francis150/tmpltr/internal/template"

	"github.com/gin-gonic/gin"
)

// TemplateHandler 模板管理 Handler
type TemplateHandler struct {
	service  *template.Service
	importer *template.Importer
}

// NewTemplateHandler 创建 TemplateHandler 实例
func NewTemplateHandler(service *template.Service, importer *template.Importer) *TemplateHandler {
	return &TemplateHandler{service: service, importer: importer}
}

// ListTemplates 查询模板列表
// GET /api/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.service.List(c.Request.Context())
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseSuccess(c, gin.H{
		"templates": templates,
		"total":     len(templates),
	})
}

// GetTemplate 查询单个模板（含字段和提示词）
// GET /api/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tmpl, err := h.service.GetWithChildren(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, common.CodeNotFound, err.Error())
		return
	}
	common.ResponseSuccess(c, tmpl)
}

// createTemplateRequest 创建模板请求
type createTemplateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	PageID      *string `json:"pageId"`
}

// CreateTemplate 创建模板
// POST /api/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	tmpl, err := h.service.Create(c.Request.Context(), &template.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		PageID:      req.PageID,
		CreatedBy:   c.GetString(middleware.ContextUserID),
	})
	if err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, err.Error())
		return
	}
	common.ResponseCreated(c, tmpl)
}

// saveTemplateRequest 保存模板全量状态请求
// fields/prompts 缺省（null）表示保持原有集合不变
type saveTemplateRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Description *string                `json:"description"`
	Status      string                 `json:"status"`
	PageID      *string                `json:"pageId"`
	Fields      []template.FieldInput  `json:"fields"`
	Prompts     []template.PromptInput `json:"prompts"`
}

// SaveTemplate 保存模板（元数据 + 字段 + 提示词）
// PUT /api/templates/:id
func (h *TemplateHandler) SaveTemplate(c *gin.Context) {
	var req saveTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	tmpl, err := h.service.Save(c.Request.Context(), &template.SaveRequest{
		ID:          c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		PageID:      req.PageID,
		Fields:      req.Fields,
		Prompts:     req.Prompts,
	})
	if err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, err.Error())
		return
	}
	common.ResponseSuccess(c, tmpl)
}

// DeleteTemplate 软删除模板
// DELETE /api/templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.service.SoftDelete(c.Request.Context(), c.Param("id")); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, err.Error())
		return
	}
	common.ResponseSuccessMessage(c, "模板删除成功", nil)
}

// DuplicateTemplate 复制模板
// POST /api/templates/:id/duplicate
func (h *TemplateHandler) DuplicateTemplate(c *gin.Context) {
	tmpl, err := h.service.Duplicate(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, err.Error())
		return
	}
	common.ResponseCreated(c, tmpl)
}

// ImportTemplate 从 JSON 模板包导入模板
// POST /api/templates/import（请求体为模板包 JSON 原文）
func (h *TemplateHandler) ImportTemplate(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil || len(data) == 0 {
		common.ResponseError(c, common.CodeInvalidRequest, "请求体为空或读取失败")
		return
	}

	tmpl, err := h.importer.ImportFromJSON(c.Request.Context(), data, c.GetString(middleware.ContextUserID))
	if err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, err.Error())
		return
	}
	common.ResponseCreated(c, tmpl)
}

// CheckTemplateUpdate 查询已导入模板是否有新版本
// GET /api/templates/:id/update-check
func (h *TemplateHandler) CheckTemplateUpdate(c *gin.Context) {
	tmpl, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, common.CodeNotFound, err.Error())
		return
	}
	if tmpl.ImportID == nil || strings.TrimSpace(*tmpl.ImportID) == "" {
		common.ResponseSuccess(c, gin.H{"available": false})
		return
	}

	info, err := h.importer.AvailableUpdate(c.Request.Context(), *tmpl.ImportID)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	if info == nil {
		common.ResponseSuccess(c, gin.H{"available": false})
		return
	}
	common.ResponseSuccess(c, gin.H{"available": true, "update": info})
}

// updateTemplateRequest 应用模板包更新请求
type updateTemplateRequest struct {
	UpdateLayoutPage bool `json:"updateLayoutPage"`
}

// ApplyTemplateUpdate 把已导入模板刷新到模板包的最新版本
// POST /api/templates/:id/update
func (h *TemplateHandler) ApplyTemplateUpdate(c *gin.Context) {
	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	if err := h.importer.UpdateImported(c.Request.Context(), c.Param("id"), req.UpdateLayoutPage); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, err.Error())
		return
	}
	common.ResponseSuccessMessage(c, "模板更新成功", nil)
}
