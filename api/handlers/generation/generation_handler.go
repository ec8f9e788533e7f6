package generation

import (
	"errors"
	"strconv"

	"github.com/francis150/tmpltr/internal/common"
	"github.com/francis150/tmpltr/internal/generation"
	"github.com/francis150/tmpltr/internal/middleware"

	"github.com/gin-gonic/gin"
)

// GenerationHandler 页面生成 Handler
type GenerationHandler struct {
	service   *generation.Service
	persister *generation.Persister
}

// NewGenerationHandler 创建 GenerationHandler 实例
func NewGenerationHandler(service *generation.Service, persister *generation.Persister) *GenerationHandler {
	return &GenerationHandler{service: service, persister: persister}
}

// Generate 执行生成流程
// POST /api/templates/:id/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req generation.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}
	req.TemplateID = c.Param("id")

	result, err := h.service.Generate(
		c.Request.Context(),
		c.GetString(middleware.ContextUserID),
		c.GetString(middleware.ContextAuthToken),
		&req,
	)
	if err != nil {
		code := classifyCode(err)
		common.ResponseError(c, code, err.Error())
		return
	}
	common.ResponseCreated(c, result)
}

// SaveGeneration 持久化外部完成的生成结果
// POST /api/generations
func (h *GenerationHandler) SaveGeneration(c *gin.Context) {
	var req generation.PersistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.service.Persist(c.Request.Context(), c.GetString(middleware.ContextUserID), &req)
	if err != nil {
		common.ResponseError(c, classifyCode(err), err.Error())
		return
	}
	common.ResponseCreated(c, result)
}

// classifyCode 把生成流程错误映射到业务状态码
func classifyCode(err error) int {
	var connErr *generation.ConnectionError
	var genErr *generation.GenerationError
	var persistErr *generation.PersistenceError
	switch {
	case errors.Is(err, generation.ErrNotAuthenticated):
		return common.CodeUnauthorized
	case errors.As(err, &connErr), errors.As(err, &genErr), errors.As(err, &persistErr):
		return common.CodeInternalError
	default:
		return common.CodeInvalidRequest
	}
}

// ListGenerations 查询生成记录列表
// GET /api/generations?template_id=xxx&page=1&page_size=20
func (h *GenerationHandler) ListGenerations(c *gin.Context) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)
	if pageSize > 100 {
		pageSize = 100
	}

	records, total, err := h.persister.List(
		c.Request.Context(),
		c.Query("template_id"),
		pageSize,
		(page-1)*pageSize,
	)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseSuccess(c, gin.H{
		"generations": records,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
	})
}

// GetGeneration 查询单条生成记录（含提示词结果）
// GET /api/generations/:id
func (h *GenerationHandler) GetGeneration(c *gin.Context) {
	record, err := h.persister.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, common.CodeNotFound, err.Error())
		return
	}
	common.ResponseSuccess(c, record)
}

// DeleteGeneration 删除生成记录及其克隆页面
// DELETE /api/generations/:id
func (h *GenerationHandler) DeleteGeneration(c *gin.Context) {
	if err := h.persister.Delete(c.Request.Context(), c.Param("id")); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, err.Error())
		return
	}
	common.ResponseSuccessMessage(c, "生成记录删除成功", nil)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
