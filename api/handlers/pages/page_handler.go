package pages

import (
	"strconv"

	"github.com/francis150/tmpltr/internal/common"
	"github.com/francis150/tmpltr/internal/generation"
	"github.com/francis150/tmpltr/internal/page"

	"github.com/gin-gonic/gin"
)

// PageHandler 页面查询 Handler
type PageHandler struct {
	store       *page.Store
	generations *generation.Service
}

// NewPageHandler 创建 PageHandler 实例
func NewPageHandler(store *page.Store, generations *generation.Service) *PageHandler {
	return &PageHandler{store: store, generations: generations}
}

// ListPages 查询页面列表
// GET /api/pages?status=publish&page=1&page_size=20
func (h *PageHandler) ListPages(c *gin.Context) {
	pageNum := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)
	if pageSize > 100 {
		pageSize = 100
	}

	pages, total, err := h.store.List(c.Request.Context(), c.Query("status"), pageSize, (pageNum-1)*pageSize)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseSuccess(c, gin.H{
		"pages":     pages,
		"total":     total,
		"page":      pageNum,
		"page_size": pageSize,
	})
}

// GetPage 查询单个页面
// GET /api/pages/:id
func (h *PageHandler) GetPage(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, common.CodeNotFound, err.Error())
		return
	}
	common.ResponseSuccess(c, p)
}

// PreviewPage 渲染预览：正文中的嵌入引用解析为生成内容
// GET /api/pages/:id/preview
func (h *PageHandler) PreviewPage(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseError(c, common.CodeNotFound, err.Error())
		return
	}

	content, err := h.generations.ResolveEmbeds(c.Request.Context(), p.Content)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseSuccess(c, gin.H{
		"id":      p.ID,
		"title":   p.Title,
		"content": content,
	})
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
