package api

import (
	generationHandlers "github.com/francis150/tmpltr/api/handlers/generation"
	pageHandlers "github.com/francis150/tmpltr/api/handlers/pages"
	templateHandlers "github.com/francis150/tmpltr/api/handlers/templates"
	"github.com/francis150/tmpltr/internal/config"
	"github.com/francis150/tmpltr/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// registerRoutes 注册全部路由
func registerRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	th *templateHandlers.TemplateHandler,
	gh *generationHandlers.GenerationHandler,
	ph *pageHandlers.PageHandler,
) {
	// 系统端点
	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 业务端点统一要求认证
	apiGroup := router.Group("/api", middleware.Auth(cfg.Auth.JWTSecret))

	// 模板管理
	apiGroup.GET("/templates", th.ListTemplates)
	apiGroup.POST("/templates", th.CreateTemplate)
	apiGroup.POST("/templates/import", th.ImportTemplate)
	apiGroup.GET("/templates/:id", th.GetTemplate)
	apiGroup.PUT("/templates/:id", th.SaveTemplate)
	apiGroup.DELETE("/templates/:id", th.DeleteTemplate)
	apiGroup.POST("/templates/:id/duplicate", th.DuplicateTemplate)
	apiGroup.GET("/templates/:id/update-check", th.CheckTemplateUpdate)
	apiGroup.POST("/templates/:id/update", th.ApplyTemplateUpdate)

	// 页面生成
	apiGroup.POST("/templates/:id/generate", gh.Generate)
	apiGroup.POST("/generations", gh.SaveGeneration)
	apiGroup.GET("/generations", gh.ListGenerations)
	apiGroup.GET("/generations/:id", gh.GetGeneration)
	apiGroup.DELETE("/generations/:id", gh.DeleteGeneration)

	// 页面查询与预览
	apiGroup.GET("/pages", ph.ListPages)
	apiGroup.GET("/pages/:id", ph.GetPage)
	apiGroup.GET("/pages/:id/preview", ph.PreviewPage)
}
