package api

import (
	"os"
	"strings"

	generationHandlers "github.com/francis150/tmpltr/api/handlers/generation"
	pageHandlers "github.com/francis150/tmpltr/api/handlers/pages"
	templateHandlers "github.com/francis150/tmpltr/api/handlers/templates"
	"github.com/francis150/tmpltr/internal/config"
	"github.com/francis150/tmpltr/internal/generation"
	"github.com/francis150/tmpltr/internal/infra"
	"github.com/francis150/tmpltr/internal/logger"
	"github.com/francis150/tmpltr/internal/metrics"
	"github.com/francis150/tmpltr/internal/middleware"
	"github.com/francis150/tmpltr/internal/page"
	"github.com/francis150/tmpltr/internal/template"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter 组装全部服务并返回 Gin 路由
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		RequestLogger(),
		CORS(),
		metrics.GinMiddleware(),
	)

	// Redis 可选：不可用时渲染缓存失效降级为空操作
	var renderCache page.RenderCache = page.NopRenderCache{}
	redisClient, err := infra.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis 不可用，渲染缓存失效降级为空操作", zap.Error(err))
	} else if redisClient != nil {
		renderCache = page.NewRedisRenderCache(redisClient)
	}

	// 页面层
	pageStore := page.NewStore(db)
	duplicator := page.NewDuplicator(nil, renderCache)

	// 模板层
	templateService := template.NewService(db)
	importer := template.NewImporter(db, templateService, pageStore, starterTemplatesDir())

	// 生成层
	client := generation.NewClient(&cfg.Generator, generation.NewLogReporter())
	persister := generation.NewPersister(db, duplicator, pageStore)
	generationService := generation.NewService(templateService, client, persister, &cfg.Generator, cfg.Site.URL)

	registerRoutes(router, cfg, db,
		templateHandlers.NewTemplateHandler(templateService, importer),
		generationHandlers.NewGenerationHandler(generationService, persister),
		pageHandlers.NewPageHandler(pageStore, generationService),
	)
	return router
}

// starterTemplatesDir 内置模板包目录
func starterTemplatesDir() string {
	if dir := strings.TrimSpace(os.Getenv("STARTER_TEMPLATES_DIR")); dir != "" {
		return dir
	}
	return "./starter-templates"
}
