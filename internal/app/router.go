package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/lms-announcement-api/api/swagger"
	"github.com/noah-isme/lms-announcement-api/internal/handler"
	"github.com/noah-isme/lms-announcement-api/internal/middleware"
	"github.com/noah-isme/lms-announcement-api/internal/models"
	"github.com/noah-isme/lms-announcement-api/pkg/config"
	"github.com/noah-isme/lms-announcement-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-announcement-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-announcement-api/pkg/middleware/requestid"
)

// Router builds the gin engine with every announcement route mounted.
func (a *App) Router() *gin.Engine {
	if a.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(a.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Metrics))
	r.Use(middleware.WithResponseMeta())

	ops := handler.NewMetricsHandler(a.Metrics, map[string]handler.Pinger{
		"postgres": a.DB,
		"redis":    handler.PingFunc(a.CacheRepo.Ping),
	})
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	if a.Metrics != nil {
		r.GET("/metrics", ops.Prometheus)
	}
	if a.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	announcements := handler.NewAnnouncementHandler(a.Announcement)
	delivery := handler.NewDeliveryHandler(a.Delivery)
	audit := func(action string) gin.HandlerFunc {
		return middleware.Audit(a.Users, a.Logger, action, models.AuditResourceAnnouncement)
	}

	api := r.Group(a.Config.APIPrefix)
	api.GET("/announcements/public", announcements.Public)

	feeds := api.Group("/announcements", middleware.JWT(a.Tokens))
	feeds.GET("/feed", announcements.Feed)
	feeds.GET("/banners", announcements.Banners)
	feeds.GET("/tags", announcements.ByTags)

	admin := api.Group("/admin/announcements", middleware.JWT(a.Tokens), middleware.RequireRoles(models.RoleAdmin))
	admin.GET("", announcements.List)
	admin.GET("/stats", announcements.Stats)
	admin.GET("/export", announcements.Export)
	admin.POST("/delivery/trigger", audit(models.AuditActionAnnouncementDeliver), delivery.Trigger)
	admin.GET("/:id", announcements.Get)
	admin.POST("", audit(models.AuditActionAnnouncementCreate), announcements.Create)
	admin.PUT("/:id", audit(models.AuditActionAnnouncementUpdate), announcements.Update)
	admin.PATCH("/:id/toggle", audit(models.AuditActionAnnouncementToggle), announcements.Toggle)
	admin.DELETE("/:id", audit(models.AuditActionAnnouncementDelete), announcements.Delete)

	return r
}
