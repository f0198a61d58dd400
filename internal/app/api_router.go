package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/kapu/bandhub-sync-go/internal/config"
	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/health"
	"github.com/kapu/bandhub-sync-go/internal/server"
)

// newAPIServer: the HTTP server wrapping the router. H2C gives reverse
// proxies multiplexing without TLS termination here.
func newAPIServer(cfg *config.Config, router *gin.Engine) *http.Server {
	handler := http.Handler(router)
	if cfg.Server.EnableH2C {
		handler = server.WrapH2C(router)
	}
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  constants.ServerConfig.ReadTimeout,
		WriteTimeout: constants.ServerConfig.WriteTimeout,
		IdleTimeout:  constants.ServerConfig.IdleTimeout,
	}
}

// newAPIRouter: configures the Gin router serving the operator API.
func newAPIRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger, handler *server.APIHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(server.LoggerMiddleware(ctx, logger,
		"/health",
		"/api/quota/stream*", // long-lived socket, logged on close instead
	))
	router.Use(cors.New(newCORSConfig(cfg)))
	router.Use(server.SecurityHeadersMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/quota/stream"})))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, health.Get())
	})

	router.NoRoute(server.NoRouteAuthHandler(cfg.Server.APIKey))

	registerAPIRoutes(router, cfg.Server.APIKey, handler)

	if cfg.Server.APIKey != "" {
		logger.Info("API key auth enabled")
	} else {
		logger.Warn("API key auth disabled", slog.String("reason", "API_KEY not set"))
	}

	return router
}

func newCORSConfig(cfg *config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigin) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigin
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", server.APIKeyHeader}
	return corsConfig
}

func registerAPIRoutes(router *gin.Engine, apiKey string, handler *server.APIHandler) {
	api := router.Group("/api", server.APIKeyAuthMiddleware(apiKey))

	quotaAPI := api.Group("/quota")
	quotaAPI.GET("/status", handler.GetQuotaStatus)
	quotaAPI.GET("/analytics", handler.GetQuotaAnalytics)
	quotaAPI.POST("/estimate", handler.EstimateQuota)
	quotaAPI.POST("/approve", handler.ApproveQuota)
	quotaAPI.GET("/usage", handler.GetUsageRecords)
	quotaAPI.GET("/alerts", handler.GetAlerts)
	quotaAPI.POST("/alerts/:id/acknowledge", handler.AcknowledgeAlert)
	quotaAPI.POST("/emergency/activate", handler.ActivateEmergency)
	quotaAPI.POST("/emergency/deactivate", handler.DeactivateEmergency)
	quotaAPI.GET("/stream", handler.StreamQuota)

	syncAPI := api.Group("/sync")
	syncAPI.POST("/bands/:id", handler.TriggerBandSync)
	syncAPI.GET("/bands/:id/jobs", handler.ListBandSyncJobs)
	syncAPI.GET("/jobs", handler.ListSyncJobs)
	syncAPI.GET("/jobs/:id", handler.GetSyncJob)
	syncAPI.POST("/cycle", handler.TriggerSyncCycle)
	syncAPI.GET("/never-full-synced", handler.GetSyncBacklog)

	systemAPI := api.Group("/system")
	systemAPI.GET("/stats", handler.GetSystemStats)
	systemAPI.GET("/overview", handler.GetOverview)
}
