package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/api/handlers"
	"github.com/troikatech/agent-console/pkg/env"
	"github.com/troikatech/agent-console/pkg/middleware"
	"github.com/troikatech/agent-console/pkg/otel"
)

const maxRequestBytes = 8 << 20

// NewRouter wires every console route. redisClient may be nil.
func NewRouter(cfg *env.Config, h *handlers.Handler, redisClient *redis.Client, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTELEnabled {
		router.Use(otel.GinMiddleware())
	}
	router.Use(middleware.TraceMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(maxRequestBytes))
	router.Use(middleware.RequestMetrics())
	router.Use(middleware.RequestLogger(logger))

	corsConfig := cors.DefaultConfig()
	if cfg.CORSAllowedOrigins == "" || cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.CORSAllowedOrigins}
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.IdempotencyKeyHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", h.GetMetrics)
	router.GET("/metrics/prometheus", h.GetPrometheusMetrics)

	// The platform signs webhooks itself, so the webhook sits outside bearer auth.
	router.POST("/api/webhook", h.Webhook)

	api := router.Group("/api")
	if cfg.JWTSecret != "" {
		api.Use(middleware.AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))
	}
	api.Use(middleware.NewRateLimiter(redisClient, cfg.APIRateLimitRPM, logger).Middleware())
	api.Use(middleware.IdempotencyMiddleware(redisClient, logger))
	{
		api.POST("/create-agent", h.CreateAgent)
		api.POST("/update-agent", h.UpdateAgent)
		api.GET("/get-agent", h.GetAgent)
		api.GET("/list-agents", h.ListAgents)

		api.POST("/create-knowledge-base", h.CreateKnowledgeBase)
		api.POST("/resync-knowledge-base/:id", h.ResyncKnowledgeBase)
		api.DELETE("/delete-knowledge-base/:id", h.DeleteKnowledgeBase)
		api.GET("/list-knowledge-bases", h.ListKnowledgeBases)

		api.POST("/create-phone-number", h.CreatePhoneNumber)
		api.POST("/update-phone-number", h.UpdatePhoneNumber)
		api.DELETE("/delete-phone-number/:phone_number", middleware.ValidatePhoneParam("phone_number"), h.DeletePhoneNumber)
		api.GET("/list-phone-numbers", h.ListPhoneNumbers)

		api.POST("/make-outbound-call", h.MakeOutboundCall)
		api.GET("/list-voices", h.ListVoices)
		api.POST("/start-web-call", h.StartWebCall)
		api.POST("/webrtc/offer", h.WebRTCOffer)
		api.POST("/webrtc/ice-candidate", h.WebRTCICECandidate)

		api.GET("/list-call-history", middleware.RequireQuery("user_id", "workspace_id"), h.ListCallHistory)
		api.GET("/get-call", middleware.RequireQuery("user_id", "workspace_id", "call_id"), h.GetCall)
		api.GET("/call-stats", middleware.RequireQuery("user_id", "workspace_id"), h.CallStats)
	}

	return router
}
