package router

import (
	"time"

	"dpchat/backend/internal/api"
	"dpchat/backend/pkg/config"
	"dpchat/backend/pkg/di"
	"dpchat/backend/pkg/errors"
	"dpchat/backend/pkg/jwt"
	"dpchat/backend/pkg/logger"
	"dpchat/backend/pkg/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates the engine with the global middleware chain. Request
// validation has to be installed before SetupRoutes, since gin only applies
// middleware to routes registered after it.
func New(container *di.Container) *Router {
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.LogError(err, "Invalid trusted proxy list, trusting none")
		_ = engine.SetTrustedProxies(nil)
	}

	// Logger first so every later middleware sees the request-scoped logger
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler(cfg.IsDevelopment()))
	engine.Use(errors.RecoveryWithLogger(cfg.IsDevelopment()))
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigin))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.setupHealthRoutes()

	if r.Container.Metrics != nil {
		r.Engine.GET("/metrics", gin.WrapH(r.Container.Metrics.Handler()))
	}

	handler := api.NewTranscriptHandler(
		r.Container.TranscriptService,
		r.Container.FeedbackService,
		r.Config.Security.MaxBodySize,
	)

	transcripts := r.Engine.Group("/api/transcript")

	writes := transcripts.Group("")
	if r.Container.RateLimiter != nil {
		writes.Use(r.Container.RateLimiter.Middleware())
	}
	{
		writes.POST("/save", handler.SaveTranscript)
		writes.POST("/feedback", handler.SaveFeedback)
	}

	reads := transcripts.Group("")
	if r.Container.JWTService != nil {
		reads.Use(middleware.JWTAuthMiddleware(r.Container.JWTService), middleware.RequireRole(jwt.RoleAdmin))
	}
	{
		reads.GET("/list", handler.ListTranscripts)
		reads.GET("/:id", handler.GetTranscript)
	}
}

// corsMiddleware admits the single configured browser origin with credentials
func corsMiddleware(origin string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{logger.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
