package router

import (
	"fmt"
	"net/http"

	"ai-character-chat-simulator/backend/api"
	handlers "ai-character-chat-simulator/backend/internal/api"
	"ai-character-chat-simulator/backend/pkg/config"
	"ai-character-chat-simulator/backend/pkg/di"
	"ai-character-chat-simulator/backend/pkg/errors"
	"ai-character-chat-simulator/backend/pkg/logger"
	"ai-character-chat-simulator/backend/pkg/middleware"
	"ai-character-chat-simulator/backend/pkg/validator"
	"ai-character-chat-simulator/backend/shared/observability"

	"github.com/gin-gonic/gin"
)

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	Config      *config.Config
	RateLimiter *middleware.RateLimiter
	Validator   *validator.OpenAPIValidator
}

// New creates a new router with the given container
func New(container *di.Container) (*Router, error) {
	cfg := container.Config

	// Use the container's logger
	logger.SetGlobal(container.Logger)

	// Configure Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	v, err := loadValidator(cfg)
	if err != nil {
		return nil, err
	}

	// Initialize Gin router
	engine := gin.New()

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))

	// Add custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Add custom recovery middleware with structured logging instead of default
	engine.Use(errors.RecoveryWithLogger())

	engine.Use(middleware.Tracing())
	engine.Use(middleware.BodyLimit(cfg.Security.MaxBodySize))

	rateLimiter := middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptionsFromConfig(cfg))
	engine.Use(rateLimiter.Middleware())

	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		Config:      cfg,
		RateLimiter: rateLimiter,
		Validator:   v,
	}, nil
}

func loadValidator(cfg *config.Config) (*validator.OpenAPIValidator, error) {
	if cfg.OpenAPI.SchemaPath != "" {
		v, err := validator.NewFromFile(cfg.OpenAPI.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load OpenAPI schema %s: %w", cfg.OpenAPI.SchemaPath, err)
		}
		return v, nil
	}
	v, err := validator.New(api.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded OpenAPI schema: %w", err)
	}
	return v, nil
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	healthHandler := handlers.NewHealthHandler(c.Health, r.Config.Server.Version, c.Hub.ClientCount)
	r.Engine.GET("/health", healthHandler.Health)
	r.Engine.GET("/api/health", healthHandler.Health)
	r.Engine.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	// API version 1 routes
	v1 := r.Engine.Group("/api/v1")
	v1.Use(r.Validator.Middleware())
	{
		handlers.NewSetupHandler(c.Simulator).RegisterRoutes(v1)
		handlers.NewConversationHandler(c.Simulator).RegisterRoutes(v1)
	}

	// WebSocket route
	r.Engine.GET("/ws", c.Hub.ServeWs)
}

// corsMiddleware echoes allowed origins and answers preflight requests
func corsMiddleware(allowed []string) gin.HandlerFunc {
	wildcard := false
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		origins[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin != "" && origins[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		case wildcard:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Trace-ID, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
