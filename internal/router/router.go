package router

import (
	"net/http"

	"shipnotify/internal/auth"
	"shipnotify/internal/common"
	"shipnotify/internal/config"
	"shipnotify/internal/domain/notification"
	"shipnotify/internal/domain/shipment"
	"shipnotify/internal/gateway"
	"shipnotify/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Notification *notification.Handler
	Shipment     *shipment.Handler
	Gateway      *gateway.Handler
}

// New creates and configures the Gin router with all middleware and routes.
//
// Routes:
//
//	GET  /health, /metrics        public
//	GET  /ws                      end-user token (header or query)
//	     /api/...                 end-user token
//	     /api/v1/...              service API key
func New(cfg *config.Config, rateLimiter *middleware.RateLimiter, tokens *auth.JWTManager, h Handlers) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Global middleware stack (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))
	r.Use(rateLimiter.Middleware())
	r.Use(middleware.Metrics())
	r.Use(gin.Logger())

	r.GET("/health", healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", h.Gateway.ServeWS)

	userAPI := r.Group("/api")
	userAPI.Use(middleware.JWT(tokens))
	{
		h.Notification.RegisterUserRoutes(userAPI)
		h.Shipment.RegisterUserRoutes(userAPI)
	}

	serviceAPI := r.Group("/api/v1")
	serviceAPI.Use(middleware.APIKey(cfg.Auth.APIKeys))
	{
		h.Notification.RegisterServiceRoutes(serviceAPI)
		h.Shipment.RegisterServiceRoutes(serviceAPI)
		h.Gateway.RegisterServiceRoutes(serviceAPI)
	}

	return r
}

// healthCheck handles GET /health
func healthCheck(c *gin.Context) {
	common.Success(c, http.StatusOK, gin.H{
		"status":  "ok",
		"service": "shipnotify",
	})
}
