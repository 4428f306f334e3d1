package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cura-labs/cura/internal/metrics"
	"github.com/cura-labs/cura/service"
)

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// RouterConfig collects what the router needs to mount every route
type RouterConfig struct {
	AuthService        *service.AuthService
	EligibilityService *service.EligibilityService
	Metrics            *metrics.Metrics
	Gatherer           prometheus.Gatherer
	Logger             *slog.Logger
	Checks             map[string]ReadinessCheck
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Logger), RequestMetrics(cfg.Metrics))

	handlers := NewAuthHandlers(cfg.AuthService, cfg.Logger)
	eligibility := NewEligibilityHandlers(cfg.EligibilityService, cfg.Logger)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/nonce", handlers.Nonce)
		auth.GET("/nonce/:nonce", handlers.CheckNonce)
		auth.POST("/verify", handlers.Verify)
		auth.POST("/renew", handlers.Renew)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(cfg.AuthService))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
		api.POST("/eligibility/membership", eligibility.Membership)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	router.GET("/healthz", healthz(cfg.Checks))

	return router
}

func healthz(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		deps := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				deps[name] = err.Error()
				continue
			}
			deps[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "dependencies": deps})
	}
}
