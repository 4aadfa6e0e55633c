package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resumind-backend/internal/analysis"
	googleauth "resumind-backend/internal/auth"
	"resumind-backend/internal/services/health"
	"resumind-backend/internal/shared/config"
	"resumind-backend/internal/shared/metrics"
	"resumind-backend/internal/shared/server/middleware"
	"resumind-backend/internal/shared/server/respond"
)

// RouterDeps are the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analysis.Handler
	GoogleAuth      *googleauth.GoogleService
	Health          *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true, "env": deps.Config.Env})
	})
	if deps.Health != nil {
		api.GET("/health/ready", func(c *gin.Context) {
			checks, ok := deps.Health.Status(c.Request.Context())
			status := http.StatusOK
			if !ok {
				status = http.StatusServiceUnavailable
			}
			respond.JSON(c, status, gin.H{"ok": ok, "checks": checks})
		})
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	registerMeRoutes(api)
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
