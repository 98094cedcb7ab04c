// Package router assembles the Gin engine from the initialized application.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apphttp "stageflow_backend/internal/http"
	"stageflow_backend/internal/http/middleware"
	"stageflow_backend/platform/httpkit"
)

// New builds the HTTP engine: global middleware, health endpoint and the
// route groups every module registers into.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app))

	limiter := httpkit.NewIPRateLimiter(rate.Limit(20), 40, app.Logger)

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			if err := app.Health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")

	protected := v1.Group("")
	protected.Use(middleware.APIKeyAuth(app.Keys, app.Logger))
	protected.Use(middleware.NewBusinessRateLimiter(rate.Limit(10), 30).Limit())

	admin := v1.Group("/admin")
	admin.Use(limiter.RateLimit())
	admin.Use(httpkit.OperatorAuth(app.Config))

	ctx := &apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Protected: protected,
		Admin:     admin,
		Config:    app.Config,
	}

	for _, m := range app.Modules {
		m.RegisterRoutes(ctx)
		app.Logger.Debug("module routes registered", "module", m.Name())
	}

	return engine
}

func corsMiddleware(app *apphttp.App) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		AllowCredentials: app.Config.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if app.Config.GetCORSAllowAll() {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = app.Config.GetCORSOrigins()
	}
	return cors.New(cfg)
}
