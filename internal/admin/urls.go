package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Deps holds dependencies needed for API routes.
type Deps struct {
	Reporter Reporter
	Config   Config
	Logger   zerolog.Logger
}

// SetupRoutes registers all API routes with the Gin engine.
func SetupRoutes(r *gin.Engine, deps *Deps) {
	r.Use(LoggingMiddlewareGin(deps.Logger))
	r.Use(MetricsMiddlewareGin())

	sessionsViews := NewSessionsViews(deps.Reporter, deps.Logger)
	statsViews := NewStatsViews(deps.Reporter, deps.Config, deps.Logger)

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", sessionsViews.List)
			sessions.GET("/current", sessionsViews.Current)
		}

		statsGroup := v1.Group("/stats")
		{
			statsGroup.GET("/summary", statsViews.Summary)
			statsGroup.GET("/hourly/:date", statsViews.Hourly)
			statsGroup.GET("/days-tracked", statsViews.DaysTracked)
		}
	}
}

func badRequest(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusBadRequest, gin.H{
		"error":   "bad_request",
		"message": message,
	})
}

func serverError(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusInternalServerError, gin.H{
		"error":   "server_error",
		"message": message,
	})
}
