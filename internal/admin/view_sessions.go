package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/focustrack/internal/stats"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/rs/zerolog"
)

// SessionsViews handles session-related API requests.
type SessionsViews struct {
	reporter Reporter
	logger   zerolog.Logger
}

// NewSessionsViews creates a new sessions views instance.
func NewSessionsViews(reporter Reporter, logger zerolog.Logger) *SessionsViews {
	return &SessionsViews{
		reporter: reporter,
		logger:   logger.With().Str("handler", "sessions").Logger(),
	}
}

// Current returns the session being tracked right now.
func (v *SessionsViews) Current(ctx *gin.Context) {
	session, err := v.reporter.CurrentSession(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to get current session")
		serverError(ctx, "Failed to retrieve current session")
		return
	}
	if session == nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No session is being tracked",
		})
		return
	}

	now := v.reporter.Now()
	ctx.JSON(http.StatusOK, gin.H{
		"session":          session,
		"started_at":       timeconv.ToCalendarString(session.StartTime),
		"duration_seconds": timeconv.Seconds(session.EffectiveEnd(now) - session.StartTime),
	})
}

// List returns sessions overlapping the requested dates. Without start
// and end it lists today.
func (v *SessionsViews) List(ctx *gin.Context) {
	start := ctx.Query("start")
	end := ctx.Query("end")
	if start == "" && end == "" {
		today := timeconv.DateString(v.reporter.Now())
		start, end = today, today
	}

	window, err := stats.DateRange(start, end)
	if err != nil {
		badRequest(ctx, err.Error())
		return
	}

	sessions, err := v.reporter.Sessions(ctx.Request.Context(), window)
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to list sessions")
		serverError(ctx, "Failed to retrieve sessions")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
