package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/focustrack/internal/stats"
	"github.com/rs/zerolog"
)

// StatsViews handles statistics-related API requests.
type StatsViews struct {
	reporter Reporter
	config   Config
	logger   zerolog.Logger
}

// NewStatsViews creates a new statistics views instance.
func NewStatsViews(reporter Reporter, config Config, logger zerolog.Logger) *StatsViews {
	if config.TopLimit <= 0 {
		config.TopLimit = stats.DefaultTopLimit
	}
	return &StatsViews{
		reporter: reporter,
		config:   config,
		logger:   logger.With().Str("handler", "stats").Logger(),
	}
}

// SummaryResponse is the body of the summary endpoint.
type SummaryResponse struct {
	Start           string           `json:"start,omitempty"`
	End             string           `json:"end,omitempty"`
	TotalSeconds    float64          `json:"total_seconds"`
	Total           string           `json:"total"`
	TopApplications []stats.AppUsage `json:"top_applications"`
	Breakdown       []stats.Slice    `json:"breakdown"`
}

// Summary returns the total, top applications and breakdown for a date
// range. Missing dates leave the range unbounded.
func (v *StatsViews) Summary(ctx *gin.Context) {
	start := ctx.Query("start")
	end := ctx.Query("end")

	window, err := stats.DateRange(start, end)
	if err != nil {
		badRequest(ctx, err.Error())
		return
	}

	limit := v.config.TopLimit
	if raw := ctx.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			badRequest(ctx, "limit must be a positive integer")
			return
		}
	}

	total, err := v.reporter.TotalTime(ctx.Request.Context(), window)
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to compute total time")
		serverError(ctx, "Failed to compute total time")
		return
	}

	apps, err := v.reporter.TopApplications(ctx.Request.Context(), window, limit)
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to rank applications")
		serverError(ctx, "Failed to rank applications")
		return
	}

	breakdown := stats.Breakdown(apps, total, v.config.OtherThresholdPercent)
	if breakdown == nil {
		breakdown = []stats.Slice{}
	}

	ctx.JSON(http.StatusOK, SummaryResponse{
		Start:           start,
		End:             end,
		TotalSeconds:    total,
		Total:           stats.FormatDuration(total),
		TopApplications: apps,
		Breakdown:       breakdown,
	})
}

// Hourly returns the 24 hourly buckets of a day.
func (v *StatsViews) Hourly(ctx *gin.Context) {
	date := ctx.Param("date")

	appsPerHour := v.config.AppsPerHour
	if raw := ctx.Query("apps"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(ctx, "apps must be a non-negative integer")
			return
		}
		appsPerHour = n
	}

	if _, err := stats.DayWindow(date); err != nil {
		badRequest(ctx, err.Error())
		return
	}

	hours, err := v.reporter.DetailedHourlyUsage(ctx.Request.Context(), date, appsPerHour)
	if err != nil {
		v.logger.Error().Err(err).Str("date", date).Msg("Failed to compute hourly usage")
		serverError(ctx, "Failed to compute hourly usage")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"date":  date,
		"hours": hours,
	})
}

// DaysTracked returns the span of recorded data in days.
func (v *StatsViews) DaysTracked(ctx *gin.Context) {
	days, err := v.reporter.DaysTracked(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to compute days tracked")
		serverError(ctx, "Failed to compute days tracked")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"days": days})
}
