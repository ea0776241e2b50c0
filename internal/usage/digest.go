package usage

import (
	"context"
	"time"

	"github.com/goodtune/focustrack/internal/stats"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/rs/zerolog"
)

// Summarizer is the part of the stats engine the digest needs.
type Summarizer interface {
	TotalTime(ctx context.Context, w stats.Window) (float64, error)
	TopApplications(ctx context.Context, w stats.Window, limit int) ([]stats.AppUsage, error)
}

// DigestScheduler logs a summary of the previous day once a day.
type DigestScheduler struct {
	summary    Summarizer
	clock      timeconv.Clock
	digestTime time.Time // Time of day to log (only hour and minute are used)
	topLimit   int
	logger     zerolog.Logger
	stopChan   chan struct{}
	done       chan struct{}
}

// NewDigestScheduler creates a new digest scheduler
func NewDigestScheduler(summary Summarizer, clock timeconv.Clock, digestTime string, topLimit int, logger zerolog.Logger) (*DigestScheduler, error) {
	// Parse digest time (HH:MM format)
	parsedTime, err := time.Parse("15:04", digestTime)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeconv.RealClock{}
	}
	if topLimit <= 0 {
		topLimit = 3
	}

	return &DigestScheduler{
		summary:    summary,
		clock:      clock,
		digestTime: parsedTime,
		topLimit:   topLimit,
		logger:     logger.With().Str("component", "digest").Logger(),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start begins the digest scheduler
func (ds *DigestScheduler) Start() {
	go ds.run()
	ds.logger.Info().
		Str("digest_time", ds.digestTime.Format("15:04")).
		Msg("Daily digest scheduler started")
}

// Stop stops the digest scheduler and waits for it to exit
func (ds *DigestScheduler) Stop() {
	close(ds.stopChan)
	<-ds.done
	ds.logger.Info().Msg("Daily digest scheduler stopped")
}

// run is the main scheduler loop
func (ds *DigestScheduler) run() {
	defer close(ds.done)

	for {
		nextDigest := ds.calculateNextDigest()
		waitDuration := nextDigest.Sub(ds.clock.Now())

		ds.logger.Debug().
			Time("next_digest", nextDigest).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next daily digest")

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
			ds.LogDigest(context.Background(), timeconv.PreviousDay(timeconv.Today(ds.clock)))
		case <-ds.stopChan:
			timer.Stop()
			return
		}
	}
}

// calculateNextDigest calculates the next digest time
func (ds *DigestScheduler) calculateNextDigest() time.Time {
	now := ds.clock.Now()

	todayDigest := time.Date(
		now.Year(), now.Month(), now.Day(),
		ds.digestTime.Hour(), ds.digestTime.Minute(), 0, 0,
		now.Location(),
	)

	// If we've already passed today's digest time, schedule for tomorrow
	if !now.Before(todayDigest) {
		return todayDigest.AddDate(0, 0, 1)
	}

	return todayDigest
}

// LogDigest logs the total and top applications of date.
func (ds *DigestScheduler) LogDigest(ctx context.Context, date string) {
	window, err := stats.DayWindow(date)
	if err != nil {
		ds.logger.Error().Err(err).Str("date", date).Msg("Invalid digest date")
		return
	}

	total, err := ds.summary.TotalTime(ctx, window)
	if err != nil {
		ds.logger.Error().Err(err).Str("date", date).Msg("Failed to compute daily total")
		return
	}

	apps, err := ds.summary.TopApplications(ctx, window, ds.topLimit)
	if err != nil {
		ds.logger.Error().Err(err).Str("date", date).Msg("Failed to rank applications")
		return
	}

	top := zerolog.Arr()
	for _, app := range apps {
		top.Dict(zerolog.Dict().
			Str("process", app.ProcessName).
			Str("time", stats.FormatDuration(app.Seconds)))
	}

	ds.logger.Info().
		Str("date", date).
		Str("total", stats.FormatDuration(total)).
		Float64("total_seconds", total).
		Array("top_applications", top).
		Msg("Daily digest")
}
