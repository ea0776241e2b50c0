package usage

import (
	"context"
	"time"

	"github.com/goodtune/focustrack/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	// DefaultPollInterval is how often the foreground window is sampled
	DefaultPollInterval = time.Second

	// DefaultFlushTimeout bounds the final session close on shutdown
	DefaultFlushTimeout = 5 * time.Second
)

// RunnerConfig holds driver loop configuration
type RunnerConfig struct {
	PollInterval time.Duration
	FlushTimeout time.Duration
}

// Runner drives the tracker: every poll interval it repairs the open
// session invariant, samples the observer and feeds the tracker.
type Runner struct {
	observer     Observer
	tracker      *Tracker
	checker      *IntegrityChecker
	pollInterval time.Duration
	flushTimeout time.Duration
	logger       zerolog.Logger
}

// NewRunner creates a driver loop
func NewRunner(observer Observer, tracker *Tracker, checker *IntegrityChecker, config RunnerConfig, logger zerolog.Logger) *Runner {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = DefaultFlushTimeout
	}

	return &Runner{
		observer:     observer,
		tracker:      tracker,
		checker:      checker,
		pollInterval: config.PollInterval,
		flushTimeout: config.FlushTimeout,
		logger:       logger.With().Str("component", "runner").Logger(),
	}
}

// Step performs one poll. A failed sample is treated as "no foreground
// window".
func (r *Runner) Step(ctx context.Context) Transition {
	started := time.Now()
	defer func() {
		metrics.StepDuration.Observe(time.Since(started).Seconds())
	}()

	if _, err := r.checker.Check(ctx); err != nil {
		r.logger.Error().Err(err).Msg("Integrity check failed")
	}

	obs, err := r.observer.Sample(ctx)
	if err != nil {
		metrics.ObserverErrors.Inc()
		r.logger.Debug().Err(err).Msg("Failed to sample foreground window")
		obs = Observation{}
	}

	return r.tracker.Tick(ctx, obs)
}

// Run polls until ctx is cancelled, then closes the open session.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("poll_interval", r.pollInterval).
		Dur("idle_threshold", r.tracker.idleThreshold).
		Msg("Tracking started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.Step(ctx)
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case <-ticker.C:
			r.Step(ctx)
		}
	}
}

func (r *Runner) shutdown() {
	// ctx is already cancelled; the final close gets its own deadline.
	flushCtx, cancel := context.WithTimeout(context.Background(), r.flushTimeout)
	defer cancel()

	r.tracker.Flush(flushCtx)
	r.logger.Info().Msg("Tracking stopped")
}
