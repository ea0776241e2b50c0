package usage

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/focustrack/internal/metrics"
	"github.com/goodtune/focustrack/internal/storage"
	"github.com/rs/zerolog"
)

const (
	// DefaultIdleThreshold is the idle duration after which the open
	// session is closed
	DefaultIdleThreshold = 5 * time.Minute
)

// Config holds tracker configuration
type Config struct {
	IdleThreshold time.Duration
}

// Tracker turns a stream of observations into sessions. It is the only
// writer of session boundaries during normal operation.
type Tracker struct {
	store         storage.SessionStore
	idleThreshold time.Duration
	logger        zerolog.Logger

	mu    sync.Mutex
	state TrackerState
}

// NewTracker creates a new tracker starting in the idle state
func NewTracker(store storage.SessionStore, config Config, logger zerolog.Logger) *Tracker {
	if config.IdleThreshold <= 0 {
		config.IdleThreshold = DefaultIdleThreshold
	}

	return &Tracker{
		store:         store,
		idleThreshold: config.IdleThreshold,
		logger:        logger.With().Str("component", "tracker").Logger(),
	}
}

// State returns a copy of the tracker state.
func (t *Tracker) State() TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Tick applies one observation. Store failures are logged and counted;
// the remembered window pair advances regardless so a failing write is
// not retried every tick.
func (t *Tracker) Tick(ctx context.Context, obs Observation) Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	transition := t.tick(ctx, obs)
	metrics.TrackerTransitions.WithLabelValues(string(transition)).Inc()
	if t.state.Tracking {
		metrics.Tracking.Set(1)
	} else {
		metrics.Tracking.Set(0)
	}
	return transition
}

func (t *Tracker) tick(ctx context.Context, obs Observation) Transition {
	if obs.Idle > t.idleThreshold {
		if !t.state.Tracking {
			return TransitionUnchanged
		}

		t.logger.Info().
			Int64("session_id", t.state.SessionID).
			Dur("idle", obs.Idle).
			Msg("User idle, closing session")

		t.closeCurrent(ctx, closeReasonIdle)
		t.state = TrackerState{}
		return TransitionIdle
	}

	if obs.ProcessName == t.state.ProcessName && obs.WindowTitle == t.state.WindowTitle {
		return TransitionUnchanged
	}

	if t.state.Tracking {
		t.closeCurrent(ctx, closeReasonSwitch)
	}

	t.state = TrackerState{
		ProcessName: obs.ProcessName,
		WindowTitle: obs.WindowTitle,
	}

	if !obs.HasWindow() {
		t.logger.Debug().
			Str("process", obs.ProcessName).
			Str("title", obs.WindowTitle).
			Msg("No resolvable foreground window")
		return TransitionSwitch
	}

	id, err := t.store.OpenSession(ctx, obs.ProcessName, obs.WindowTitle)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("open").Inc()
		t.logger.Error().
			Err(err).
			Str("process", obs.ProcessName).
			Str("title", obs.WindowTitle).
			Msg("Failed to open session")
		return TransitionSwitch
	}

	metrics.SessionsOpened.Inc()
	t.state.Tracking = true
	t.state.SessionID = id

	t.logger.Debug().
		Int64("session_id", id).
		Str("process", obs.ProcessName).
		Str("title", obs.WindowTitle).
		Msg("Started session")

	return TransitionSwitch
}

// Flush closes the tracked session and returns to idle. It is called on
// shutdown.
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Tracking {
		t.closeCurrent(ctx, closeReasonShutdown)
	}
	t.state = TrackerState{}
	metrics.Tracking.Set(0)
}

// closeCurrent must be called with t.mu held and t.state.Tracking set.
func (t *Tracker) closeCurrent(ctx context.Context, reason string) {
	id := t.state.SessionID
	if err := t.store.CloseSession(ctx, id); err != nil {
		metrics.StoreErrors.WithLabelValues("close").Inc()
		t.logger.Error().
			Err(err).
			Int64("session_id", id).
			Str("reason", reason).
			Msg("Failed to close session")
		return
	}

	metrics.SessionsClosed.WithLabelValues(reason).Inc()
	t.logger.Debug().
		Int64("session_id", id).
		Str("reason", reason).
		Msg("Closed session")
}
