package usage

import (
	"context"
	"fmt"

	"github.com/goodtune/focustrack/internal/metrics"
	"github.com/goodtune/focustrack/internal/storage"
	"github.com/rs/zerolog"
)

// IntegrityChecker enforces that at most one session is open.
type IntegrityChecker struct {
	store  storage.SessionStore
	logger zerolog.Logger
}

// NewIntegrityChecker creates a checker over store.
func NewIntegrityChecker(store storage.SessionStore, logger zerolog.Logger) *IntegrityChecker {
	return &IntegrityChecker{
		store:  store,
		logger: logger.With().Str("component", "integrity").Logger(),
	}
}

// Check closes every open session except the most recently started one
// and returns how many were closed. The common case costs one count
// query.
func (c *IntegrityChecker) Check(ctx context.Context) (int, error) {
	count, err := c.store.CountOpenSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count open sessions: %w", err)
	}
	if count <= 1 {
		return 0, nil
	}

	open, err := c.store.ListOpenSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open sessions: %w", err)
	}
	if len(open) <= 1 {
		return 0, nil
	}

	keep := open[len(open)-1]
	repaired := 0
	for _, session := range open[:len(open)-1] {
		if err := c.store.CloseSession(ctx, session.ID); err != nil {
			metrics.StoreErrors.WithLabelValues("repair").Inc()
			c.logger.Error().
				Err(err).
				Int64("session_id", session.ID).
				Msg("Failed to close stale open session")
			continue
		}

		repaired++
		metrics.IntegrityRepairs.Inc()
		metrics.SessionsClosed.WithLabelValues(closeReasonRepair).Inc()
		c.logger.Warn().
			Int64("session_id", session.ID).
			Str("process", session.ProcessName).
			Str("title", session.WindowTitle).
			Int64("kept_session_id", keep.ID).
			Msg("Closed stale open session")
	}

	return repaired, nil
}
