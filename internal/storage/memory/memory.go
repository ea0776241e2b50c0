// Package memory provides an in-process SessionStore. Data does not
// survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/timeconv"
)

// Store implements storage.Store in memory.
type Store struct {
	sessions *sessionStore
}

// New creates an empty in-memory store.
func New(clock timeconv.Clock) *Store {
	if clock == nil {
		clock = timeconv.RealClock{}
	}
	return &Store{sessions: &sessionStore{clock: clock}}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Sessions returns the session store.
func (s *Store) Sessions() storage.SessionStore { return s.sessions }

type sessionStore struct {
	clock  timeconv.Clock
	mu     sync.RWMutex
	rows   []storage.Session
	nextID int64
}

func (s *sessionStore) now() timeconv.Timestamp {
	return timeconv.FromTime(s.clock.Now())
}

func (s *sessionStore) OpenSession(ctx context.Context, processName, windowTitle string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := storage.ValidateIdentity(processName, windowTitle); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.rows = append(s.rows, storage.Session{
		ID:          s.nextID,
		ProcessName: processName,
		WindowTitle: windowTitle,
		StartTime:   s.now(),
	})
	return s.nextID, nil
}

func (s *sessionStore) CloseSession(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateSessionID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return storage.ErrNotFound
	}
	if !s.rows[idx].IsOpen() {
		return storage.ErrAlreadyClosed
	}
	end := s.now()
	if end < s.rows[idx].StartTime {
		end = s.rows[idx].StartTime
	}
	s.rows[idx].EndTime = storage.ClosedAt(end)
	return nil
}

// indexOf relies on ids being assigned sequentially from 1.
func (s *sessionStore) indexOf(id int64) int {
	idx := int(id - 1)
	if idx < 0 || idx >= len(s.rows) || s.rows[idx].ID != id {
		return -1
	}
	return idx
}

func (s *sessionStore) GetSession(ctx context.Context, id int64) (*storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, storage.ErrNotFound
	}
	session := s.rows[idx]
	return &session, nil
}

func (s *sessionStore) CurrentOpenSession(ctx context.Context) (*storage.Session, error) {
	open, err := s.ListOpenSessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, storage.ErrNotFound
	}
	return &open[len(open)-1], nil
}

func (s *sessionStore) SessionsOverlapping(ctx context.Context, start, end timeconv.Timestamp) ([]storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.Session, 0)
	for _, row := range s.rows {
		if row.Overlaps(start, end) {
			result = append(result, row)
		}
	}
	return result, nil
}

func (s *sessionStore) ListOpenSessions(ctx context.Context) ([]storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	open := make([]storage.Session, 0)
	for _, row := range s.rows {
		if row.IsOpen() {
			open = append(open, row)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].StartTime < open[j].StartTime
	})
	return open, nil
}

func (s *sessionStore) CountOpenSessions(ctx context.Context) (int, error) {
	open, err := s.ListOpenSessions(ctx)
	if err != nil {
		return 0, err
	}
	return len(open), nil
}

func (s *sessionStore) MinStartTime(ctx context.Context) (timeconv.Timestamp, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rows) == 0 {
		return 0, false, nil
	}
	earliest := s.rows[0].StartTime
	for _, row := range s.rows[1:] {
		if row.StartTime < earliest {
			earliest = row.StartTime
		}
	}
	return earliest, true, nil
}

func (s *sessionStore) MaxEndOrNow(ctx context.Context) (timeconv.Timestamp, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rows) == 0 {
		return 0, false, nil
	}
	var latest timeconv.Timestamp
	for i, row := range s.rows {
		if row.IsOpen() {
			return s.now(), true, nil
		}
		if i == 0 || *row.EndTime > latest {
			latest = *row.EndTime
		}
	}
	return latest, true, nil
}
