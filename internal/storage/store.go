package storage

import (
	"context"
	"errors"

	"github.com/goodtune/focustrack/internal/timeconv"
)

var (
	// ErrNotFound is returned when a record is missing from storage.
	ErrNotFound = errors.New("storage: record not found")

	// ErrAlreadyClosed is returned when closing a session that already has
	// an end time. The stored end time is left untouched.
	ErrAlreadyClosed = errors.New("storage: session already closed")

	// ErrInvalidSessionID is returned for session ids <= 0.
	ErrInvalidSessionID = errors.New("storage: invalid session id")

	// ErrEmptyIdentity is returned when opening a session without a
	// process name or window title.
	ErrEmptyIdentity = errors.New("storage: process name and window title are required")
)

// Store represents the root storage interface.
type Store interface {
	Close() error
	Sessions() SessionStore
}

// SessionStore manages the ordered collection of activity sessions.
//
// Sessions are append-only: the only mutation after creation is the single
// end time write performed by CloseSession. Both OpenSession and
// CloseSession read "now" from the store's clock.
type SessionStore interface {
	// OpenSession inserts a new open session starting now and returns its id.
	OpenSession(ctx context.Context, processName, windowTitle string) (int64, error)

	// CloseSession sets the end time of an open session to now.
	CloseSession(ctx context.Context, id int64) error

	GetSession(ctx context.Context, id int64) (*Session, error)

	// CurrentOpenSession returns the most recently started open session,
	// or ErrNotFound when there is none.
	CurrentOpenSession(ctx context.Context) (*Session, error)

	// SessionsOverlapping returns sessions with StartTime < end and either
	// EndTime > start or no end time, ordered by id. Infinite bounds are
	// unbounded.
	SessionsOverlapping(ctx context.Context, start, end timeconv.Timestamp) ([]Session, error)

	// ListOpenSessions returns every open session ordered by start time.
	ListOpenSessions(ctx context.Context) ([]Session, error)

	CountOpenSessions(ctx context.Context) (int, error)

	// MinStartTime returns the earliest start time; ok is false when the
	// store is empty.
	MinStartTime(ctx context.Context) (ts timeconv.Timestamp, ok bool, err error)

	// MaxEndOrNow returns the latest end time, or now if any session is
	// open; ok is false when the store is empty.
	MaxEndOrNow(ctx context.Context) (ts timeconv.Timestamp, ok bool, err error)
}

// ValidateIdentity checks the arguments of OpenSession.
func ValidateIdentity(processName, windowTitle string) error {
	if processName == "" || windowTitle == "" {
		return ErrEmptyIdentity
	}
	return nil
}

// ValidateSessionID checks the argument of CloseSession.
func ValidateSessionID(id int64) error {
	if id <= 0 {
		return ErrInvalidSessionID
	}
	return nil
}
