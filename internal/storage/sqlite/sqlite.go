package sqlite

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/timeconv"
	_ "modernc.org/sqlite"
)

// Store implements the storage.Store interface using SQLite.
type Store struct {
	db       *sql.DB
	sessions *sessionStore
}

// Open opens (creating if needed) the SQLite store at path and runs
// migrations.
func Open(path string, clock timeconv.Clock) (*Store, error) {
	if path != ":memory:" {
		if err := storage.EnsureParentDir(path); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	if clock == nil {
		clock = timeconv.RealClock{}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writes within this process; other
	// processes on the same file wait on busy_timeout.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db:       db,
		sessions: &sessionStore{db: db, clock: clock},
	}, nil
}

// dsn adds the connection pragmas. WAL lets a report read while the
// tracker writes; busy_timeout makes lock contention wait instead of
// failing with SQLITE_BUSY.
func dsn(path string) string {
	if path == ":memory:" {
		return path + "?_pragma=busy_timeout(5000)"
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sessions returns the session store.
func (s *Store) Sessions() storage.SessionStore {
	return s.sessions
}

// runMigrations applies all database migrations
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for version, migration := range getMigrations() {
		if version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(migration); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version, err)
		}
	}

	return nil
}

// getMigrations returns all database migrations, in apply order.
func getMigrations() []string {
	return []string{
		1: migration001ActivitySession,
		2: migration002OpenSessionIndex,
	}
}

const migration001ActivitySession = `
CREATE TABLE IF NOT EXISTS ActivitySession (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	processName TEXT NOT NULL,
	windowTitle TEXT NOT NULL,
	startTime REAL NOT NULL,
	endTime REAL -- NULL while the session is open
);

CREATE INDEX IF NOT EXISTS idx_session_start ON ActivitySession(startTime);
CREATE INDEX IF NOT EXISTS idx_session_end ON ActivitySession(endTime);
`

const migration002OpenSessionIndex = `
CREATE INDEX IF NOT EXISTS idx_session_open ON ActivitySession(startTime) WHERE endTime IS NULL;
`

// bound maps unbounded window edges onto values SQLite can compare.
func bound(ts timeconv.Timestamp) float64 {
	v := float64(ts)
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}
