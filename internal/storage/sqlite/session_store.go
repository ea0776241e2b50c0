package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/timeconv"
)

const sessionColumns = `id, processName, windowTitle, startTime, endTime`

type sessionStore struct {
	db    *sql.DB
	clock timeconv.Clock
}

func (s *sessionStore) now() timeconv.Timestamp {
	return timeconv.FromTime(s.clock.Now())
}

func (s *sessionStore) OpenSession(ctx context.Context, processName, windowTitle string) (int64, error) {
	if err := storage.ValidateIdentity(processName, windowTitle); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO ActivitySession (processName, windowTitle, startTime) VALUES (?, ?, ?)`,
		processName, windowTitle, float64(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read session id: %w", err)
	}
	return id, nil
}

func (s *sessionStore) CloseSession(ctx context.Context, id int64) error {
	if err := storage.ValidateSessionID(id); err != nil {
		return err
	}

	// MAX keeps endTime >= startTime if the wall clock stepped backwards.
	result, err := s.db.ExecContext(ctx,
		`UPDATE ActivitySession SET endTime = MAX(startTime, ?) WHERE id = ? AND endTime IS NULL`,
		float64(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("close session %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close session %d: %w", id, err)
	}
	if affected == 1 {
		return nil
	}

	// Nothing updated: tell "missing" apart from "already closed".
	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}
	return storage.ErrAlreadyClosed
}

func (s *sessionStore) GetSession(ctx context.Context, id int64) (*storage.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM ActivitySession WHERE id = ?`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	return session, nil
}

func (s *sessionStore) CurrentOpenSession(ctx context.Context) (*storage.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM ActivitySession
		WHERE endTime IS NULL
		ORDER BY startTime DESC, id DESC
		LIMIT 1`)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("current open session: %w", err)
	}
	return session, nil
}

func (s *sessionStore) SessionsOverlapping(ctx context.Context, start, end timeconv.Timestamp) ([]storage.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM ActivitySession
		WHERE startTime < ? AND (endTime > ? OR endTime IS NULL)
		ORDER BY id`,
		bound(end), bound(start),
	)
	if err != nil {
		return nil, fmt.Errorf("query overlapping sessions: %w", err)
	}
	return collectSessions(rows)
}

func (s *sessionStore) ListOpenSessions(ctx context.Context) ([]storage.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM ActivitySession
		WHERE endTime IS NULL
		ORDER BY startTime, id`)
	if err != nil {
		return nil, fmt.Errorf("query open sessions: %w", err)
	}
	return collectSessions(rows)
}

func (s *sessionStore) CountOpenSessions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ActivitySession WHERE endTime IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open sessions: %w", err)
	}
	return count, nil
}

func (s *sessionStore) MinStartTime(ctx context.Context) (timeconv.Timestamp, bool, error) {
	var start sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT MIN(startTime) FROM ActivitySession`).Scan(&start)
	if err != nil {
		return 0, false, fmt.Errorf("query min start time: %w", err)
	}
	if !start.Valid {
		return 0, false, nil
	}
	return timeconv.Timestamp(start.Float64), true, nil
}

func (s *sessionStore) MaxEndOrNow(ctx context.Context) (timeconv.Timestamp, bool, error) {
	var (
		total int
		open  int
		end   sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN endTime IS NULL THEN 1 ELSE 0 END), 0),
		       MAX(endTime)
		FROM ActivitySession`).Scan(&total, &open, &end)
	if err != nil {
		return 0, false, fmt.Errorf("query max end time: %w", err)
	}
	if total == 0 {
		return 0, false, nil
	}
	if open > 0 || !end.Valid {
		return s.now(), true, nil
	}
	return timeconv.Timestamp(end.Float64), true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*storage.Session, error) {
	var (
		session storage.Session
		start   float64
		end     sql.NullFloat64
	)
	if err := row.Scan(&session.ID, &session.ProcessName, &session.WindowTitle, &start, &end); err != nil {
		return nil, err
	}
	session.StartTime = timeconv.Timestamp(start)
	if end.Valid {
		session.EndTime = storage.ClosedAt(timeconv.Timestamp(end.Float64))
	}
	return &session, nil
}

func collectSessions(rows *sql.Rows) ([]storage.Session, error) {
	defer rows.Close()

	sessions := make([]storage.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
