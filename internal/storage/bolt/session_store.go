package bolt

import (
	"bytes"
	"context"
	"sort"

	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/timeconv"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db    *bbolt.DB
	clock timeconv.Clock
}

func (s *sessionStore) now() timeconv.Timestamp {
	return timeconv.FromTime(s.clock.Now())
}

func (s *sessionStore) OpenSession(ctx context.Context, processName, windowTitle string) (int64, error) {
	if err := storage.ValidateIdentity(processName, windowTitle); err != nil {
		return 0, err
	}

	var id int64
	err := updateWithContext(ctx, s.db, func(tx *bbolt.Tx) error {
		sessions, err := bucket(tx, bucketSessions)
		if err != nil {
			return err
		}
		seq, err := sessions.NextSequence()
		if err != nil {
			return err
		}

		session := storage.Session{
			ID:          int64(seq),
			ProcessName: processName,
			WindowTitle: windowTitle,
			StartTime:   s.now(),
		}
		if err := putSession(tx, session); err != nil {
			return err
		}

		open, err := bucket(tx, bucketOpen)
		if err != nil {
			return err
		}
		if err := open.Put(idKey(session.ID), nil); err != nil {
			return err
		}

		byStart, err := bucket(tx, bucketByStart)
		if err != nil {
			return err
		}
		if err := byStart.Put(timeKey(session.StartTime, session.ID), nil); err != nil {
			return err
		}

		id = session.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *sessionStore) CloseSession(ctx context.Context, id int64) error {
	if err := storage.ValidateSessionID(id); err != nil {
		return err
	}

	return updateWithContext(ctx, s.db, func(tx *bbolt.Tx) error {
		session, err := getSession(tx, id)
		if err != nil {
			return err
		}
		if !session.IsOpen() {
			return storage.ErrAlreadyClosed
		}

		end := s.now()
		if end < session.StartTime {
			end = session.StartTime
		}
		session.EndTime = storage.ClosedAt(end)
		if err := putSession(tx, *session); err != nil {
			return err
		}
		if err := putEndIndex(tx, *session); err != nil {
			return err
		}

		open, err := bucket(tx, bucketOpen)
		if err != nil {
			return err
		}
		return open.Delete(idKey(id))
	})
}

func (s *sessionStore) GetSession(ctx context.Context, id int64) (*storage.Session, error) {
	var session *storage.Session
	err := viewWithContext(ctx, s.db, func(tx *bbolt.Tx) error {
		var err error
		session, err = getSession(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionStore) CurrentOpenSession(ctx context.Context) (*storage.Session, error) {
	open, err := s.ListOpenSessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, storage.ErrNotFound
	}
	current := open[len(open)-1]
	return &current, nil
}

func (s *sessionStore) SessionsOverlapping(ctx context.Context, start, end timeconv.Timestamp) ([]storage.Session, error) {
	sessions := make([]storage.Session, 0)
	err := viewWithContext(ctx, s.db, func(tx *bbolt.Tx) error {
		open, err := bucket(tx, bucketOpen)
		if err != nil {
			return err
		}
		byEnd, err := bucket(tx, bucketByEnd)
		if err != nil {
			return err
		}

		limit := sortableFloat(float64(end))
		err = open.ForEach(func(k, _ []byte) error {
			session, err := getSession(tx, keyID(k))
			if err != nil {
				return err
			}
			if session.Overlaps(start, end) {
				sessions = append(sessions, *session)
			}
			return nil
		})
		if err != nil {
			return err
		}

		// Closed sessions ending at or before the window start are never
		// visited; the stored start time filters the rest.
		from := sortableFloat(float64(start))
		c := byEnd.Cursor()
		for k, v := c.Seek(from); k != nil; k, v = c.Next() {
			if bytes.Equal(k[:8], from) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if bytes.Compare(v, limit) >= 0 {
				continue
			}
			session, err := getSession(tx, keyID(k[8:]))
			if err != nil {
				return err
			}
			sessions = append(sessions, *session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

func (s *sessionStore) ListOpenSessions(ctx context.Context) ([]storage.Session, error) {
	sessions := make([]storage.Session, 0)
	err := viewWithContext(ctx, s.db, func(tx *bbolt.Tx) error {
		open, err := bucket(tx, bucketOpen)
		if err != nil {
			return err
		}
		return open.ForEach(func(k, _ []byte) error {
			session, err := getSession(tx, keyID(k))
			if err != nil {
				return err
			}
			sessions = append(sessions, *session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].StartTime != sessions[j].StartTime {
			return sessions[i].StartTime < sessions[j].StartTime
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

func (s *sessionStore) CountOpenSessions(ctx context.Context) (int, error) {
	var count int
	err := viewWithContext(ctx, s.db, func(tx *bbolt.Tx) error {
		open, err := bucket(tx, bucketOpen)
		if err != nil {
			return err
		}
		return open.ForEach(func(_, _ []byte) error {
			count++
			return nil
		})
	})
	return count, err
}

func (s *sessionStore) MinStartTime(ctx context.Context) (timeconv.Timestamp, bool, error) {
	var (
		ts timeconv.Timestamp
		ok bool
	)
	err := viewWithContext(ctx, s.db, func(tx *bbolt.Tx) error {
		byStart, err := bucket(tx, bucketByStart)
		if err != nil {
			return err
		}
		k, _ := byStart.Cursor().First()
		if k == nil {
			return nil
		}
		session, err := getSession(tx, keyID(k[8:]))
		if err != nil {
			return err
		}
		ts, ok = session.StartTime, true
		return nil
	})
	return ts, ok, err
}

func (s *sessionStore) MaxEndOrNow(ctx context.Context) (timeconv.Timestamp, bool, error) {
	var (
		ts      timeconv.Timestamp
		ok      bool
		anyOpen bool
	)
	err := viewWithContext(ctx, s.db, func(tx *bbolt.Tx) error {
		open, err := bucket(tx, bucketOpen)
		if err != nil {
			return err
		}
		if k, _ := open.Cursor().First(); k != nil {
			anyOpen, ok = true, true
			return nil
		}

		byEnd, err := bucket(tx, bucketByEnd)
		if err != nil {
			return err
		}
		k, _ := byEnd.Cursor().Last()
		if k == nil {
			return nil
		}
		session, err := getSession(tx, keyID(k[8:]))
		if err != nil {
			return err
		}
		ts, ok = *session.EndTime, true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	if anyOpen {
		return s.now(), true, nil
	}
	return ts, ok, nil
}
