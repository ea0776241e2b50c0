package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/timeconv"
	"go.etcd.io/bbolt"
)

const (
	bucketSessions = "sessions"
	bucketOpen     = "open"
	bucketByStart  = "by_start"
	bucketByEnd    = "by_end"
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db       *bbolt.DB
	sessions *sessionStore
}

// Open opens a BoltDB-backed store.
func Open(path string, clock timeconv.Clock) (*Store, error) {
	if err := storage.EnsureParentDir(path); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeconv.RealClock{}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{
		db:       db,
		sessions: &sessionStore{db: db, clock: clock},
	}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		backfill := tx.Bucket([]byte(bucketByEnd)) == nil
		for _, name := range []string{bucketSessions, bucketOpen, bucketByStart, bucketByEnd} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		if backfill {
			return backfillByEnd(tx)
		}
		return nil
	})
}

// backfillByEnd indexes closed sessions written before the end index existed.
func backfillByEnd(tx *bbolt.Tx) error {
	sessions, err := bucket(tx, bucketSessions)
	if err != nil {
		return err
	}
	return sessions.ForEach(func(_, v []byte) error {
		var session storage.Session
		if err := unmarshal(v, &session); err != nil {
			return err
		}
		if session.EndTime == nil {
			return nil
		}
		return putEndIndex(tx, session)
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sessions returns the session store.
func (s *Store) Sessions() storage.SessionStore { return s.sessions }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

// idKey encodes a session id so that byte order matches numeric order.
func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func keyID(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key))
}

// timeKey orders index entries by a timestamp, then id.
func timeKey(ts timeconv.Timestamp, id int64) []byte {
	key := make([]byte, 16)
	copy(key, sortableFloat(float64(ts)))
	binary.BigEndian.PutUint64(key[8:], uint64(id))
	return key
}

// sortableFloat encodes f so that bytes.Compare agrees with numeric order.
func sortableFloat(f float64) []byte {
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, bits)
	return out
}

func bucket(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("bucket missing: %s", name)
	}
	return b, nil
}

func getSession(tx *bbolt.Tx, id int64) (*storage.Session, error) {
	b, err := bucket(tx, bucketSessions)
	if err != nil {
		return nil, err
	}
	value := b.Get(idKey(id))
	if value == nil {
		return nil, storage.ErrNotFound
	}
	var session storage.Session
	if err := unmarshal(value, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// putEndIndex records a closed session under its end time, with its start
// time as the value.
func putEndIndex(tx *bbolt.Tx, session storage.Session) error {
	b, err := bucket(tx, bucketByEnd)
	if err != nil {
		return err
	}
	return b.Put(timeKey(*session.EndTime, session.ID), sortableFloat(float64(session.StartTime)))
}

func putSession(tx *bbolt.Tx, session storage.Session) error {
	b, err := bucket(tx, bucketSessions)
	if err != nil {
		return err
	}
	data, err := marshal(session)
	if err != nil {
		return err
	}
	return b.Put(idKey(session.ID), data)
}

func viewWithContext(ctx context.Context, db *bbolt.DB, fn func(tx *bbolt.Tx) error) error {
	return db.View(func(tx *bbolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(tx)
	})
}

func updateWithContext(ctx context.Context, db *bbolt.DB, fn func(tx *bbolt.Tx) error) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(tx)
	})
}
