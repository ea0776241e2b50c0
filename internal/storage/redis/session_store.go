package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/redis/go-redis/v9"
)

type sessionStore struct {
	client *redis.Client
	clock  timeconv.Clock
	keys   keySet
}

func (s *sessionStore) now() timeconv.Timestamp {
	return timeconv.FromTime(s.clock.Now())
}

// OpenSession allocates an id and stores a new open session
func (s *sessionStore) OpenSession(ctx context.Context, processName, windowTitle string) (int64, error) {
	if err := storage.ValidateIdentity(processName, windowTitle); err != nil {
		return 0, err
	}

	keys := []string{s.keys.seq, s.keys.byStart, s.keys.open}
	args := []interface{}{
		s.keys.sessionPrefix(),
		processName,
		windowTitle,
		formatTimestamp(s.now()),
	}

	id, err := openSession.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("open session: %w", err)
	}
	return id, nil
}

// CloseSession writes the end time of an open session
func (s *sessionStore) CloseSession(ctx context.Context, id int64) error {
	if err := storage.ValidateSessionID(id); err != nil {
		return err
	}

	keys := []string{s.keys.session(id), s.keys.open, s.keys.byEnd}
	args := []interface{}{id, formatTimestamp(s.now())}

	code, err := closeSession.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return fmt.Errorf("close session %d: %w", id, err)
	}

	switch code {
	case closeOK:
		return nil
	case closeNotFound:
		return storage.ErrNotFound
	case closeAlreadyClosed:
		return storage.ErrAlreadyClosed
	default:
		return fmt.Errorf("close session %d: unexpected script result %d", id, code)
	}
}

// GetSession retrieves a session by ID
func (s *sessionStore) GetSession(ctx context.Context, id int64) (*storage.Session, error) {
	data, err := s.client.HGetAll(ctx, s.keys.session(id)).Result()
	if err != nil {
		return nil, err
	}
	return parseSession(data)
}

// CurrentOpenSession returns the latest-starting open session
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

// SessionsOverlapping returns sessions intersecting [start, end)
func (s *sessionStore) SessionsOverlapping(ctx context.Context, start, end timeconv.Timestamp) ([]storage.Session, error) {
	pipe := s.client.Pipeline()
	startedBefore := pipe.ZRangeByScore(ctx, s.keys.byStart, &redis.ZRangeBy{
		Min: "-inf",
		Max: scoreBound(end, true),
	})
	endedAfter := pipe.ZRangeByScore(ctx, s.keys.byEnd, &redis.ZRangeBy{
		Min: scoreBound(start, true),
		Max: "+inf",
	})
	open := pipe.ZRange(ctx, s.keys.open, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("query overlapping sessions: %w", err)
	}

	// Only hashes in both index ranges are loaded.
	inWindow := make(map[string]struct{}, len(endedAfter.Val())+len(open.Val()))
	for _, id := range endedAfter.Val() {
		inWindow[id] = struct{}{}
	}
	for _, id := range open.Val() {
		inWindow[id] = struct{}{}
	}
	ids := make([]string, 0, len(inWindow))
	for _, id := range startedBefore.Val() {
		if _, ok := inWindow[id]; ok {
			ids = append(ids, id)
		}
	}

	candidates, err := s.loadSessions(ctx, ids)
	if err != nil {
		return nil, err
	}

	sessions := make([]storage.Session, 0, len(candidates))
	for _, session := range candidates {
		if session.Overlaps(start, end) {
			sessions = append(sessions, session)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

// ListOpenSessions returns open sessions ordered by start time
func (s *sessionStore) ListOpenSessions(ctx context.Context) ([]storage.Session, error) {
	ids, err := s.client.ZRange(ctx, s.keys.open, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query open sessions: %w", err)
	}

	sessions, err := s.loadSessions(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Members with equal scores sort lexically; reorder ties by id.
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].StartTime != sessions[j].StartTime {
			return sessions[i].StartTime < sessions[j].StartTime
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

// CountOpenSessions returns the number of sessions without an end time
func (s *sessionStore) CountOpenSessions(ctx context.Context) (int, error) {
	count, err := s.client.ZCard(ctx, s.keys.open).Result()
	if err != nil {
		return 0, fmt.Errorf("count open sessions: %w", err)
	}
	return int(count), nil
}

// MinStartTime returns the earliest start time
func (s *sessionStore) MinStartTime(ctx context.Context) (timeconv.Timestamp, bool, error) {
	first, err := s.client.ZRangeWithScores(ctx, s.keys.byStart, 0, 0).Result()
	if err != nil {
		return 0, false, fmt.Errorf("query min start time: %w", err)
	}
	if len(first) == 0 {
		return 0, false, nil
	}
	return timeconv.Timestamp(first[0].Score), true, nil
}

// MaxEndOrNow returns the latest end time, or now while a session is open
func (s *sessionStore) MaxEndOrNow(ctx context.Context) (timeconv.Timestamp, bool, error) {
	pipe := s.client.Pipeline()
	total := pipe.ZCard(ctx, s.keys.byStart)
	open := pipe.ZCard(ctx, s.keys.open)
	last := pipe.ZRevRangeWithScores(ctx, s.keys.byEnd, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, fmt.Errorf("query max end time: %w", err)
	}

	if total.Val() == 0 {
		return 0, false, nil
	}
	if open.Val() > 0 || len(last.Val()) == 0 {
		return s.now(), true, nil
	}
	return timeconv.Timestamp(last.Val()[0].Score), true, nil
}

// loadSessions fetches the hashes for ids in one round trip
func (s *sessionStore) loadSessions(ctx context.Context, ids []string) ([]storage.Session, error) {
	if len(ids) == 0 {
		return []storage.Session{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid session id %q in index: %w", raw, err)
		}
		cmds[i] = pipe.HGetAll(ctx, s.keys.session(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	sessions := make([]storage.Session, 0, len(cmds))
	for _, cmd := range cmds {
		session, err := parseSession(cmd.Val())
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}
