package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/storage/memory"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/rs/zerolog"
)

var errWriteFailed = errors.New("disk full")

// flakyStore fails writes on demand.
type flakyStore struct {
	storage.SessionStore
	failOpen  bool
	failClose bool
	opens     int
	closes    int
}

func (s *flakyStore) OpenSession(ctx context.Context, processName, windowTitle string) (int64, error) {
	s.opens++
	if s.failOpen {
		return 0, errWriteFailed
	}
	return s.SessionStore.OpenSession(ctx, processName, windowTitle)
}

func (s *flakyStore) CloseSession(ctx context.Context, id int64) error {
	s.closes++
	if s.failClose {
		return errWriteFailed
	}
	return s.SessionStore.CloseSession(ctx, id)
}

func newTestClock() *timeconv.TestClock {
	return timeconv.NewTestClock(time.Date(2024, 6, 12, 9, 0, 0, 0, time.Local))
}

func newTestTracker(t *testing.T) (*Tracker, storage.SessionStore, *timeconv.TestClock) {
	t.Helper()
	clock := newTestClock()
	store := memory.New(clock).Sessions()
	return NewTracker(store, Config{}, zerolog.Nop()), store, clock
}

func allSessions(t *testing.T, store storage.SessionStore) []storage.Session {
	t.Helper()
	sessions, err := store.SessionsOverlapping(context.Background(), timeconv.MinTimestamp, timeconv.MaxTimestamp)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	return sessions
}

func TestTrackerRepeatedWindowDoesNotDuplicate(t *testing.T) {
	tracker, store, clock := newTestTracker(t)
	ctx := context.Background()

	steps := []struct {
		obs  Observation
		want Transition
	}{
		{Observation{ProcessName: "A", WindowTitle: "w1"}, TransitionSwitch},
		{Observation{ProcessName: "A", WindowTitle: "w1"}, TransitionUnchanged},
		{Observation{ProcessName: "B", WindowTitle: "w2"}, TransitionSwitch},
	}
	for i, step := range steps {
		if got := tracker.Tick(ctx, step.obs); got != step.want {
			t.Errorf("tick %d: transition = %s, want %s", i, got, step.want)
		}
		clock.Advance(time.Second)
	}

	sessions := allSessions(t, store)
	if len(sessions) != 2 {
		t.Fatalf("expected exactly 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ProcessName != "A" || sessions[0].IsOpen() {
		t.Errorf("first session should be A and closed: %+v", sessions[0])
	}
	if sessions[1].ProcessName != "B" || !sessions[1].IsOpen() {
		t.Errorf("second session should be B and open: %+v", sessions[1])
	}
	if *sessions[0].EndTime != sessions[1].StartTime {
		t.Errorf("A should close when B opens: end %f, start %f", float64(*sessions[0].EndTime), float64(sessions[1].StartTime))
	}

	state := tracker.State()
	if !state.Tracking || state.SessionID != sessions[1].ID || state.ProcessName != "B" || state.WindowTitle != "w2" {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestTrackerTitleChangeStartsNewSession(t *testing.T) {
	tracker, store, _ := newTestTracker(t)
	ctx := context.Background()

	tracker.Tick(ctx, Observation{ProcessName: "editor", WindowTitle: "a.go"})
	tracker.Tick(ctx, Observation{ProcessName: "editor", WindowTitle: "b.go"})

	if got := len(allSessions(t, store)); got != 2 {
		t.Errorf("expected 2 sessions, got %d", got)
	}
}

func TestTrackerIdle(t *testing.T) {
	tracker, store, clock := newTestTracker(t)
	ctx := context.Background()
	window := Observation{ProcessName: "editor", WindowTitle: "main.go"}

	tracker.Tick(ctx, window)
	clock.Advance(time.Minute)

	idle := window
	idle.Idle = 6 * time.Minute
	if got := tracker.Tick(ctx, idle); got != TransitionIdle {
		t.Fatalf("transition = %s, want idle", got)
	}
	if state := tracker.State(); state != (TrackerState{}) {
		t.Errorf("idle should clear state, got %+v", state)
	}

	// Still idle: nothing to close.
	if got := tracker.Tick(ctx, idle); got != TransitionUnchanged {
		t.Errorf("second idle tick = %s, want unchanged", got)
	}

	sessions := allSessions(t, store)
	if len(sessions) != 1 || sessions[0].IsOpen() {
		t.Fatalf("expected one closed session, got %+v", sessions)
	}

	// Returning to the same window starts a fresh session.
	clock.Advance(time.Minute)
	if got := tracker.Tick(ctx, window); got != TransitionSwitch {
		t.Errorf("return from idle = %s, want switch", got)
	}
	if got := len(allSessions(t, store)); got != 2 {
		t.Errorf("expected 2 sessions after returning, got %d", got)
	}
}

func TestTrackerIdleAtThresholdKeepsTracking(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	tracker.Tick(ctx, Observation{ProcessName: "editor", WindowTitle: "main.go"})
	got := tracker.Tick(ctx, Observation{ProcessName: "editor", WindowTitle: "main.go", Idle: DefaultIdleThreshold})
	if got != TransitionUnchanged {
		t.Errorf("idle equal to threshold should not close, got %s", got)
	}
	if !tracker.State().Tracking {
		t.Error("tracker should still be tracking")
	}
}

func TestTrackerCustomIdleThreshold(t *testing.T) {
	clock := newTestClock()
	tracker := NewTracker(memory.New(clock).Sessions(), Config{IdleThreshold: 30 * time.Second}, zerolog.Nop())
	ctx := context.Background()

	tracker.Tick(ctx, Observation{ProcessName: "editor", WindowTitle: "main.go"})
	got := tracker.Tick(ctx, Observation{ProcessName: "editor", WindowTitle: "main.go", Idle: 31 * time.Second})
	if got != TransitionIdle {
		t.Errorf("transition = %s, want idle", got)
	}
}

func TestTrackerEmptyObservation(t *testing.T) {
	tests := []struct {
		name string
		obs  Observation
	}{
		{"nothing", Observation{}},
		{"no title", Observation{ProcessName: "editor"}},
		{"no process", Observation{WindowTitle: "main.go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, store, _ := newTestTracker(t)
			ctx := context.Background()

			tracker.Tick(ctx, Observation{ProcessName: "browser", WindowTitle: "docs"})
			tracker.Tick(ctx, tt.obs)

			state := tracker.State()
			if state.Tracking {
				t.Errorf("tracker should be idle, got %+v", state)
			}
			sessions := allSessions(t, store)
			if len(sessions) != 1 || sessions[0].IsOpen() {
				t.Errorf("expected the previous session closed and none opened, got %+v", sessions)
			}
		})
	}
}

func TestTrackerOpenFailureAdvancesState(t *testing.T) {
	clock := newTestClock()
	store := &flakyStore{SessionStore: memory.New(clock).Sessions(), failOpen: true}
	tracker := NewTracker(store, Config{}, zerolog.Nop())
	ctx := context.Background()

	window := Observation{ProcessName: "editor", WindowTitle: "main.go"}
	tracker.Tick(ctx, window)
	tracker.Tick(ctx, window)
	tracker.Tick(ctx, window)

	if store.opens != 1 {
		t.Errorf("failing open should not be retried every tick, got %d attempts", store.opens)
	}
	state := tracker.State()
	if state.Tracking || state.ProcessName != "editor" {
		t.Errorf("unexpected state %+v", state)
	}

	store.failOpen = false
	tracker.Tick(ctx, Observation{ProcessName: "browser", WindowTitle: "docs"})
	if !tracker.State().Tracking {
		t.Error("tracker should recover on the next change")
	}
}

func TestTrackerCloseFailureStillSwitches(t *testing.T) {
	clock := newTestClock()
	store := &flakyStore{SessionStore: memory.New(clock).Sessions()}
	tracker := NewTracker(store, Config{}, zerolog.Nop())
	ctx := context.Background()

	tracker.Tick(ctx, Observation{ProcessName: "editor", WindowTitle: "main.go"})
	store.failClose = true
	tracker.Tick(ctx, Observation{ProcessName: "browser", WindowTitle: "docs"})

	state := tracker.State()
	if !state.Tracking || state.ProcessName != "browser" {
		t.Errorf("tracker should follow the new window, got %+v", state)
	}
	count, err := store.CountOpenSessions(ctx)
	if err != nil {
		t.Fatalf("count open sessions: %v", err)
	}
	if count != 2 {
		t.Errorf("expected the unclosed session to linger, got %d open", count)
	}
}

func TestTrackerFlush(t *testing.T) {
	tracker, store, clock := newTestTracker(t)
	ctx := context.Background()

	tracker.Tick(ctx, Observation{ProcessName: "editor", WindowTitle: "main.go"})
	clock.Advance(time.Minute)
	tracker.Flush(ctx)

	if tracker.State().Tracking {
		t.Error("flush should leave the tracker idle")
	}
	if count, _ := store.CountOpenSessions(ctx); count != 0 {
		t.Errorf("flush should close the session, %d still open", count)
	}

	// Flushing while idle is harmless.
	tracker.Flush(ctx)
}
