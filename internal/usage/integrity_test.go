package usage

import (
	"context"
	"testing"
	"time"

	"github.com/goodtune/focustrack/internal/storage/memory"
	"github.com/rs/zerolog"
)

func TestIntegrityCheckerClosesAllButNewest(t *testing.T) {
	clock := newTestClock()
	store := memory.New(clock).Sessions()
	checker := NewIntegrityChecker(store, zerolog.Nop())
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"first", "second", "third"} {
		id, err := store.OpenSession(ctx, name, "window")
		if err != nil {
			t.Fatalf("open session: %v", err)
		}
		ids = append(ids, id)
		clock.Advance(time.Minute)
	}

	repaired, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if repaired != 2 {
		t.Errorf("expected 2 repairs, got %d", repaired)
	}

	open, err := store.ListOpenSessions(ctx)
	if err != nil {
		t.Fatalf("list open sessions: %v", err)
	}
	if len(open) != 1 || open[0].ID != ids[2] {
		t.Fatalf("only the newest session should stay open, got %+v", open)
	}

	first, err := store.GetSession(ctx, ids[0])
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if first.IsOpen() {
		t.Error("stale session should be closed")
	}

	// Idempotent.
	repaired, err = checker.Check(ctx)
	if err != nil || repaired != 0 {
		t.Errorf("second check: repaired=%d err=%v", repaired, err)
	}
}

func TestIntegrityCheckerNoop(t *testing.T) {
	clock := newTestClock()
	store := memory.New(clock).Sessions()
	checker := NewIntegrityChecker(store, zerolog.Nop())
	ctx := context.Background()

	if repaired, err := checker.Check(ctx); err != nil || repaired != 0 {
		t.Errorf("empty store: repaired=%d err=%v", repaired, err)
	}

	if _, err := store.OpenSession(ctx, "editor", "main.go"); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if repaired, err := checker.Check(ctx); err != nil || repaired != 0 {
		t.Errorf("single open session: repaired=%d err=%v", repaired, err)
	}
}

func TestIntegrityCheckerSkipsFailedClose(t *testing.T) {
	clock := newTestClock()
	store := &flakyStore{SessionStore: memory.New(clock).Sessions()}
	checker := NewIntegrityChecker(store, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.OpenSession(ctx, "editor", "main.go"); err != nil {
			t.Fatalf("open session: %v", err)
		}
		clock.Advance(time.Second)
	}

	store.failClose = true
	repaired, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("Check should not fail on individual close errors: %v", err)
	}
	if repaired != 0 || store.closes != 2 {
		t.Errorf("repaired=%d closes=%d", repaired, store.closes)
	}
}
