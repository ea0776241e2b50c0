// Package storagetest holds the behavioural tests every storage backend
// must pass.
package storagetest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/timeconv"
)

// Factory opens a fresh, empty store that reads time from clock.
type Factory func(t *testing.T, clock timeconv.Clock) storage.Store

// Run executes the SessionStore contract against stores from factory.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, h *harness)
	}{
		{"OpenAndClose", testOpenAndClose},
		{"DoubleCloseKeepsFirstEnd", testDoubleClose},
		{"CloseInvalidID", testCloseInvalidID},
		{"OpenRejectsEmptyIdentity", testOpenEmptyIdentity},
		{"CurrentOpenSession", testCurrentOpenSession},
		{"SessionsOverlapping", testSessionsOverlapping},
		{"SessionsOverlappingUnbounded", testSessionsOverlappingUnbounded},
		{"SessionsOverlappingLongHistory", testSessionsOverlappingLongHistory},
		{"ListOpenSessions", testListOpenSessions},
		{"Bounds", testBounds},
		{"IDsIncrease", testIDsIncrease},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day, err := timeconv.FromCalendarString("2024-06-12")
			if err != nil {
				t.Fatalf("parse day: %v", err)
			}
			clock := timeconv.NewTestClock(timeconv.ToTime(day + 8.0/24))
			store := factory(t, clock)
			defer func() { _ = store.Close() }()

			tt.fn(t, &harness{
				ctx:      context.Background(),
				day:      day,
				clock:    clock,
				sessions: store.Sessions(),
			})
		})
	}
}

type harness struct {
	ctx      context.Context
	day      timeconv.Timestamp
	clock    *timeconv.TestClock
	sessions storage.SessionStore
}

// at returns the timestamp of the given hour on the test day.
func (h *harness) at(hour float64) timeconv.Timestamp {
	return h.day + timeconv.Timestamp(hour/24)
}

func (h *harness) open(t *testing.T, hour float64, process, title string) int64 {
	t.Helper()
	h.clock.SetTimestamp(h.at(hour))
	id, err := h.sessions.OpenSession(h.ctx, process, title)
	if err != nil {
		t.Fatalf("open session %s: %v", process, err)
	}
	return id
}

func (h *harness) close(t *testing.T, hour float64, id int64) {
	t.Helper()
	h.clock.SetTimestamp(h.at(hour))
	if err := h.sessions.CloseSession(h.ctx, id); err != nil {
		t.Fatalf("close session %d: %v", id, err)
	}
}

func (h *harness) get(t *testing.T, id int64) *storage.Session {
	t.Helper()
	session, err := h.sessions.GetSession(h.ctx, id)
	if err != nil {
		t.Fatalf("get session %d: %v", id, err)
	}
	return session
}

func approx(a, b timeconv.Timestamp) bool {
	// One millisecond expressed in days.
	return math.Abs(float64(a-b)) < 1.0/(timeconv.SecondsPerDay*1000)
}

func ids(sessions []storage.Session) []int64 {
	out := make([]int64, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testOpenAndClose(t *testing.T, h *harness) {
	id := h.open(t, 9, "editor", "main.go")
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	session := h.get(t, id)
	if session.ProcessName != "editor" || session.WindowTitle != "main.go" {
		t.Errorf("unexpected identity %q/%q", session.ProcessName, session.WindowTitle)
	}
	if !session.IsOpen() {
		t.Error("new session should be open")
	}
	if !approx(session.StartTime, h.at(9)) {
		t.Errorf("start = %f, want %f", float64(session.StartTime), float64(h.at(9)))
	}

	h.close(t, 10, id)

	session = h.get(t, id)
	if session.IsOpen() {
		t.Fatal("session should be closed")
	}
	if !approx(*session.EndTime, h.at(10)) {
		t.Errorf("end = %f, want %f", float64(*session.EndTime), float64(h.at(10)))
	}
	if !approx(session.StartTime, h.at(9)) {
		t.Error("start time changed on close")
	}
}

func testDoubleClose(t *testing.T, h *harness) {
	id := h.open(t, 9, "editor", "main.go")
	h.close(t, 10, id)

	h.clock.SetTimestamp(h.at(11))
	err := h.sessions.CloseSession(h.ctx, id)
	if !errors.Is(err, storage.ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}

	session := h.get(t, id)
	if !approx(*session.EndTime, h.at(10)) {
		t.Errorf("second close modified end time: %s", timeconv.ToCalendarString(*session.EndTime))
	}
}

func testCloseInvalidID(t *testing.T, h *harness) {
	for _, id := range []int64{0, -1} {
		if err := h.sessions.CloseSession(h.ctx, id); !errors.Is(err, storage.ErrInvalidSessionID) {
			t.Errorf("CloseSession(%d): expected ErrInvalidSessionID, got %v", id, err)
		}
	}
	if err := h.sessions.CloseSession(h.ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("CloseSession(42): expected ErrNotFound, got %v", err)
	}
	if _, err := h.sessions.GetSession(h.ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetSession(42): expected ErrNotFound, got %v", err)
	}
}

func testOpenEmptyIdentity(t *testing.T, h *harness) {
	cases := [][2]string{{"", "title"}, {"process", ""}, {"", ""}}
	for _, c := range cases {
		if _, err := h.sessions.OpenSession(h.ctx, c[0], c[1]); !errors.Is(err, storage.ErrEmptyIdentity) {
			t.Errorf("OpenSession(%q, %q): expected ErrEmptyIdentity, got %v", c[0], c[1], err)
		}
	}
	count, err := h.sessions.CountOpenSessions(h.ctx)
	if err != nil {
		t.Fatalf("count open sessions: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no sessions, got %d", count)
	}
}

func testCurrentOpenSession(t *testing.T, h *harness) {
	if _, err := h.sessions.CurrentOpenSession(h.ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	first := h.open(t, 9, "editor", "main.go")
	second := h.open(t, 9.5, "browser", "docs")

	current, err := h.sessions.CurrentOpenSession(h.ctx)
	if err != nil {
		t.Fatalf("current open session: %v", err)
	}
	if current.ID != second {
		t.Errorf("expected most recent open session %d, got %d", second, current.ID)
	}

	h.close(t, 10, second)
	current, err = h.sessions.CurrentOpenSession(h.ctx)
	if err != nil {
		t.Fatalf("current open session: %v", err)
	}
	if current.ID != first {
		t.Errorf("expected %d after closing newest, got %d", first, current.ID)
	}

	h.close(t, 10, first)
	if _, err := h.sessions.CurrentOpenSession(h.ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound once all closed, got %v", err)
	}
}

func testSessionsOverlapping(t *testing.T, h *harness) {
	a := h.open(t, 1, "a", "one")
	h.close(t, 2, a)
	b := h.open(t, 2, "b", "two")
	h.close(t, 4, b)
	c := h.open(t, 5, "c", "three")
	h.close(t, 6, c)
	d := h.open(t, 7, "d", "open")

	aEnd := *h.get(t, a).EndTime
	cStart := h.get(t, c).StartTime

	tests := []struct {
		name       string
		start, end timeconv.Timestamp
		want       []int64
	}{
		{"whole day", h.day, h.day + 1, []int64{a, b, c, d}},
		{"inside b", h.at(2.5), h.at(3), []int64{b}},
		{"gap", h.at(4.25), h.at(4.75), []int64{}},
		{"ending exactly at start excluded", aEnd, h.at(2.5), []int64{b}},
		{"starting exactly at end excluded", h.at(4.5), cStart, []int64{}},
		{"open session included", h.at(12), h.at(13), []int64{d}},
		{"before everything", h.day - 1, h.day, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.sessions.SessionsOverlapping(h.ctx, tt.start, tt.end)
			if err != nil {
				t.Fatalf("sessions overlapping: %v", err)
			}
			if !equalIDs(ids(got), tt.want) {
				t.Errorf("got ids %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func testSessionsOverlappingUnbounded(t *testing.T, h *harness) {
	a := h.open(t, 1, "a", "one")
	h.close(t, 2, a)
	b := h.open(t, 3, "b", "two")

	got, err := h.sessions.SessionsOverlapping(h.ctx, timeconv.MinTimestamp, timeconv.MaxTimestamp)
	if err != nil {
		t.Fatalf("sessions overlapping: %v", err)
	}
	if !equalIDs(ids(got), []int64{a, b}) {
		t.Errorf("unbounded query returned %v", ids(got))
	}

	got, err = h.sessions.SessionsOverlapping(h.ctx, h.at(2.5), timeconv.MaxTimestamp)
	if err != nil {
		t.Fatalf("sessions overlapping: %v", err)
	}
	if !equalIDs(ids(got), []int64{b}) {
		t.Errorf("open-ended query returned %v", ids(got))
	}
}

func testSessionsOverlappingLongHistory(t *testing.T, h *harness) {
	// Thirty days of closed sessions before the test day.
	var lastHistory int64
	for day := 30; day > 0; day-- {
		for hour := 9.0; hour < 17; hour++ {
			lastHistory = h.open(t, hour-float64(24*day), "history", "old")
			h.close(t, hour+0.5-float64(24*day), lastHistory)
		}
	}
	spanning := h.open(t, -2, "spanning", "overnight")
	h.close(t, 1, spanning)
	inside := h.open(t, 1, "inside", "morning")
	h.close(t, 2, inside)
	later := h.open(t, 3, "later", "open")

	tests := []struct {
		name       string
		start, end timeconv.Timestamp
		want       []int64
	}{
		{"test day", h.day, h.day + 1, []int64{spanning, inside, later}},
		{"early morning", h.at(0), h.at(0.5), []int64{spanning}},
		{"after spanning ends", h.at(1.5), h.at(2.5), []int64{inside}},
		{"open-ended", h.at(2.5), timeconv.MaxTimestamp, []int64{later}},
		{"last history hour", h.at(-24+16), h.at(-24+16.25), []int64{lastHistory}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.sessions.SessionsOverlapping(h.ctx, tt.start, tt.end)
			if err != nil {
				t.Fatalf("sessions overlapping: %v", err)
			}
			if !equalIDs(ids(got), tt.want) {
				t.Errorf("got ids %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func testListOpenSessions(t *testing.T, h *harness) {
	first := h.open(t, 1, "a", "one")
	closed := h.open(t, 2, "b", "two")
	h.close(t, 3, closed)
	second := h.open(t, 4, "c", "three")
	third := h.open(t, 5, "d", "four")

	open, err := h.sessions.ListOpenSessions(h.ctx)
	if err != nil {
		t.Fatalf("list open sessions: %v", err)
	}
	if !equalIDs(ids(open), []int64{first, second, third}) {
		t.Errorf("got %v, want ascending open sessions", ids(open))
	}
	for i := 1; i < len(open); i++ {
		if open[i].StartTime < open[i-1].StartTime {
			t.Errorf("open sessions not ordered by start time")
		}
	}

	count, err := h.sessions.CountOpenSessions(h.ctx)
	if err != nil {
		t.Fatalf("count open sessions: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 open sessions, got %d", count)
	}
}

func testBounds(t *testing.T, h *harness) {
	if _, ok, err := h.sessions.MinStartTime(h.ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if _, ok, err := h.sessions.MaxEndOrNow(h.ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	a := h.open(t, 1, "a", "one")
	h.close(t, 2, a)
	b := h.open(t, 3, "b", "two")
	h.close(t, 5, b)

	start, ok, err := h.sessions.MinStartTime(h.ctx)
	if err != nil || !ok {
		t.Fatalf("min start: ok=%v err=%v", ok, err)
	}
	if !approx(start, h.at(1)) {
		t.Errorf("min start = %s", timeconv.ToCalendarString(start))
	}

	end, ok, err := h.sessions.MaxEndOrNow(h.ctx)
	if err != nil || !ok {
		t.Fatalf("max end: ok=%v err=%v", ok, err)
	}
	if !approx(end, h.at(5)) {
		t.Errorf("max end = %s", timeconv.ToCalendarString(end))
	}

	h.open(t, 6, "c", "three")
	h.clock.Advance(90 * time.Minute)

	end, ok, err = h.sessions.MaxEndOrNow(h.ctx)
	if err != nil || !ok {
		t.Fatalf("max end: ok=%v err=%v", ok, err)
	}
	if !approx(end, h.at(7.5)) {
		t.Errorf("max end with open session = %s, want now", timeconv.ToCalendarString(end))
	}
}

func testIDsIncrease(t *testing.T, h *harness) {
	var last int64
	for i := 0; i < 5; i++ {
		id := h.open(t, float64(i+1), "p", "w")
		if id <= last {
			t.Fatalf("id %d not greater than previous %d", id, last)
		}
		h.close(t, float64(i+1)+0.5, id)
		last = id
	}
}
