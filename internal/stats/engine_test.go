package stats

import (
	"context"
	"math"
	"testing"

	"github.com/goodtune/focustrack/internal/storage/memory"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/rs/zerolog"
)

const testDate = "2024-06-12"

type fixture struct {
	t      *testing.T
	clock  *timeconv.TestClock
	store  *memory.Store
	engine *Engine
	day    timeconv.Timestamp
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	day, err := timeconv.FromCalendarString(testDate)
	if err != nil {
		t.Fatalf("parse test date: %v", err)
	}
	clock := timeconv.NewTestClock(timeconv.ToTime(day))
	store := memory.New(clock)

	engine, err := NewEngine(store.Sessions(), clock, Options{CacheSize: 8}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	return &fixture{t: t, clock: clock, store: store, engine: engine, day: day}
}

// record stores a closed session between two offsets (in days) from the
// test day.
func (f *fixture) record(process string, from, to float64) {
	f.t.Helper()

	ctx := context.Background()
	f.clock.SetTimestamp(f.day + timeconv.Timestamp(from))
	id, err := f.store.Sessions().OpenSession(ctx, process, process+" window")
	if err != nil {
		f.t.Fatalf("open session: %v", err)
	}
	f.clock.SetTimestamp(f.day + timeconv.Timestamp(to))
	if err := f.store.Sessions().CloseSession(ctx, id); err != nil {
		f.t.Fatalf("close session: %v", err)
	}
}

// openAt stores a session left open.
func (f *fixture) openAt(process string, from float64) {
	f.t.Helper()

	f.clock.SetTimestamp(f.day + timeconv.Timestamp(from))
	if _, err := f.store.Sessions().OpenSession(context.Background(), process, process+" window"); err != nil {
		f.t.Fatalf("open session: %v", err)
	}
}

func (f *fixture) setNow(offset float64) {
	f.clock.SetTimestamp(f.day + timeconv.Timestamp(offset))
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestTotalTime(t *testing.T) {
	f := newFixture(t)
	f.record("editor", 0.25, 0.5) // 06:00-12:00
	f.setNow(2)

	tests := []struct {
		name   string
		window Window
		want   float64
	}{
		{"enclosing window", Window{Start: f.day, End: f.day + 1}, 6 * 3600},
		{"all time", AllTime(), 6 * 3600},
		{"partial overlap", Window{Start: f.day + 0.375, End: f.day + 1}, 3 * 3600},
		{"inside session", Window{Start: f.day + 0.3, End: f.day + 0.35}, 0.05 * 86400},
		{"window after session", Window{Start: f.day + 0.5, End: f.day + 1}, 0},
		{"window before session", Window{Start: f.day, End: f.day + 0.25}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.engine.TotalTime(context.Background(), tt.window)
			if err != nil {
				t.Fatalf("TotalTime failed: %v", err)
			}
			if !approxEqual(got, tt.want) {
				t.Errorf("TotalTime = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestTotalTimeOpenSessionEndsNow(t *testing.T) {
	f := newFixture(t)
	f.openAt("browser", 0.5)
	f.setNow(0.75)

	got, err := f.engine.TotalTime(context.Background(), AllTime())
	if err != nil {
		t.Fatalf("TotalTime failed: %v", err)
	}
	if !approxEqual(got, 6*3600) {
		t.Errorf("TotalTime = %f, want %d", got, 6*3600)
	}
}

func TestHourlyUsageAttributesToOverlappingSession(t *testing.T) {
	f := newFixture(t)
	f.record("A", 0, 0.25)
	f.record("B", 0.25, 0.5)
	f.setNow(3)

	hours, err := f.engine.DetailedHourlyUsage(context.Background(), testDate, 5)
	if err != nil {
		t.Fatalf("DetailedHourlyUsage failed: %v", err)
	}

	six := hours[6]
	if !approxEqual(six.Fraction, 1) {
		t.Errorf("hour 6 fraction = %f, want 1", six.Fraction)
	}
	if len(six.Apps) != 1 || six.Apps[0].ProcessName != "B" {
		t.Fatalf("hour 6 apps = %+v, want only B", six.Apps)
	}
	if !approxEqual(six.Apps[0].Seconds, 3600) {
		t.Errorf("B seconds in hour 6 = %f", six.Apps[0].Seconds)
	}

	five := hours[5]
	if len(five.Apps) != 1 || five.Apps[0].ProcessName != "A" {
		t.Errorf("hour 5 apps = %+v, want only A", five.Apps)
	}

	for h := 12; h < 24; h++ {
		if hours[h].Fraction != 0 || hours[h].Apps != nil {
			t.Errorf("hour %d should be empty, got %+v", h, hours[h])
		}
	}
}

func TestHourlyUsagePartialHour(t *testing.T) {
	f := newFixture(t)
	f.record("editor", 9.0/24+0.25/24, 9.0/24+0.75/24) // 09:15-09:45
	f.setNow(1.5)

	fractions, err := f.engine.HourlyUsage(context.Background(), testDate)
	if err != nil {
		t.Fatalf("HourlyUsage failed: %v", err)
	}
	if !approxEqual(fractions[9], 0.5) {
		t.Errorf("hour 9 = %f, want 0.5", fractions[9])
	}
	if fractions[8] != 0 || fractions[10] != 0 {
		t.Errorf("neighbouring hours should be empty: %f %f", fractions[8], fractions[10])
	}
}

func TestHourlyUsageClampsOverlappingSessions(t *testing.T) {
	f := newFixture(t)
	f.openAt("stale", 10.0/24)
	f.openAt("fresh", 10.0/24)
	f.setNow(11.0 / 24)

	fractions, err := f.engine.HourlyUsage(context.Background(), testDate)
	if err != nil {
		t.Fatalf("HourlyUsage failed: %v", err)
	}
	if fractions[10] != 1 {
		t.Errorf("hour 10 = %f, want clamp to 1", fractions[10])
	}
}

func TestHourlyUsageCachesCompletedDays(t *testing.T) {
	f := newFixture(t)
	f.record("editor", 0.25, 0.5)
	ctx := context.Background()

	f.setNow(0.75)
	if _, err := f.engine.HourlyUsage(ctx, testDate); err != nil {
		t.Fatalf("HourlyUsage failed: %v", err)
	}
	if f.engine.cache.Len() != 0 {
		t.Fatalf("today must not be cached, cache has %d entries", f.engine.cache.Len())
	}

	f.setNow(1.5)
	first, err := f.engine.DetailedHourlyUsage(ctx, testDate, 3)
	if err != nil {
		t.Fatalf("DetailedHourlyUsage failed: %v", err)
	}
	if f.engine.cache.Len() != 1 {
		t.Fatalf("completed day should be cached, cache has %d entries", f.engine.cache.Len())
	}

	second, err := f.engine.DetailedHourlyUsage(ctx, testDate, 3)
	if err != nil {
		t.Fatalf("DetailedHourlyUsage failed: %v", err)
	}
	if first[7].Fraction != second[7].Fraction || len(first[7].Apps) != len(second[7].Apps) {
		t.Error("cached result differs from computed result")
	}
}

func TestCachedHourlyUsageIsNotShared(t *testing.T) {
	f := newFixture(t)
	f.record("editor", 0.25, 0.5)
	ctx := context.Background()
	f.setNow(1.5)

	first, err := f.engine.DetailedHourlyUsage(ctx, testDate, 3)
	if err != nil {
		t.Fatalf("DetailedHourlyUsage failed: %v", err)
	}
	if len(first[7].Apps) != 1 {
		t.Fatalf("expected one app in hour 7, got %v", first[7].Apps)
	}
	first[7].Apps[0].ProcessName = "changed"

	second, err := f.engine.DetailedHourlyUsage(ctx, testDate, 3)
	if err != nil {
		t.Fatalf("DetailedHourlyUsage failed: %v", err)
	}
	if got := second[7].Apps[0].ProcessName; got != "editor" {
		t.Fatalf("cache entry changed through computed result: got %q", got)
	}
	second[7].Apps[0].ProcessName = "changed again"

	third, err := f.engine.DetailedHourlyUsage(ctx, testDate, 3)
	if err != nil {
		t.Fatalf("DetailedHourlyUsage failed: %v", err)
	}
	if got := third[7].Apps[0].ProcessName; got != "editor" {
		t.Errorf("cache entry changed through cached result: got %q", got)
	}
}

func TestHourlyUsageInvalidDate(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.HourlyUsage(context.Background(), "12/06/2024"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestTopApplications(t *testing.T) {
	f := newFixture(t)
	f.record("editor", 0.1, 0.2)
	f.record("browser", 0.2, 0.3)
	f.record("terminal", 0.3, 0.35)
	f.record("editor", 0.4, 0.45)
	f.setNow(1)

	ctx := context.Background()

	apps, err := f.engine.TopApplications(ctx, AllTime(), 0)
	if err != nil {
		t.Fatalf("TopApplications failed: %v", err)
	}
	if len(apps) != 3 {
		t.Fatalf("expected 3 apps, got %+v", apps)
	}
	wantOrder := []string{"editor", "browser", "terminal"}
	for i, name := range wantOrder {
		if apps[i].ProcessName != name {
			t.Errorf("apps[%d] = %s, want %s", i, apps[i].ProcessName, name)
		}
	}
	if !approxEqual(apps[0].Seconds, 0.15*86400) {
		t.Errorf("editor seconds = %f", apps[0].Seconds)
	}

	limited, err := f.engine.TopApplications(ctx, AllTime(), 2)
	if err != nil {
		t.Fatalf("TopApplications failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit 2 returned %d apps", len(limited))
	}
}

func TestTopApplicationsTies(t *testing.T) {
	f := newFixture(t)
	f.record("alpha", 0.25, 0.5)
	f.record("beta", 0.5, 0.75)
	f.setNow(1)

	apps, err := f.engine.TopApplications(context.Background(), AllTime(), 10)
	if err != nil {
		t.Fatalf("TopApplications failed: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("expected both tied apps, got %+v", apps)
	}
	if apps[0].ProcessName != "alpha" || apps[1].ProcessName != "beta" {
		t.Errorf("ties should keep first-seen order, got %+v", apps)
	}

	one, err := f.engine.TopApplications(context.Background(), AllTime(), 1)
	if err != nil {
		t.Fatalf("TopApplications failed: %v", err)
	}
	if len(one) != 1 {
		t.Errorf("limit 1 returned %d apps", len(one))
	}
}

func TestDaysTracked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	days, err := f.engine.DaysTracked(ctx)
	if err != nil {
		t.Fatalf("DaysTracked failed: %v", err)
	}
	if days != 0 {
		t.Errorf("empty store should track 0 days, got %f", days)
	}

	f.record("editor", 0.25, 0.5)
	f.record("editor", 1.25, 1.75)
	days, err = f.engine.DaysTracked(ctx)
	if err != nil {
		t.Fatalf("DaysTracked failed: %v", err)
	}
	if !approxEqual(days, 1.5) {
		t.Errorf("DaysTracked = %f, want 1.5", days)
	}

	f.openAt("browser", 2)
	f.setNow(2.25)
	days, err = f.engine.DaysTracked(ctx)
	if err != nil {
		t.Fatalf("DaysTracked failed: %v", err)
	}
	if !approxEqual(days, 2) {
		t.Errorf("DaysTracked with open session = %f, want 2", days)
	}
}

func TestCurrentSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.engine.CurrentSession(ctx)
	if err != nil || session != nil {
		t.Fatalf("expected no current session, got %+v, %v", session, err)
	}

	f.openAt("editor", 0.5)
	session, err = f.engine.CurrentSession(ctx)
	if err != nil {
		t.Fatalf("CurrentSession failed: %v", err)
	}
	if session == nil || session.ProcessName != "editor" {
		t.Errorf("unexpected current session %+v", session)
	}
}
