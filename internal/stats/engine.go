// Package stats aggregates stored sessions into totals, rankings and
// hourly usage.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/goodtune/focustrack/internal/metrics"
	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/timeconv"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultTopLimit is used when a non-positive limit is requested.
	DefaultTopLimit = 10

	// DefaultCacheSize is the number of completed days kept in memory.
	DefaultCacheSize = 64

	secondsPerHour = 3600.0
)

// AppUsage is the time spent in one process.
type AppUsage struct {
	ProcessName string  `json:"process_name" yaml:"process_name"`
	Seconds     float64 `json:"seconds" yaml:"seconds"`
}

// HourlyUsage describes one hour of a day.
type HourlyUsage struct {
	Hour     int        `json:"hour" yaml:"hour"`
	Fraction float64    `json:"fraction" yaml:"fraction"` // share of the hour in use, 0-1
	Apps     []AppUsage `json:"apps,omitempty" yaml:"apps,omitempty"`
}

// Options configures an Engine.
type Options struct {
	CacheSize int
}

// Engine answers read-only questions about stored sessions.
type Engine struct {
	store  storage.SessionStore
	clock  timeconv.Clock
	cache  *lru.Cache[string, [24]HourlyUsage]
	logger zerolog.Logger
}

// NewEngine creates an aggregation engine over store.
func NewEngine(store storage.SessionStore, clock timeconv.Clock, opts Options, logger zerolog.Logger) (*Engine, error) {
	if clock == nil {
		clock = timeconv.RealClock{}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, [24]HourlyUsage](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create report cache: %w", err)
	}

	return &Engine{
		store:  store,
		clock:  clock,
		cache:  cache,
		logger: logger.With().Str("component", "stats").Logger(),
	}, nil
}

func (e *Engine) now() timeconv.Timestamp {
	return timeconv.FromTime(e.clock.Now())
}

// TotalTime returns the seconds of tracked time inside w.
func (e *Engine) TotalTime(ctx context.Context, w Window) (float64, error) {
	sessions, err := e.store.SessionsOverlapping(ctx, w.Start, w.End)
	if err != nil {
		return 0, fmt.Errorf("total time %s: %w", w, err)
	}
	return totalSeconds(sessions, w, e.now()), nil
}

// TopApplications ranks processes by time spent inside w. Ties keep the
// order in which the processes were first seen.
func (e *Engine) TopApplications(ctx context.Context, w Window, limit int) ([]AppUsage, error) {
	sessions, err := e.store.SessionsOverlapping(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("top applications %s: %w", w, err)
	}
	return rankApplications(sessions, w, e.now(), limit), nil
}

// HourlyUsage returns the share of each hour of date that was tracked.
func (e *Engine) HourlyUsage(ctx context.Context, date string) ([24]float64, error) {
	var fractions [24]float64

	hours, err := e.DetailedHourlyUsage(ctx, date, 0)
	if err != nil {
		return fractions, err
	}
	for i, hour := range hours {
		fractions[i] = hour.Fraction
	}
	return fractions, nil
}

// DetailedHourlyUsage returns per-hour usage of date, each hour carrying
// up to appsPerHour of its top applications. Days that have already ended
// are served from the cache.
func (e *Engine) DetailedHourlyUsage(ctx context.Context, date string, appsPerHour int) ([24]HourlyUsage, error) {
	var hours [24]HourlyUsage

	day, err := DayWindow(date)
	if err != nil {
		return hours, err
	}

	now := e.now()
	key := date + "/" + strconv.Itoa(appsPerHour)
	complete := day.End <= now
	if complete {
		if cached, ok := e.cache.Get(key); ok {
			metrics.ReportCacheHits.Inc()
			return cloneHours(cached), nil
		}
		metrics.ReportCacheMisses.Inc()
	}

	sessions, err := e.store.SessionsOverlapping(ctx, day.Start, day.End)
	if err != nil {
		return hours, fmt.Errorf("hourly usage %s: %w", date, err)
	}

	for h := range hours {
		hour := day.Hour(h)
		seconds := totalSeconds(sessions, hour, now)

		hours[h] = HourlyUsage{
			Hour:     h,
			Fraction: math.Min(1, math.Max(0, seconds/secondsPerHour)),
		}
		if appsPerHour > 0 && seconds > 0 {
			hours[h].Apps = rankApplications(sessions, hour, now, appsPerHour)
		}
	}

	if complete {
		e.cache.Add(key, cloneHours(hours))
		e.logger.Debug().Str("date", date).Msg("Cached hourly usage")
	}
	return hours, nil
}

// cloneHours copies the per-hour app slices so callers never share the
// cached backing arrays.
func cloneHours(hours [24]HourlyUsage) [24]HourlyUsage {
	for h := range hours {
		if hours[h].Apps != nil {
			hours[h].Apps = append([]AppUsage(nil), hours[h].Apps...)
		}
	}
	return hours
}

// DaysTracked returns the span of the whole dataset in days, or 0 when
// nothing has been recorded.
func (e *Engine) DaysTracked(ctx context.Context) (float64, error) {
	first, ok, err := e.store.MinStartTime(ctx)
	if err != nil || !ok {
		return 0, err
	}
	last, ok, err := e.store.MaxEndOrNow(ctx)
	if err != nil || !ok {
		return 0, err
	}
	return math.Max(0, float64(last-first)), nil
}

// CurrentSession returns the open session, or nil when nothing is being
// tracked.
func (e *Engine) CurrentSession(ctx context.Context) (*storage.Session, error) {
	session, err := e.store.CurrentOpenSession(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return session, err
}

// Sessions lists the sessions overlapping w.
func (e *Engine) Sessions(ctx context.Context, w Window) ([]storage.Session, error) {
	return e.store.SessionsOverlapping(ctx, w.Start, w.End)
}

// Now returns the engine clock as a timestamp.
func (e *Engine) Now() timeconv.Timestamp {
	return e.now()
}

func totalSeconds(sessions []storage.Session, w Window, now timeconv.Timestamp) float64 {
	var total float64
	for _, session := range sessions {
		total += session.OverlapSeconds(w.Start, w.End, now)
	}
	return total
}

func rankApplications(sessions []storage.Session, w Window, now timeconv.Timestamp, limit int) []AppUsage {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	index := make(map[string]int)
	apps := make([]AppUsage, 0)
	for _, session := range sessions {
		seconds := session.OverlapSeconds(w.Start, w.End, now)
		if seconds <= 0 {
			continue
		}
		i, ok := index[session.ProcessName]
		if !ok {
			i = len(apps)
			index[session.ProcessName] = i
			apps = append(apps, AppUsage{ProcessName: session.ProcessName})
		}
		apps[i].Seconds += seconds
	}

	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].Seconds > apps[j].Seconds
	})
	if len(apps) > limit {
		apps = apps[:limit]
	}
	return apps
}
