package storage

import (
	"math"

	"github.com/goodtune/focustrack/internal/timeconv"
)

// Session is a contiguous interval during which one (process, window)
// pair was the tracked foreground target.
type Session struct {
	ID          int64               `json:"id" yaml:"id"`
	ProcessName string              `json:"process_name" yaml:"process_name"`
	WindowTitle string              `json:"window_title" yaml:"window_title"`
	StartTime   timeconv.Timestamp  `json:"start_time" yaml:"start_time"`
	EndTime     *timeconv.Timestamp `json:"end_time,omitempty" yaml:"end_time,omitempty"`
}

// IsOpen reports whether the session has no end time yet.
func (s Session) IsOpen() bool {
	return s.EndTime == nil
}

// EffectiveEnd returns the end time, treating an open session as ending
// at now.
func (s Session) EffectiveEnd(now timeconv.Timestamp) timeconv.Timestamp {
	if s.EndTime == nil {
		return now
	}
	return *s.EndTime
}

// Overlaps reports whether the session intersects the half-open window
// [start, end).
func (s Session) Overlaps(start, end timeconv.Timestamp) bool {
	if s.StartTime >= end {
		return false
	}
	return s.EndTime == nil || *s.EndTime > start
}

// OverlapSeconds returns the seconds the session spends inside
// [start, end), using now as the end of an open session.
func (s Session) OverlapSeconds(start, end, now timeconv.Timestamp) float64 {
	from := math.Max(float64(s.StartTime), float64(start))
	to := math.Min(float64(s.EffectiveEnd(now)), float64(end))
	if to <= from {
		return 0
	}
	return timeconv.Seconds(timeconv.Timestamp(to - from))
}

// ClosedAt returns a pointer suitable for Session.EndTime.
func ClosedAt(ts timeconv.Timestamp) *timeconv.Timestamp {
	return &ts
}
