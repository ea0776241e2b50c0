package timeconv

import (
	"fmt"
	"math"
	"time"
)

const (
	// SecondsPerDay is the number of seconds in one Timestamp unit.
	SecondsPerDay = 86400.0

	// EpochDay is the day number of 1970-01-01. Day numbers follow the
	// chronological Julian Day count, so midnight is always an integer.
	EpochDay = 2440588.0

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

var (
	// MinTimestamp is an unbounded lower edge for query windows.
	MinTimestamp = Timestamp(math.Inf(-1))

	// MaxTimestamp is an unbounded upper edge for query windows.
	MaxTimestamp = Timestamp(math.Inf(1))
)

// Timestamp is a continuous day-fraction time value. The integer part
// identifies the local calendar day and the fractional part is the local
// time of day as a fraction of 24 hours.
type Timestamp float64

// Day returns the timestamp of local midnight for the day containing t.
func (t Timestamp) Day() Timestamp {
	return Timestamp(math.Floor(float64(t)))
}

// IsBounded reports whether t is a finite value.
func (t Timestamp) IsBounded() bool {
	return !math.IsInf(float64(t), 0) && !math.IsNaN(float64(t))
}

// Now returns the current local time as a Timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime encodes the wall clock of t, in t's own location.
func FromTime(t time.Time) Timestamp {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	days := float64(wall.Unix())/SecondsPerDay + float64(wall.Nanosecond())/(SecondsPerDay*1e9)
	return Timestamp(days + EpochDay)
}

// ToTime decodes t into a time.Time carrying the same wall clock in
// time.Local.
func ToTime(t Timestamp) time.Time {
	w := wallClock(t)
	return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), time.Local)
}

// wallClock decodes t into a UTC time whose fields are the encoded wall
// clock.
func wallClock(t Timestamp) time.Time {
	secs := (float64(t) - EpochDay) * SecondsPerDay
	whole := math.Floor(secs)
	nanos := int64(math.Round((secs - whole) * 1e9))
	if nanos >= 1e9 {
		whole++
		nanos -= 1e9
	}
	return time.Unix(int64(whole), nanos).UTC()
}

// FromCalendarString returns the timestamp of local midnight on date
// (YYYY-MM-DD).
func FromCalendarString(date string) (Timestamp, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", date, err)
	}
	return Timestamp(float64(d.Unix())/SecondsPerDay + EpochDay), nil
}

// ToCalendarString formats t as "YYYY-MM-DD HH:MM:SS", rounding to the
// nearest second.
func ToCalendarString(t Timestamp) string {
	secs := math.Round((float64(t) - EpochDay) * SecondsPerDay)
	return time.Unix(int64(secs), 0).UTC().Format(dateTimeLayout)
}

// DateString formats the calendar day containing t as "YYYY-MM-DD".
func DateString(t Timestamp) string {
	secs := (float64(t.Day()) - EpochDay) * SecondsPerDay
	return time.Unix(int64(secs), 0).UTC().Format(dateLayout)
}

// Today returns the local calendar date for the clock's current time.
func Today(clock Clock) string {
	return DateString(FromTime(clock.Now()))
}

// NextDay returns the calendar day after date. Malformed input is
// returned unchanged.
func NextDay(date string) string {
	return shiftDay(date, 1)
}

// PreviousDay returns the calendar day before date. Malformed input is
// returned unchanged.
func PreviousDay(date string) string {
	return shiftDay(date, -1)
}

func shiftDay(date string, days int) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, days).Format(dateLayout)
}

// Seconds converts a timestamp difference into seconds.
func Seconds(d Timestamp) float64 {
	return float64(d) * SecondsPerDay
}

// FromDuration converts a duration into a timestamp difference.
func FromDuration(d time.Duration) Timestamp {
	return Timestamp(d.Seconds() / SecondsPerDay)
}
