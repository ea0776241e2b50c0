package stats

import (
	"fmt"

	"github.com/goodtune/focustrack/internal/timeconv"
)

// Window is a half-open query range [Start, End). Infinite edges are
// unbounded.
type Window struct {
	Start timeconv.Timestamp
	End   timeconv.Timestamp
}

// AllTime returns a window with no lower or upper bound.
func AllTime() Window {
	return Window{Start: timeconv.MinTimestamp, End: timeconv.MaxTimestamp}
}

// DayWindow covers the local calendar day date (YYYY-MM-DD).
func DayWindow(date string) (Window, error) {
	start, err := timeconv.FromCalendarString(date)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: start + 1}, nil
}

// DateRange covers startDate through endDate inclusive. An empty
// startDate or endDate leaves that side unbounded.
func DateRange(startDate, endDate string) (Window, error) {
	w := AllTime()
	if startDate != "" {
		start, err := timeconv.FromCalendarString(startDate)
		if err != nil {
			return Window{}, err
		}
		w.Start = start
	}
	if endDate != "" {
		end, err := timeconv.FromCalendarString(endDate)
		if err != nil {
			return Window{}, err
		}
		w.End = end + 1
	}
	if w.End <= w.Start {
		return Window{}, fmt.Errorf("end date %s is before start date %s", endDate, startDate)
	}
	return w, nil
}

// Hour returns the hour-long window starting hour hours after the
// window start. It is meant for day windows.
func (w Window) Hour(hour int) Window {
	return Window{
		Start: w.Start + timeconv.Timestamp(float64(hour)/24),
		End:   w.Start + timeconv.Timestamp(float64(hour+1)/24),
	}
}

// Bounded reports whether both edges are finite.
func (w Window) Bounded() bool {
	return w.Start.IsBounded() && w.End.IsBounded()
}

func (w Window) String() string {
	start, end := "-", "-"
	if w.Start.IsBounded() {
		start = timeconv.ToCalendarString(w.Start)
	}
	if w.End.IsBounded() {
		end = timeconv.ToCalendarString(w.End)
	}
	return fmt.Sprintf("[%s, %s)", start, end)
}
