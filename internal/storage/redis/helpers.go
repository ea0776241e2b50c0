package redis

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/timeconv"
)

// keySet names every key the session store touches.
type keySet struct {
	prefix  string
	seq     string
	byStart string
	byEnd   string
	open    string
}

func newKeySet(prefix string) keySet {
	if prefix == "" {
		prefix = "focustrack"
	}
	return keySet{
		prefix:  prefix,
		seq:     prefix + ":session:seq",
		byStart: prefix + ":sessions:by_start",
		byEnd:   prefix + ":sessions:by_end",
		open:    prefix + ":sessions:open",
	}
}

// sessionPrefix is completed with the id inside the open script.
func (k keySet) sessionPrefix() string {
	return k.prefix + ":session:"
}

func (k keySet) session(id int64) string {
	return k.sessionPrefix() + strconv.FormatInt(id, 10)
}

// formatTimestamp renders ts without losing precision.
func formatTimestamp(ts timeconv.Timestamp) string {
	return strconv.FormatFloat(float64(ts), 'f', -1, 64)
}

// scoreBound renders a sorted-set range bound; exclusive bounds are
// prefixed with "(".
func scoreBound(ts timeconv.Timestamp, exclusive bool) string {
	switch {
	case math.IsInf(float64(ts), 1):
		return "+inf"
	case math.IsInf(float64(ts), -1):
		return "-inf"
	}
	if exclusive {
		return "(" + formatTimestamp(ts)
	}
	return formatTimestamp(ts)
}

// parseSession converts a Redis hash to Session
func parseSession(data map[string]string) (*storage.Session, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	id, err := strconv.ParseInt(data["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse id: %w", err)
	}

	start, err := strconv.ParseFloat(data["start_time"], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start_time: %w", err)
	}

	session := &storage.Session{
		ID:          id,
		ProcessName: data["process_name"],
		WindowTitle: data["window_title"],
		StartTime:   timeconv.Timestamp(start),
	}

	if raw, ok := data["end_time"]; ok && raw != "" {
		end, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse end_time: %w", err)
		}
		session.EndTime = storage.ClosedAt(timeconv.Timestamp(end))
	}

	return session, nil
}
