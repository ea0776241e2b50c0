package stats

import (
	"fmt"
	"math"
)

const (
	// DefaultOtherThresholdPercent is the share below which an
	// application is folded into the "Other" slice.
	DefaultOtherThresholdPercent = 1.5

	// OtherLabel names the slice collecting small and unlisted apps.
	OtherLabel = "Other"
)

// Slice is one segment of a usage breakdown.
type Slice struct {
	Label   string  `json:"label" yaml:"label"`
	Seconds float64 `json:"seconds" yaml:"seconds"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// Breakdown splits overallSeconds into one slice per app at or above
// thresholdPercent, followed by an "Other" slice holding the smaller apps
// plus any time not attributed to apps.
func Breakdown(apps []AppUsage, overallSeconds, thresholdPercent float64) []Slice {
	if overallSeconds <= 0 {
		return nil
	}
	thresholdPercent = math.Max(0, thresholdPercent)

	slices := make([]Slice, 0, len(apps)+1)
	listed := 0.0
	other := 0.0
	for _, app := range apps {
		listed += app.Seconds
		percent := app.Seconds / overallSeconds * 100
		if percent < thresholdPercent {
			other += app.Seconds
			continue
		}
		slices = append(slices, Slice{Label: app.ProcessName, Seconds: app.Seconds, Percent: percent})
	}

	// Sub-millisecond remainders come from float rounding.
	if rest := overallSeconds - listed; rest > 1e-3 {
		other += rest
	}
	if other > 0 {
		slices = append(slices, Slice{Label: OtherLabel, Seconds: other, Percent: other / overallSeconds * 100})
	}
	return slices
}

// FormatDuration renders seconds as "1h 02m 03s", dropping leading zero
// units.
func FormatDuration(seconds float64) string {
	total := int64(math.Round(math.Max(0, seconds)))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
