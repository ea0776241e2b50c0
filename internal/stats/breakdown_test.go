package stats

import "testing"

func TestBreakdown(t *testing.T) {
	apps := []AppUsage{
		{ProcessName: "editor", Seconds: 600},
		{ProcessName: "browser", Seconds: 300},
		{ProcessName: "clock", Seconds: 10}, // 1% of 1000
	}

	slices := Breakdown(apps, 1000, DefaultOtherThresholdPercent)
	if len(slices) != 3 {
		t.Fatalf("expected 3 slices, got %+v", slices)
	}
	if slices[0].Label != "editor" || !approxEqual(slices[0].Percent, 60) {
		t.Errorf("unexpected first slice %+v", slices[0])
	}
	other := slices[2]
	if other.Label != OtherLabel {
		t.Fatalf("last slice should be %q, got %q", OtherLabel, other.Label)
	}
	// 10s below threshold plus 90s not covered by the listed apps.
	if !approxEqual(other.Seconds, 100) || !approxEqual(other.Percent, 10) {
		t.Errorf("unexpected other slice %+v", other)
	}

	var total float64
	for _, s := range slices {
		total += s.Percent
	}
	if !approxEqual(total, 100) {
		t.Errorf("slices should cover 100%%, got %f", total)
	}
}

func TestBreakdownWithoutOther(t *testing.T) {
	apps := []AppUsage{{ProcessName: "editor", Seconds: 50}, {ProcessName: "browser", Seconds: 50}}

	slices := Breakdown(apps, 100, DefaultOtherThresholdPercent)
	if len(slices) != 2 {
		t.Fatalf("expected no other slice, got %+v", slices)
	}
}

func TestBreakdownEmpty(t *testing.T) {
	if got := Breakdown(nil, 0, DefaultOtherThresholdPercent); got != nil {
		t.Errorf("expected nil for no usage, got %+v", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0s"},
		{-5, "0s"},
		{42.4, "42s"},
		{59.6, "1m 00s"},
		{61, "1m 01s"},
		{3723, "1h 02m 03s"},
		{90000, "25h 00m 00s"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
