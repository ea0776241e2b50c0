package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/goodtune/focustrack/internal/stats"
	"github.com/goodtune/focustrack/internal/storage/memory"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const testDate = "2024-06-12"

func newTestEngine(t *testing.T) (*stats.Engine, *memory.Store, *timeconv.TestClock, timeconv.Timestamp) {
	t.Helper()

	day, err := timeconv.FromCalendarString(testDate)
	if err != nil {
		t.Fatalf("parse test date: %v", err)
	}
	clock := timeconv.NewTestClock(timeconv.ToTime(day))
	store := memory.New(clock)

	engine, err := stats.NewEngine(store.Sessions(), clock, stats.Options{CacheSize: 4}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine, store, clock, day
}

func recordSession(t *testing.T, store *memory.Store, clock *timeconv.TestClock, from, to timeconv.Timestamp, process string) {
	t.Helper()

	ctx := context.Background()
	clock.SetTimestamp(from)
	id, err := store.Sessions().OpenSession(ctx, process, process+" window")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	clock.SetTimestamp(to)
	if err := store.Sessions().CloseSession(ctx, id); err != nil {
		t.Fatalf("close session: %v", err)
	}
}

func TestBuildReportDay(t *testing.T) {
	engine, store, clock, day := newTestEngine(t)
	recordSession(t, store, clock, day+0.25, day+0.5, "editor")
	recordSession(t, store, clock, day+0.5, day+0.5+1.0/24, "terminal")

	// Leave a session open at report time
	clock.SetTimestamp(day + 0.75)
	if _, err := store.Sessions().OpenSession(context.Background(), "browser", "docs"); err != nil {
		t.Fatalf("open session: %v", err)
	}
	clock.SetTimestamp(day + 0.75 + 1.0/48)

	report, err := buildReport(context.Background(), engine, reportRequest{
		Date:                  testDate,
		Limit:                 10,
		AppsPerHour:           2,
		OtherThresholdPercent: stats.DefaultOtherThresholdPercent,
	})
	if err != nil {
		t.Fatalf("buildReport failed: %v", err)
	}

	// 6h + 1h + 30m
	if report.TotalSeconds < 26999 || report.TotalSeconds > 27001 {
		t.Errorf("total = %v, want ~27000", report.TotalSeconds)
	}
	if report.Total != "7h 30m 00s" {
		t.Errorf("total string = %q", report.Total)
	}
	if len(report.TopApplications) != 3 || report.TopApplications[0].ProcessName != "editor" {
		t.Errorf("top applications = %+v", report.TopApplications)
	}
	if report.Current == nil || report.Current.ProcessName != "browser" {
		t.Fatalf("current = %+v, want browser", report.Current)
	}
	if d := report.Current.DurationSeconds; d < 1799 || d > 1801 {
		t.Errorf("current duration = %v, want ~1800", d)
	}
	if len(report.Hourly) != 24 {
		t.Fatalf("len(hourly) = %d, want 24", len(report.Hourly))
	}
	if f := report.Hourly[6].Fraction; f < 0.999 {
		t.Errorf("hour 6 fraction = %v, want 1", f)
	}
}

func TestBuildReportRange(t *testing.T) {
	engine, store, clock, day := newTestEngine(t)
	recordSession(t, store, clock, day+0.25, day+0.5, "editor")
	recordSession(t, store, clock, day+1.25, day+1.5, "browser")
	clock.SetTimestamp(day + 3)

	tests := []struct {
		name string
		req  reportRequest
		want int // applications
	}{
		{"first day", reportRequest{Start: testDate, End: testDate, Limit: 10}, 1},
		{"both days", reportRequest{Start: testDate, End: "2024-06-13", Limit: 10}, 2},
		{"from second day", reportRequest{Start: "2024-06-13", Limit: 10}, 1},
		{"all time", reportRequest{All: true, Limit: 10}, 2},
		{"limited", reportRequest{All: true, Limit: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := buildReport(context.Background(), engine, tt.req)
			if err != nil {
				t.Fatalf("buildReport failed: %v", err)
			}
			if len(report.TopApplications) != tt.want {
				t.Errorf("applications = %+v, want %d", report.TopApplications, tt.want)
			}
			if report.Hourly != nil {
				t.Error("range reports should not carry hourly usage")
			}
			if report.Current != nil {
				t.Errorf("current = %+v, want nil", report.Current)
			}
		})
	}
}

func TestBuildReportInvalidDates(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	for _, req := range []reportRequest{
		{Date: "12/06/2024"},
		{Start: "2024-06-13", End: "2024-06-12"},
		{End: "tomorrow"},
	} {
		if _, err := buildReport(context.Background(), engine, req); err == nil {
			t.Errorf("buildReport(%+v) succeeded, want error", req)
		}
	}
}

func sampleReport(t *testing.T) *Report {
	t.Helper()

	engine, store, clock, day := newTestEngine(t)
	recordSession(t, store, clock, day+0.25, day+0.5, "editor")
	recordSession(t, store, clock, day+0.5, day+0.5+1.0/24, "terminal")
	clock.SetTimestamp(day + 2)

	report, err := buildReport(context.Background(), engine, reportRequest{
		Date:                  testDate,
		Limit:                 10,
		AppsPerHour:           1,
		OtherThresholdPercent: stats.DefaultOtherThresholdPercent,
	})
	if err != nil {
		t.Fatalf("buildReport failed: %v", err)
	}
	return report
}

func TestWriteReportJSON(t *testing.T) {
	report := sampleReport(t)

	var buf bytes.Buffer
	if err := writeReport(&buf, report, outputJSON); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if decoded.Date != testDate || decoded.Total != report.Total {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.Hourly) != 24 {
		t.Errorf("len(hourly) = %d, want 24", len(decoded.Hourly))
	}
}

func TestWriteReportYAML(t *testing.T) {
	report := sampleReport(t)

	var buf bytes.Buffer
	if err := writeReport(&buf, report, outputYAML); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode YAML: %v", err)
	}
	if decoded["total"] != "7h 00m 00s" {
		t.Errorf("total = %v, want 7h 00m 00s", decoded["total"])
	}
	apps, ok := decoded["top_applications"].([]any)
	if !ok || len(apps) != 2 {
		t.Errorf("top_applications = %v", decoded["top_applications"])
	}
}

func TestWriteReportText(t *testing.T) {
	color.NoColor = true
	report := sampleReport(t)

	var buf bytes.Buffer
	if err := writeReport(&buf, report, outputText); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"FOCUS REPORT " + testDate,
		"7h 00m 00s",
		"(idle)",
		"Top applications",
		"editor",
		"terminal",
		"Breakdown",
		"Hourly",
		"06:00",
		"12:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "03:00") {
		t.Errorf("text report lists an unused hour:\n%s", out)
	}
}

func TestWriteReportTextEmpty(t *testing.T) {
	color.NoColor = true
	engine, _, _, _ := newTestEngine(t)

	report, err := buildReport(context.Background(), engine, reportRequest{All: true, Limit: 10})
	if err != nil {
		t.Fatalf("buildReport failed: %v", err)
	}

	var buf bytes.Buffer
	if err := writeReport(&buf, report, outputText); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No sessions recorded") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "(all time)") {
		t.Errorf("missing range label:\n%s", buf.String())
	}
}

func TestRenderHelpers(t *testing.T) {
	if got := bar(15, 30); len([]rune(got)) != barWidth/2 {
		t.Errorf("bar(15, 30) = %q, want %d blocks", got, barWidth/2)
	}
	if got := bar(5, 0); got != "" {
		t.Errorf("bar with zero total = %q, want empty", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q, want abc…", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
	if got := padLeft("42s", 5); got != "  42s" {
		t.Errorf("padLeft = %q", got)
	}
	if got := reportRange(&Report{Start: testDate}); got != testDate+" to ..." {
		t.Errorf("reportRange = %q", got)
	}
}
