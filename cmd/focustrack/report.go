package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/goodtune/focustrack/internal/config"
	"github.com/goodtune/focustrack/internal/stats"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var (
	reportDate   string
	reportStart  string
	reportEnd    string
	reportAll    bool
	reportLimit  int
	reportApps   int
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize recorded sessions",
	Long: `Print the total tracked time, the top applications, the usage breakdown
and, for a single day, the hourly heat map.

SQLite and Redis stores can be read while "focustrack run" is writing. A bolt
store is locked by the running tracker; query its admin API instead.`,
	Example: `  focustrack report
  focustrack report --date 2024-06-12 --apps-per-hour 2
  focustrack report --start 2024-06-01 --end 2024-06-30 --output yaml
  focustrack report --all --limit 5 --output json`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "Day to report (YYYY-MM-DD) - defaults to today")
	reportCmd.Flags().StringVar(&reportStart, "start", "", "First day of a date range (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "Last day of a date range (YYYY-MM-DD)")
	reportCmd.Flags().BoolVar(&reportAll, "all", false, "Report over all recorded sessions")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 0, "Number of top applications (default from config)")
	reportCmd.Flags().IntVar(&reportApps, "apps-per-hour", -1, "Applications listed per heat map hour (default from config)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", outputText, "Output format: text, json or yaml")
	reportCmd.MarkFlagsMutuallyExclusive("date", "start")
	reportCmd.MarkFlagsMutuallyExclusive("date", "end")
	reportCmd.MarkFlagsMutuallyExclusive("all", "date")
	reportCmd.MarkFlagsMutuallyExclusive("all", "start")
	reportCmd.MarkFlagsMutuallyExclusive("all", "end")
	rootCmd.AddCommand(reportCmd)
}

// reportRequest selects what a report covers.
type reportRequest struct {
	Date                  string // single day; empty means a range
	Start                 string
	End                   string
	All                   bool
	Limit                 int
	AppsPerHour           int
	OtherThresholdPercent float64
}

// Report is the document printed by the report command.
type Report struct {
	Date            string              `json:"date,omitempty" yaml:"date,omitempty"`
	Start           string              `json:"start,omitempty" yaml:"start,omitempty"`
	End             string              `json:"end,omitempty" yaml:"end,omitempty"`
	GeneratedAt     string              `json:"generated_at" yaml:"generated_at"`
	TotalSeconds    float64             `json:"total_seconds" yaml:"total_seconds"`
	Total           string              `json:"total" yaml:"total"`
	DaysTracked     float64             `json:"days_tracked" yaml:"days_tracked"`
	Current         *CurrentFocus       `json:"current,omitempty" yaml:"current,omitempty"`
	TopApplications []stats.AppUsage    `json:"top_applications" yaml:"top_applications"`
	Breakdown       []stats.Slice       `json:"breakdown" yaml:"breakdown"`
	Hourly          []stats.HourlyUsage `json:"hourly,omitempty" yaml:"hourly,omitempty"`
}

// CurrentFocus describes the session being tracked right now.
type CurrentFocus struct {
	ProcessName     string  `json:"process_name" yaml:"process_name"`
	WindowTitle     string  `json:"window_title" yaml:"window_title"`
	Since           string  `json:"since" yaml:"since"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
}

func runReport(cmd *cobra.Command, args []string) error {
	switch reportOutput {
	case outputText, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unknown output format %q (expected text, json or yaml)", reportOutput)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	clock := timeconv.RealClock{}
	store, err := openStorage(cfg.Storage, clock)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	engine, err := stats.NewEngine(store.Sessions(), clock, stats.Options{CacheSize: cfg.Report.CacheSize}, logger)
	if err != nil {
		return err
	}

	req := reportRequest{
		Date:                  reportDate,
		Start:                 reportStart,
		End:                   reportEnd,
		All:                   reportAll,
		Limit:                 cfg.Report.TopLimit,
		AppsPerHour:           cfg.Report.AppsPerHour,
		OtherThresholdPercent: cfg.Report.OtherThresholdPercent,
	}
	if reportLimit > 0 {
		req.Limit = reportLimit
	}
	if reportApps >= 0 {
		req.AppsPerHour = reportApps
	}
	if !req.All && req.Start == "" && req.End == "" && req.Date == "" {
		req.Date = timeconv.Today(clock)
	}

	report, err := buildReport(cmd.Context(), engine, req)
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), report, reportOutput)
}

// buildReport runs the queries behind a report.
func buildReport(ctx context.Context, engine *stats.Engine, req reportRequest) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		window stats.Window
		err    error
	)
	switch {
	case req.Date != "":
		window, err = stats.DayWindow(req.Date)
	case req.All:
		window = stats.AllTime()
	default:
		window, err = stats.DateRange(req.Start, req.End)
	}
	if err != nil {
		return nil, err
	}

	now := engine.Now()
	report := &Report{
		Date:        req.Date,
		Start:       req.Start,
		End:         req.End,
		GeneratedAt: timeconv.ToCalendarString(now),
	}

	if report.TotalSeconds, err = engine.TotalTime(ctx, window); err != nil {
		return nil, fmt.Errorf("total time: %w", err)
	}
	report.Total = stats.FormatDuration(report.TotalSeconds)

	if report.DaysTracked, err = engine.DaysTracked(ctx); err != nil {
		return nil, fmt.Errorf("days tracked: %w", err)
	}

	if report.TopApplications, err = engine.TopApplications(ctx, window, req.Limit); err != nil {
		return nil, fmt.Errorf("top applications: %w", err)
	}
	report.Breakdown = stats.Breakdown(report.TopApplications, report.TotalSeconds, req.OtherThresholdPercent)

	current, err := engine.CurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("current session: %w", err)
	}
	if current != nil {
		report.Current = &CurrentFocus{
			ProcessName:     current.ProcessName,
			WindowTitle:     current.WindowTitle,
			Since:           timeconv.ToCalendarString(current.StartTime),
			DurationSeconds: timeconv.Seconds(current.EffectiveEnd(now) - current.StartTime),
		}
	}

	if req.Date != "" {
		hours, err := engine.DetailedHourlyUsage(ctx, req.Date, req.AppsPerHour)
		if err != nil {
			return nil, fmt.Errorf("hourly usage: %w", err)
		}
		report.Hourly = hours[:]
	}

	return report, nil
}

func writeReport(w io.Writer, report *Report, format string) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		renderReport(w, report)
		return nil
	}
}

