package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/goodtune/focustrack/internal/stats"
)

const (
	barWidth   = 30
	labelWidth = 24
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	labelStyle = lipgloss.NewStyle().
			Width(labelWidth)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	otherBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// Heat map shades from an untouched hour to a fully used one.
	heatStyles = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("236")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("22")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
	}
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// renderReport prints a report for a terminal.
func renderReport(w io.Writer, report *Report) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(w)
	cyan.Fprintln(w, rule)
	fmt.Fprintln(w, titleStyle.Render("FOCUS REPORT "+reportRange(report)))
	cyan.Fprintln(w, rule)
	fmt.Fprintln(w)

	cyan.Fprint(w, "Total:        ")
	green.Fprintln(w, report.Total)
	fmt.Fprintf(w, "Days tracked: %.1f\n", report.DaysTracked)
	if report.Current != nil {
		cyan.Fprint(w, "Now:          ")
		yellow.Fprintf(w, "%s", report.Current.ProcessName)
		fmt.Fprintf(w, " for %s (%s)\n", stats.FormatDuration(report.Current.DurationSeconds), truncate(report.Current.WindowTitle, 40))
	} else {
		fmt.Fprintln(w, "Now:          (idle)")
	}
	fmt.Fprintln(w)

	if len(report.TopApplications) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No sessions recorded in this range."))
		fmt.Fprintln(w)
		return
	}

	cyan.Fprintln(w, "Top applications")
	for i, app := range report.TopApplications {
		fmt.Fprintf(w, "%2d. %s %s %s\n",
			i+1,
			labelStyle.Render(truncate(app.ProcessName, labelWidth-1)),
			padLeft(stats.FormatDuration(app.Seconds), 11),
			barStyle.Render(bar(app.Seconds, report.TotalSeconds)))
	}
	fmt.Fprintln(w)

	if len(report.Breakdown) > 0 {
		cyan.Fprintln(w, "Breakdown")
		for _, slice := range report.Breakdown {
			style := barStyle
			if slice.Label == stats.OtherLabel {
				style = otherBarStyle
			}
			fmt.Fprintf(w, "    %s %5.1f%% %s\n",
				labelStyle.Render(truncate(slice.Label, labelWidth-1)),
				slice.Percent,
				style.Render(bar(slice.Percent, 100)))
		}
		fmt.Fprintln(w)
	}

	if len(report.Hourly) > 0 {
		cyan.Fprintln(w, "Hourly")
		renderHeatMap(w, report.Hourly)
		fmt.Fprintln(w)
	}
}

// renderHeatMap prints one row per hour with a shaded cell, the share of
// the hour in use and its top applications.
func renderHeatMap(w io.Writer, hours []stats.HourlyUsage) {
	cells := make([]string, 0, len(hours))
	for _, hour := range hours {
		cells = append(cells, heatCell(hour.Fraction))
	}
	fmt.Fprintf(w, "    %s\n", lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	fmt.Fprintf(w, "    %s\n\n", dimStyle.Render("0     6     12    18   23"))

	for _, hour := range hours {
		if hour.Fraction == 0 {
			continue
		}
		names := make([]string, 0, len(hour.Apps))
		for _, app := range hour.Apps {
			names = append(names, fmt.Sprintf("%s %s", app.ProcessName, stats.FormatDuration(app.Seconds)))
		}
		fmt.Fprintf(w, "    %02d:00 %s %3.0f%%  %s\n",
			hour.Hour,
			heatCell(hour.Fraction),
			hour.Fraction*100,
			dimStyle.Render(strings.Join(names, ", ")))
	}
}

func heatCell(fraction float64) string {
	level := int(math.Ceil(fraction * float64(len(heatStyles)-1)))
	level = max(0, min(level, len(heatStyles)-1))
	return heatStyles[level].Render("█")
}

func bar(value, total float64) string {
	if total <= 0 {
		return ""
	}
	n := int(math.Round(value / total * barWidth))
	n = max(0, min(n, barWidth))
	return strings.Repeat("█", n)
}

func reportRange(report *Report) string {
	switch {
	case report.Date != "":
		return report.Date
	case report.Start == "" && report.End == "":
		return "(all time)"
	}
	start, end := report.Start, report.End
	if start == "" {
		start = "..."
	}
	if end == "" {
		end = "..."
	}
	return start + " to " + end
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}

func padLeft(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat(" ", n-len(s)) + s
}
