package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"fraudwatch/bootstrap"
	"fraudwatch/core"
	"fraudwatch/latency"
	"fraudwatch/stress"

	"github.com/fatih/color"
)

// formatLatency renders microseconds with a readable unit
func formatLatency(us uint64) string {
	switch {
	case us >= 1_000_000:
		return fmt.Sprintf("%.1fs", float64(us)/1_000_000)
	case us >= 1_000:
		return fmt.Sprintf("%.1fms", float64(us)/1_000)
	default:
		return fmt.Sprintf("%dus", us)
	}
}

// formatSaturated returns a colored saturation marker
func formatSaturated(saturated bool) string {
	if saturated {
		return color.New(color.FgRed).Sprint("SATURATED")
	}
	return color.New(color.FgGreen).Sprint("ok")
}

// renderLevelLine prints the one-line outcome of a finished level
func renderLevelLine(w io.Writer, r stress.LevelResult) {
	fmt.Fprintf(w, "  Level %d: %d events/s of %d target (push p99=%s) %s\n",
		r.Level+1, int64(r.Achieved), r.Target, formatLatency(r.Push.P99), formatSaturated(r.Saturated))
}

// renderStressReport prints the results table, saturation analysis and
// latency detail of a stress run
func renderStressReport(w io.Writer, report *stress.Report) {
	if len(report.Results) == 0 {
		warningColor.Fprintln(w, "No stress levels completed")
		return
	}

	renderResultsTable(w, report)
	fmt.Fprintln(w)
	renderSaturationAnalysis(w, report)
	fmt.Fprintln(w)
	renderLatencyDetail(w, report.Results)
	fmt.Fprintln(w)
	renderStreamTotals(w, report)
}

func renderResultsTable(w io.Writer, report *stress.Report) {
	headerColor.Fprintln(w, strings.Repeat("=", 100))
	headerColor.Fprintf(w, "%s\n", centre("STRESS TEST RESULTS", 100))
	headerColor.Fprintln(w, strings.Repeat("=", 100))
	fmt.Fprintf(w, " %-5s %10s %10s %10s %10s %10s %8s %8s %10s\n",
		"Level", "Target/s", "Actual/s", "Push p50", "Push p99", "Proc p99", "Alerts", "Time", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range report.Results {
		fmt.Fprintf(w, " %-5d %10d %10d %10s %10s %10s %8d %7.1fs %10s\n",
			r.Level+1,
			r.Target,
			int64(r.Achieved),
			formatLatency(r.Push.P50),
			formatLatency(r.Push.P99),
			formatLatency(r.Processing.P99),
			r.Alerts,
			r.Elapsed.Seconds(),
			formatSaturated(r.Saturated))
	}
	headerColor.Fprintln(w, strings.Repeat("=", 100))

	trades, orders, alerts, elapsed := report.Totals()
	fmt.Fprintf(w, "Totals: %d trades, %d orders, %d alerts in %.1fs\n", trades, orders, alerts, elapsed.Seconds())
}

func renderSaturationAnalysis(w io.Writer, report *stress.Report) {
	summary := report.Summary
	if summary.Saturated() {
		sat := report.Results[summary.FirstSaturated]
		pct := 0.0
		if sat.Target > 0 {
			pct = sat.Achieved / float64(sat.Target) * 100
		}
		errorColor.Fprintf(w, "Saturation point: Level %d (~%d events/sec target)\n", sat.Level+1, sat.Target)
		fmt.Fprintf(w, "  Actual throughput: %d/sec (%.0f%% of target)\n", int64(sat.Achieved), pct)
		fmt.Fprintf(w, "  Push p99: %s\n", formatLatency(sat.Push.P99))
	} else {
		successColor.Fprintln(w, "No saturation detected - pipeline handled all load levels!")
	}

	if summary.PeakLevel >= 0 {
		fmt.Fprintf(w, "Peak sustained throughput: ~%d events/sec (Level %d)\n",
			int64(summary.Peak), report.Results[summary.PeakLevel].Level+1)
	}
}

func renderLatencyDetail(w io.Writer, results []stress.LevelResult) {
	fmt.Fprintln(w, "Latency detail:")
	fmt.Fprintf(w, " %-5s %10s %10s %10s %10s %10s %10s\n",
		"Level", "Push p50", "Push p95", "Push p99", "Proc p50", "Proc p95", "Proc p99")
	fmt.Fprintln(w, strings.Repeat("-", 75))
	for _, r := range results {
		fmt.Fprintf(w, " %-5d %10s %10s %10s %10s %10s %10s\n",
			r.Level+1,
			formatLatency(r.Push.P50),
			formatLatency(r.Push.P95),
			formatLatency(r.Push.P99),
			formatLatency(r.Processing.P50),
			formatLatency(r.Processing.P95),
			formatLatency(r.Processing.P99))
	}
}

func renderStreamTotals(w io.Writer, report *stress.Report) {
	totals := report.StreamTotals()
	fmt.Fprintln(w, "Stream output totals:")
	for _, s := range core.Streams {
		fmt.Fprintf(w, "  %-20s %d\n", s, totals[s])
	}
}

// renderRunSummary prints alert counts and latency after a run
func renderRunSummary(w io.Writer, app *bootstrap.App) {
	stats := app.RunStats()

	fmt.Fprintln(w)
	headerColor.Fprintln(w, "═══════════════════════════════════════════════════════════════")
	headerColor.Fprintln(w, "  Run Summary")
	headerColor.Fprintln(w, "═══════════════════════════════════════════════════════════════")
	fmt.Fprintln(w)

	printSection(w, "Throughput")
	printField(w, "Uptime", stats.Uptime.Round(time.Millisecond).String())
	printField(w, "Trades", fmt.Sprintf("%d", stats.TotalTrades))
	printField(w, "Orders", fmt.Sprintf("%d", stats.TotalOrders))
	for _, s := range core.Streams {
		printField(w, "Rows "+s.String(), fmt.Sprintf("%d", stats.StreamCounts[s]))
	}
	fmt.Fprintln(w)

	printSection(w, "Alerts")
	printField(w, "Total", fmt.Sprintf("%d", app.Engine.Total()))
	counts := app.Engine.Counts()
	for _, t := range core.AlertTypes {
		printField(w, t.String(), fmt.Sprintf("%d", counts[t]))
	}
	severities := app.Engine.SeverityCounts()
	for _, sev := range []core.Severity{core.SeverityCritical, core.SeverityHigh, core.SeverityMedium} {
		printField(w, sev.String(), fmt.Sprintf("%d", severities[sev]))
	}
	fmt.Fprintln(w)

	printSection(w, "Latency")
	snapshots := app.Tracker.Snapshots()
	for _, stage := range latency.Stages {
		s := snapshots[stage]
		if s.Count == 0 {
			printField(w, stage.String(), "no samples")
			continue
		}
		printField(w, stage.String(), fmt.Sprintf("p50=%s p95=%s p99=%s min=%s max=%s (n=%d)",
			formatLatency(s.P50), formatLatency(s.P95), formatLatency(s.P99),
			formatLatency(s.Min), formatLatency(s.Max), s.Count))
	}
	fmt.Fprintln(w)

	printField(w, "Redis publishing", formatBool(app.Publisher != nil))
	printField(w, "Dashboard", formatBool(app.APIServer != nil))
}

// centre pads s to be centred in width columns
func centre(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s
}
