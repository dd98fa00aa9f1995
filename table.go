package picofuzz

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// printResultsTable prints the aggregated timings of a run.
func (f *Fuzzer) printResultsTable(result *Result) {
	t := table.NewWriter()
	t.SetOutputMirror(f.config.Out)
	t.SetTitle(fmt.Sprintf("picofuzz results for %s (%s)", result.Peer, formatDuration(result.Duration)))

	t.AppendHeader(table.Row{"Files", "Rounds", "Messages", "Samples", "Mean", "Median", "p90", "p99", "Max"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Files", Align: text.AlignRight},
		{Name: "Rounds", Align: text.AlignRight},
		{Name: "Messages", Align: text.AlignRight},
		{Name: "Samples", Align: text.AlignRight},
		{Name: "Mean", Align: text.AlignRight},
		{Name: "Median", Align: text.AlignRight},
		{Name: "p90", Align: text.AlignRight},
		{Name: "p99", Align: text.AlignRight},
		{Name: "Max", Align: text.AlignRight},
	})

	if s := result.Summary; s != nil {
		t.AppendRow(table.Row{
			result.Files,
			result.Rounds,
			result.Messages,
			s.Count,
			formatLatency(s.Mean),
			formatLatency(s.Median),
			formatLatency(s.Percentiles.P90),
			formatLatency(s.Percentiles.P99),
			formatLatency(s.Max),
		})
	} else {
		t.AppendRow(table.Row{result.Files, result.Rounds, result.Messages, 0, "-", "-", "-", "-", "-"})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "run", result.RunID})
	t.SetStyle(table.StyleLight)
	t.Render()
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// formatLatency renders a latency in microseconds, matching the text report.
func formatLatency(d time.Duration) string {
	return fmt.Sprintf("%.1fμs", float64(d)/float64(time.Microsecond))
}
