package benchreport

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/FluffyLabs/typeberry-testing/stats"
)

// Metric is one row of a case table.
type Metric struct {
	Name  string
	Value func(stats.Summary) time.Duration
}

// Metrics are the compared values, in report order.
var Metrics = []Metric{
	{Name: "Avg Import Time", Value: func(s stats.Summary) time.Duration { return s.Mean }},
	{Name: "P50 Import Time", Value: func(s stats.Summary) time.Duration { return s.Percentiles.P50 }},
	{Name: "P90 Import Time", Value: func(s stats.Summary) time.Duration { return s.Percentiles.P90 }},
	{Name: "P99 Import Time", Value: func(s stats.Summary) time.Duration { return s.Percentiles.P99 }},
	{Name: "Total Duration", Value: func(s stats.Summary) time.Duration { return s.Sum }},
}

// Regressions counts the metrics of all cases that got slower.
func Regressions(comparisons []Comparison) int {
	n := 0
	for _, c := range comparisons {
		if c.Current == nil || c.Baseline == nil {
			continue
		}
		for _, m := range Metrics {
			d := Delta{Baseline: m.Value(c.Baseline.Summary), Current: m.Value(c.Current.Summary)}
			if d.Trend() == TrendSlower {
				n++
			}
		}
	}
	return n
}

// Render produces the markdown report. runURL links the CI run, "N/A" when
// empty.
func Render(comparisons []Comparison, runURL string) string {
	var b strings.Builder
	b.WriteString("## Picofuzz Benchmark Results\n\n")

	for _, c := range comparisons {
		fmt.Fprintf(&b, "### %s\n\n", c.Case)
		if c.Current == nil {
			b.WriteString("❌ Test failed or no results\n\n")
			continue
		}

		t := table.NewWriter()
		t.AppendHeader(table.Row{"Metric", "Baseline", "Current", "Difference"})
		for _, m := range Metrics {
			current := m.Value(c.Current.Summary)
			if c.Baseline == nil {
				t.AppendRow(table.Row{m.Name, "N/A", Millis(current), "Baseline not available"})
				continue
			}
			baseline := m.Value(c.Baseline.Summary)
			t.AppendRow(table.Row{m.Name, Millis(baseline), Millis(current), Delta{Baseline: baseline, Current: current}.String()})
		}
		b.WriteString(t.RenderMarkdown())
		b.WriteString("\n\n")
	}

	if runURL == "" {
		runURL = "N/A"
	}
	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "🤖 Automated benchmark from [workflow run](%s)", runURL)
	return b.String()
}
