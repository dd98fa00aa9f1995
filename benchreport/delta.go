package benchreport

import (
	"fmt"
	"math"
	"time"
)

// SimilarThreshold is the relative change below which two timings count as
// equal.
const SimilarThreshold = 0.05

// Trend classifies a change against the baseline.
type Trend string

const (
	TrendSimilar Trend = "≈"
	TrendSlower  Trend = "🔴"
	TrendFaster  Trend = "🟢"
)

// Delta compares one metric of the current run with the baseline.
type Delta struct {
	Baseline time.Duration
	Current  time.Duration
}

// Diff is Current minus Baseline.
func (d Delta) Diff() time.Duration {
	return d.Current - d.Baseline
}

// Percent is the relative change in percent. It is NaN when the baseline is
// zero.
func (d Delta) Percent() float64 {
	if d.Baseline == 0 {
		return math.NaN()
	}
	return float64(d.Diff()) / float64(d.Baseline) * 100
}

// Trend reports whether the current run is slower, faster or similar.
func (d Delta) Trend() Trend {
	diff := float64(d.Diff())
	switch {
	case diff == 0, math.Abs(diff) < float64(d.Baseline)*SimilarThreshold:
		return TrendSimilar
	case diff > 0:
		return TrendSlower
	default:
		return TrendFaster
	}
}

// String renders e.g. "🔴 +1.50ms (+12.00%)".
func (d Delta) String() string {
	sign := ""
	if d.Diff() > 0 {
		sign = "+"
	}
	pct := "n/a"
	if p := d.Percent(); !math.IsNaN(p) {
		pct = fmt.Sprintf("%s%.2f%%", sign, p)
	}
	return fmt.Sprintf("%s %s%s (%s)", d.Trend(), sign, Millis(d.Diff()), pct)
}

// Millis renders a duration in milliseconds with two decimals.
func Millis(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}
