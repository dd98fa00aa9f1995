package stats

import (
	"math"
	"slices"
	"time"
)

// Percentiles reported for every summary.
var Percentiles = []int{1, 5, 10, 25, 50, 75, 90, 95, 99}

// PercentileValues holds the durations at each of Percentiles.
type PercentileValues struct {
	P1, P5, P10, P25, P50, P75, P90, P95, P99 time.Duration
}

// Summary is a read-only snapshot of a sample set.
type Summary struct {
	Count       int
	Sum         time.Duration
	Mean        time.Duration
	Median      time.Duration
	Min         time.Duration
	Max         time.Duration
	Range       time.Duration
	StdDev      float64 // nanoseconds
	Variance    float64 // nanoseconds squared, population variance
	Percentiles PercentileValues
}

// Summarize computes the statistics of samples. The slice is not modified.
func Summarize(samples []time.Duration) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, &EmptySampleSetError{}
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum time.Duration
	for _, v := range samples {
		sum += v
	}
	n := len(samples)
	mean := sum / time.Duration(n)

	// Deltas are taken in integer space and accumulated as float64 so large
	// durations cannot overflow the squares.
	var acc float64
	for _, v := range samples {
		diff := float64(v - mean)
		acc += diff * diff
	}
	variance := acc / float64(n)

	return Summary{
		Count:    n,
		Sum:      sum,
		Mean:     mean,
		Median:   Percentile(sorted, 50),
		Min:      sorted[0],
		Max:      sorted[n-1],
		Range:    sorted[n-1] - sorted[0],
		StdDev:   math.Sqrt(variance),
		Variance: variance,
		Percentiles: PercentileValues{
			P1:  Percentile(sorted, 1),
			P5:  Percentile(sorted, 5),
			P10: Percentile(sorted, 10),
			P25: Percentile(sorted, 25),
			P50: Percentile(sorted, 50),
			P75: Percentile(sorted, 75),
			P90: Percentile(sorted, 90),
			P95: Percentile(sorted, 95),
			P99: Percentile(sorted, 99),
		},
	}, nil
}

// Percentile returns the p-th percentile of an ascending slice using linear
// interpolation between the closest ranks, rounded to the nearest
// nanosecond. sorted must not be empty.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	index := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	lo, hi := float64(sorted[lower]), float64(sorted[upper])
	return time.Duration(math.Round(lo + weight*(hi-lo)))
}

// Get returns the value for one of Percentiles.
func (p PercentileValues) Get(percentile int) (time.Duration, bool) {
	switch percentile {
	case 1:
		return p.P1, true
	case 5:
		return p.P5, true
	case 10:
		return p.P10, true
	case 25:
		return p.P25, true
	case 50:
		return p.P50, true
	case 75:
		return p.P75, true
	case 90:
		return p.P90, true
	case 95:
		return p.P95, true
	case 99:
		return p.P99, true
	default:
		return 0, false
	}
}
