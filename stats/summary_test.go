package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func durations(vs ...int64) []time.Duration {
	out := make([]time.Duration, len(vs))
	for i, v := range vs {
		out[i] = time.Duration(v)
	}
	return out
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(durations(5, 1, 4, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, 5, s.Count)
	assert.Equal(t, time.Duration(15), s.Sum)
	assert.Equal(t, time.Duration(3), s.Mean)
	assert.Equal(t, time.Duration(3), s.Median)
	assert.Equal(t, time.Duration(1), s.Min)
	assert.Equal(t, time.Duration(5), s.Max)
	assert.Equal(t, time.Duration(4), s.Range)
	assert.InDelta(t, 2.0, s.Variance, 1e-9)
	assert.InDelta(t, 1.41421356, s.StdDev, 1e-6)
	assert.Equal(t, time.Duration(3), s.Percentiles.P50)
	assert.Equal(t, time.Duration(5), s.Percentiles.P99)
	assert.Equal(t, time.Duration(1), s.Percentiles.P1)
}

func TestSummarizeDoesNotReorderInput(t *testing.T) {
	in := durations(3, 1, 2)
	_, err := Summarize(in)
	require.NoError(t, err)
	assert.Equal(t, durations(3, 1, 2), in)
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	require.Error(t, err)
	assert.True(t, IsEmptySampleSet(err))
}

func TestSummarizeSingleSample(t *testing.T) {
	s, err := Summarize(durations(42))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(42), s.Median)
	assert.Equal(t, time.Duration(42), s.Percentiles.P1)
	assert.Equal(t, time.Duration(42), s.Percentiles.P99)
	assert.Zero(t, s.StdDev)
	assert.Zero(t, s.Range)
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name    string
		samples []time.Duration
		p       float64
		want    time.Duration
	}{
		{"median of even set rounds half up", durations(1, 2, 3, 4), 50, 3},
		{"exact rank", durations(1, 2, 3, 4, 5), 50, 3},
		{"p90 interpolates", durations(10, 20, 30, 40, 50), 90, 46},
		{"p0 is min", durations(10, 20, 30), 0, 10},
		{"p100 is max", durations(10, 20, 30), 100, 30},
		{"p25 between ranks", durations(0, 100), 25, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentile(tt.samples, tt.p))
		})
	}
}

func TestPercentileValuesGet(t *testing.T) {
	p := PercentileValues{P1: 1, P50: 50, P99: 99}
	for _, pct := range Percentiles {
		_, ok := p.Get(pct)
		assert.True(t, ok, "percentile %d", pct)
	}
	v, ok := p.Get(50)
	assert.True(t, ok)
	assert.Equal(t, time.Duration(50), v)

	_, ok = p.Get(42)
	assert.False(t, ok)
}
