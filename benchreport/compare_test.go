package benchreport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/testlog"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FluffyLabs/typeberry-testing/stats"
)

var testTime = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func testRow(peer string, mean time.Duration) stats.Row {
	return stats.Row{
		Peer:      peer,
		Timestamp: testTime,
		Summary: stats.Summary{
			Count:  10,
			Sum:    10 * mean,
			Mean:   mean,
			Median: mean,
			Min:    mean / 2,
			Max:    2 * mean,
			Range:  mean + mean/2,
			Percentiles: stats.PercentileValues{
				P1: mean / 2, P5: mean / 2, P10: mean / 2, P25: mean, P50: mean,
				P75: mean, P90: 2 * mean, P95: 2 * mean, P99: 2 * mean,
			},
		},
	}
}

func csvFile(rows ...stats.Row) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n") + "\n"
}

func baselineServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompare(t *testing.T) {
	srv := baselineServer(t, map[string]string{
		"safrole.csv": csvFile(testRow("old@0.0.1", time.Second), testRow("typeberry@0.1.0", 10*time.Millisecond)),
		"storage.csv": "not,a,row\n",
	})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "safrole.csv"), []byte(csvFile(testRow("typeberry@0.1.1", 12*time.Millisecond))), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "storage.csv"), []byte(csvFile(testRow("typeberry@0.1.1", time.Millisecond))), 0o644))

	c := NewComparer(Config{
		ResultDir: dir,
		Suite:     Suite{BaselineURL: srv.URL + "/", Cases: []string{"fallback", "safrole", "storage"}},
		Log:       testlog.Logger(t, log.LevelInfo),
	})
	got, err := c.Compare(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "fallback", got[0].Case)
	assert.Nil(t, got[0].Current)
	assert.Nil(t, got[0].Baseline)

	assert.Equal(t, "safrole", got[1].Case)
	require.NotNil(t, got[1].Current)
	require.NotNil(t, got[1].Baseline)
	assert.Equal(t, "typeberry@0.1.0", got[1].Baseline.Peer, "baseline uses the last row")
	assert.Equal(t, 12*time.Millisecond, got[1].Current.Summary.Mean)

	assert.Equal(t, "storage", got[2].Case)
	assert.NotNil(t, got[2].Current)
	assert.Nil(t, got[2].Baseline, "malformed baseline is treated as missing")
}

func TestCompareCancelled(t *testing.T) {
	srv := baselineServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewComparer(Config{
		ResultDir: t.TempDir(),
		Suite:     Suite{BaselineURL: srv.URL, Cases: []string{"safrole"}},
		Log:       testlog.Logger(t, log.LevelInfo),
	})
	_, err := c.Compare(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchBaselineNotFound(t *testing.T) {
	srv := baselineServer(t, nil)
	c := NewComparer(Config{Suite: Suite{BaselineURL: srv.URL, Cases: []string{"safrole"}}})
	row, err := c.FetchBaseline(context.Background(), "safrole")
	require.ErrorIs(t, err, ErrNoBaseline)
	assert.Nil(t, row)
}

func TestNewComparerDefaults(t *testing.T) {
	c := NewComparer(Config{})
	assert.Equal(t, DefaultSuite(), c.cfg.Suite)
	assert.NotNil(t, c.cfg.Client)
	assert.Equal(t, defaultMaxConcurrentFetches, c.cfg.MaxConcurrentFetches)
}

func TestReadCurrent(t *testing.T) {
	_, err := ReadCurrent(filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = ReadCurrent(empty)
	require.ErrorIs(t, err, stats.ErrNoRows)
}
