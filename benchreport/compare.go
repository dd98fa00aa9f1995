// Package benchreport compares the latest picofuzz stats rows of a benchmark
// run with the published baselines and renders a markdown report.
package benchreport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/FluffyLabs/typeberry-testing/stats"
)

const (
	defaultMaxConcurrentFetches = 4
	defaultFetchTimeout         = 30 * time.Second
)

// Config holds the comparer settings.
type Config struct {
	ResultDir            string // Directory holding <case>.csv of the current run
	Suite                Suite
	Client               *http.Client
	MaxConcurrentFetches int
	Log                  log.Logger
}

// Comparison pairs the current and baseline rows of one case. Either side is
// nil when unavailable.
type Comparison struct {
	Case     string
	Current  *stats.Row
	Baseline *stats.Row
}

// Comparer loads current results and baselines.
type Comparer struct {
	cfg Config
	log log.Logger
}

// NewComparer creates a comparer, filling in defaults for zero fields.
func NewComparer(cfg Config) *Comparer {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = defaultMaxConcurrentFetches
	}
	if cfg.Suite.BaselineURL == "" && len(cfg.Suite.Cases) == 0 {
		cfg.Suite = DefaultSuite()
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	return &Comparer{cfg: cfg, log: cfg.Log}
}

// Compare builds one Comparison per case, in suite order. Missing or broken
// inputs are logged and leave the corresponding side nil; only a cancelled
// context fails the comparison.
func (c *Comparer) Compare(ctx context.Context) ([]Comparison, error) {
	type indexed struct {
		idx int
		cmp Comparison
	}

	p := pool.NewWithResults[indexed]().
		WithErrors().
		WithMaxGoroutines(c.cfg.MaxConcurrentFetches).
		WithContext(ctx)
	for i, name := range c.cfg.Suite.Cases {
		p.Go(func(ctx context.Context) (indexed, error) {
			cmp := Comparison{Case: name}

			current, err := ReadCurrent(filepath.Join(c.cfg.ResultDir, name+".csv"))
			if err != nil {
				c.log.Warn("No current results", "case", name, "error", err)
			}
			cmp.Current = current

			baseline, err := c.FetchBaseline(ctx, name)
			if err != nil {
				if ctx.Err() != nil {
					return indexed{}, ctx.Err()
				}
				c.log.Warn("No baseline found", "case", name, "error", err)
			}
			cmp.Baseline = baseline
			return indexed{idx: i, cmp: cmp}, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to compare benchmarks: %w", err)
	}

	slices.SortFunc(results, func(a, b indexed) int { return a.idx - b.idx })
	out := make([]Comparison, len(results))
	for i, r := range results {
		out[i] = r.cmp
	}
	return out, nil
}

// ErrNoBaseline is returned when the baseline server has no file for a case.
var ErrNoBaseline = errors.New("baseline not available")

// FetchBaseline downloads <baseline-url>/<name>.csv and parses its last row.
func (c *Comparer) FetchBaseline(ctx context.Context, name string) (*stats.Row, error) {
	url := strings.TrimSuffix(c.cfg.Suite.BaselineURL, "/") + "/" + name + ".csv"
	c.log.Info("Fetching baseline", "case", name, "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch baseline: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s returned %s", ErrNoBaseline, url, resp.Status)
	}
	row, err := stats.LastRow(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse baseline %s: %w", url, err)
	}
	return &row, nil
}

// ReadCurrent parses the last row of the stats file at path.
func ReadCurrent(path string) (*stats.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	row, err := stats.LastRow(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &row, nil
}
