// Package stats aggregates per-message timings of a fuzzing run into
// percentile summaries, a text report and a CSV summary row.
package stats

import (
	"regexp"
	"slices"
	"sync"
	"time"
)

// GenesisImport matches the bootstrap case excluded from aggregation by
// default: importing genesis is not representative of steady-state latency.
var GenesisImport = regexp.MustCompile(`00000000\.bin$`)

// Option configures a Collector.
type Option func(*Collector)

// WithExclude sets the pattern of keys kept out of the aggregate pool. A nil
// pattern aggregates every key.
func WithExclude(pattern *regexp.Regexp) Option {
	return func(c *Collector) {
		c.exclude = pattern
	}
}

// WithClock replaces the monotonic clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// Collector records timing samples per case key, keeping keys in insertion
// order. It is safe for concurrent use.
type Collector struct {
	peer    string
	exclude *regexp.Regexp
	now     func() time.Time

	mu      sync.Mutex
	keys    []string
	samples map[string][]time.Duration
}

// NewCollector creates a collector for the given peer.
func NewCollector(peer string, opts ...Option) *Collector {
	c := &Collector{
		peer:    peer,
		exclude: GenesisImport,
		now:     time.Now,
		samples: make(map[string][]time.Duration),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Peer identifies the node the samples were taken against.
func (c *Collector) Peer() string {
	return c.peer
}

// Measure runs op and records its elapsed time under key. The sample is
// recorded even if op fails or panics.
func (c *Collector) Measure(key string, op func() error) (took time.Duration, err error) {
	start := c.now()
	defer func() {
		took = c.now().Sub(start)
		c.Record(key, took)
	}()
	err = op()
	return took, err
}

// Record appends a sample under key.
func (c *Collector) Record(key string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.samples[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.samples[key] = append(c.samples[key], d)
}

// Keys returns the case keys in insertion order.
func (c *Collector) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.keys)
}

// Samples returns a copy of the samples recorded under key.
func (c *Collector) Samples(key string) []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.samples[key])
}

// Excluded reports whether key is kept out of the aggregate pool.
func (c *Collector) Excluded(key string) bool {
	return c.exclude != nil && c.exclude.MatchString(key)
}

// Aggregated returns the samples of every non-excluded key.
func (c *Collector) Aggregated() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, key := range c.keys {
		if c.Excluded(key) {
			continue
		}
		out = append(out, c.samples[key]...)
	}
	return out
}

// Summary summarizes the aggregate pool.
func (c *Collector) Summary() (Summary, error) {
	return Summarize(c.Aggregated())
}

// Count is the total number of recorded samples, excluded keys included.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.samples {
		n += len(s)
	}
	return n
}
