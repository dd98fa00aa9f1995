package stats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	reportIndent = 16
	reportUnit   = "μs"

	// AggregatedKey labels the aggregate block of a report.
	AggregatedKey = "aggregated"

	// TimestampLayout is the timestamp format of CSV rows.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

	csvFields = 20
)

// Report renders the text report: one block per key when withDetails is set,
// followed by the aggregated block. Keys with a single sample get no block of
// their own but still count towards the aggregate.
func (c *Collector) Report(withDetails bool) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Stats for %s ===\n", c.peer)

	if withDetails {
		for _, key := range c.Keys() {
			s, err := Summarize(c.Samples(key))
			if err != nil {
				return "", err
			}
			renderBlock(&b, key, s)
		}
	}

	s, err := c.Summary()
	switch {
	case IsEmptySampleSet(err):
		// every key excluded, nothing to aggregate
	case err != nil:
		return "", fmt.Errorf("aggregating samples for %s: %w", c.peer, err)
	default:
		renderBlock(&b, AggregatedKey, s)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func renderBlock(w io.Writer, key string, s Summary) {
	if s.Count == 1 {
		return
	}
	fill := "== " + strings.Repeat(" ", reportIndent)
	fmt.Fprintf(w, "== %s\n", key)
	fmt.Fprintf(w, "%smin: %s [%s]\n", fill, micros(float64(s.Min)), reportUnit)
	fmt.Fprintf(w, "%smax: %s [%s]\n", fill, micros(float64(s.Max)), reportUnit)
	fmt.Fprintf(w, "%smean: %s [%s]\n", fill, micros(float64(s.Mean)), reportUnit)
	fmt.Fprintf(w, "%smedian: %s [%s]\n", fill, micros(float64(s.Median)), reportUnit)
	fmt.Fprintf(w, "%sstdDev: %s [%s]\n", fill, micros(s.StdDev), reportUnit)
	fmt.Fprintf(w, "%sp90: %s [%s]\n", fill, micros(float64(s.Percentiles.P90)), reportUnit)
	fmt.Fprintf(w, "%sp99: %s [%s]\n", fill, micros(float64(s.Percentiles.P99)), reportUnit)
	fmt.Fprintln(w)
}

func micros(ns float64) string {
	return strconv.FormatFloat(ns/1_000, 'f', 1, 64)
}

// Row is one line of the stats CSV file.
type Row struct {
	Peer      string
	Timestamp time.Time
	Summary   Summary
}

// NewRow builds the row for the aggregate pool at time now.
func (c *Collector) NewRow(now time.Time) (Row, error) {
	s, err := c.Summary()
	if err != nil {
		return Row{}, err
	}
	return Row{Peer: c.peer, Timestamp: now, Summary: s}, nil
}

// CSVRow renders the aggregate summary as a CSV record without a trailing
// newline.
func (c *Collector) CSVRow(now time.Time) (string, error) {
	row, err := c.NewRow(now)
	if err != nil {
		return "", err
	}
	return row.String(), nil
}

// AppendCSVRow appends the aggregate row to path, creating the file if needed.
func (c *Collector) AppendCSVRow(path string, now time.Time) error {
	line, err := c.CSVRow(now)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open stats file: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append stats row: %w", err)
	}
	return f.Close()
}

// String renders the row:
// peer,timestamp,count,sum,mean,median,min,max,range,stddev,variance,p1,...,p99
func (r Row) String() string {
	s := r.Summary
	ns := func(d time.Duration) string { return strconv.FormatInt(int64(d), 10) }
	fl := func(f float64) string { return strconv.FormatFloat(f, 'f', 3, 64) }
	fields := []string{
		r.Peer,
		r.Timestamp.UTC().Format(TimestampLayout),
		strconv.Itoa(s.Count),
		ns(s.Sum),
		ns(s.Mean),
		ns(s.Median),
		ns(s.Min),
		ns(s.Max),
		ns(s.Range),
		fl(s.StdDev),
		fl(s.Variance),
	}
	for _, p := range Percentiles {
		v, _ := s.Percentiles.Get(p)
		fields = append(fields, ns(v))
	}
	return strings.Join(fields, ",")
}

// ParseRow parses a line produced by Row.String.
func ParseRow(line string) (Row, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, ",")
	if len(parts) != csvFields {
		return Row{}, &RowError{Line: line, Reason: fmt.Sprintf("expected %d fields, got %d", csvFields, len(parts))}
	}

	ts, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return Row{}, &RowError{Line: line, Reason: "bad timestamp: " + err.Error()}
	}
	count, err := strconv.Atoi(parts[2])
	if err != nil {
		return Row{}, &RowError{Line: line, Reason: "bad count: " + err.Error()}
	}

	var parseErr error
	dur := func(i int) time.Duration {
		v, err := strconv.ParseInt(parts[i], 10, 64)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("field %d: %w", i, err)
		}
		return time.Duration(v)
	}
	flt := func(i int) float64 {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("field %d: %w", i, err)
		}
		return v
	}

	s := Summary{
		Count:    count,
		Sum:      dur(3),
		Mean:     dur(4),
		Median:   dur(5),
		Min:      dur(6),
		Max:      dur(7),
		Range:    dur(8),
		StdDev:   flt(9),
		Variance: flt(10),
		Percentiles: PercentileValues{
			P1: dur(11), P5: dur(12), P10: dur(13), P25: dur(14), P50: dur(15),
			P75: dur(16), P90: dur(17), P95: dur(18), P99: dur(19),
		},
	}
	if parseErr != nil {
		return Row{}, &RowError{Line: line, Reason: parseErr.Error()}
	}
	return Row{Peer: parts[0], Timestamp: ts, Summary: s}, nil
}

// ErrNoRows is returned by LastRow for a file without data rows.
var ErrNoRows = errors.New("stats file has no rows")

// LastRow parses the last non-empty line read from r, the "current" run of a
// stats file.
func LastRow(r io.Reader) (Row, error) {
	var last string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return Row{}, err
	}
	if last == "" {
		return Row{}, ErrNoRows
	}
	return ParseRow(last)
}
