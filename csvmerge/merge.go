// Package csvmerge folds benchmark stats CSVs produced by CI runs into the
// published history, de-duplicating rows by peer and timestamp.
package csvmerge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

const csvExtension = ".csv"

// Result counts what happened to one file.
type Result struct {
	Name    string
	Loaded  int // rows already in the published file
	Added   int // rows taken from the artifact
	Skipped int // artifact rows already published
	Written int
}

func (r Result) String() string {
	return fmt.Sprintf("%s: loaded %d entries from repo, added %d new entries from artifacts, skipped %d duplicates, total %d entries written",
		r.Name, r.Loaded, r.Added, r.Skipped, r.Written)
}

type entry struct {
	key  string
	date string
	line string
}

func parseLine(line string) (entry, bool) {
	peer, rest, ok := strings.Cut(line, ",")
	if !ok {
		return entry{}, false
	}
	date, _, _ := strings.Cut(rest, ",")
	return entry{key: peer + "," + date, date: date, line: line}, true
}

// readEntries loads the rows of path keyed by peer and timestamp. A missing
// file has no rows. Later duplicates replace earlier ones.
func readEntries(path string) (map[string]entry, error) {
	entries := make(map[string]entry)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if e, ok := parseLine(line); ok {
			entries[e.key] = e
		}
	}
	return entries, nil
}

// MergeFile merges artifactsDir/name into repoDir/name and rewrites the
// latter sorted by timestamp. Rows already published win over artifact rows
// with the same key.
func MergeFile(name, repoDir, artifactsDir string) (Result, error) {
	res := Result{Name: name}
	repoPath := filepath.Join(repoDir, name)

	entries, err := readEntries(repoPath)
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", repoPath, err)
	}
	res.Loaded = len(entries)

	artifacts, err := readEntries(filepath.Join(artifactsDir, name))
	if err != nil {
		return res, fmt.Errorf("failed to read artifact %s: %w", name, err)
	}
	for key, e := range artifacts {
		if _, ok := entries[key]; ok {
			res.Skipped++
			continue
		}
		entries[key] = e
		res.Added++
	}

	sorted := make([]entry, 0, len(entries))
	for _, e := range entries {
		sorted = append(sorted, e)
	}
	slices.SortFunc(sorted, func(a, b entry) int {
		if c := strings.Compare(a.date, b.date); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})

	var b strings.Builder
	for _, e := range sorted {
		b.WriteString(e.line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(repoPath, []byte(b.String()), 0o644); err != nil {
		return res, fmt.Errorf("failed to write %s: %w", repoPath, err)
	}
	res.Written = len(sorted)
	return res, nil
}

// ListCSVs returns the .csv file names in dir, sorted. A missing directory has
// none.
func ListCSVs(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, de := range des {
		if !de.IsDir() && strings.HasSuffix(de.Name(), csvExtension) {
			out = append(out, de.Name())
		}
	}
	slices.Sort(out)
	return out, nil
}

// MergeDirs merges every CSV present in either directory. Results are in
// file name order.
func MergeDirs(repoDir, artifactsDir string) ([]Result, error) {
	repo, err := ListCSVs(repoDir)
	if err != nil {
		return nil, err
	}
	artifacts, err := ListCSVs(artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(repo)+len(artifacts) > 0 {
		if err := os.MkdirAll(repoDir, 0o755); err != nil {
			return nil, err
		}
	}
	names := slices.Compact(slices.Sorted(slices.Values(append(repo, artifacts...))))

	p := pool.NewWithResults[Result]().WithErrors()
	for _, name := range names {
		p.Go(func() (Result, error) {
			return MergeFile(name, repoDir, artifactsDir)
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(results, func(a, b Result) int { return strings.Compare(a.Name, b.Name) })
	return results, nil
}
