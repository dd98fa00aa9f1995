package benchreport

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultBaselineURL serves the published <case>.csv files.
const DefaultBaselineURL = "https://typeberry.fluffylabs.dev"

// DefaultCases are the benchmark suites compared when no case file is given.
var DefaultCases = []string{"fallback", "safrole", "storage", "storage_light"}

// Suite lists the cases to compare and where their baselines live.
type Suite struct {
	BaselineURL string   `yaml:"baseline_url"`
	Cases       []string `yaml:"cases"`
}

// DefaultSuite returns the built-in suite.
func DefaultSuite() Suite {
	return Suite{BaselineURL: DefaultBaselineURL, Cases: append([]string(nil), DefaultCases...)}
}

// LoadSuite reads a YAML suite file. Missing fields fall back to the
// defaults.
func LoadSuite(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("failed to read suite file: %w", err)
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Suite{}, fmt.Errorf("failed to parse suite file: %w", err)
	}
	if s.BaselineURL == "" {
		s.BaselineURL = DefaultBaselineURL
	}
	if len(s.Cases) == 0 {
		s.Cases = append([]string(nil), DefaultCases...)
	}
	seen := make(map[string]struct{}, len(s.Cases))
	for _, c := range s.Cases {
		if c == "" {
			return Suite{}, errors.New("suite file contains an empty case name")
		}
		if _, ok := seen[c]; ok {
			return Suite{}, fmt.Errorf("duplicate case %q in suite file", c)
		}
		seen[c] = struct{}{}
	}
	return s, nil
}
