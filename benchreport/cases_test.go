package benchreport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultSuite(t *testing.T) {
	s := DefaultSuite()
	assert.Equal(t, DefaultBaselineURL, s.BaselineURL)
	assert.Equal(t, []string{"fallback", "safrole", "storage", "storage_light"}, s.Cases)

	s.Cases[0] = "changed"
	assert.Equal(t, "fallback", DefaultCases[0], "default cases must not be aliased")
}

func TestLoadSuite(t *testing.T) {
	path := writeSuite(t, "baseline_url: http://localhost:8080\ncases:\n  - safrole\n  - storage\n")
	s, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", s.BaselineURL)
	assert.Equal(t, []string{"safrole", "storage"}, s.Cases)
}

func TestLoadSuiteDefaults(t *testing.T) {
	s, err := LoadSuite(writeSuite(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSuite(), s)
}

func TestLoadSuiteErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"duplicate case", "cases: [safrole, safrole]\n", "duplicate case"},
		{"empty case", "cases: [safrole, \"\"]\n", "empty case name"},
		{"malformed", "cases: [safrole\n", "failed to parse suite file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSuite(writeSuite(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	_, err := LoadSuite(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read suite file")
}
