package picofuzz

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// BinExtension is the suffix of replayable input files.
const BinExtension = ".bin"

// DiscoverFiles lists the regular *.bin files directly inside dir, sorted by
// base name. Files whose base name is in ignore are left out.
func DiscoverFiles(dir string, ignore []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory '%s': %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, BinExtension) || slices.Contains(ignore, name) {
			continue
		}
		path := filepath.Join(dir, name)
		// Follow symlinks so linked vectors are still picked up.
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat '%s': %w", path, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}

	// ReadDir already sorts by name; make the base-name ordering explicit.
	slices.SortFunc(files, func(a, b string) int {
		return strings.Compare(filepath.Base(a), filepath.Base(b))
	})
	return files, nil
}
