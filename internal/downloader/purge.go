package downloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PurgeStale removes download artifacts left behind by an earlier process.
// Only files named like video_* or audio_* are touched. It returns the number
// of files removed.
func PurgeStale(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read download dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "video_") && !strings.HasPrefix(name, "audio_") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}
