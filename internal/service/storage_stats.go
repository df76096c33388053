package service

import (
	"fmt"
	"os"
	"strings"
)

// StorageStats describes the transient download area.
type StorageStats struct {
	Path      string `json:"path"`
	Files     int    `json:"files"`
	BytesUsed int64  `json:"bytes_used"`
	FreeBytes int64  `json:"free_bytes"`
}

// DownloadAreaStats counts in-flight download artifacts in dir and reports
// the free space left on its filesystem.
func DownloadAreaStats(dir string) (StorageStats, error) {
	stats := StorageStats{Path: dir}

	info, err := os.Stat(dir)
	if err != nil {
		return stats, fmt.Errorf("stat download dir: %w", err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("download dir %s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return stats, fmt.Errorf("read download dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasPrefix(name, "video_") || strings.HasPrefix(name, "audio_")) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		stats.Files++
		stats.BytesUsed += fi.Size()
	}

	stats.FreeBytes = freeDiskSpace(dir)
	return stats, nil
}
