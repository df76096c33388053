package domain

import (
	"fmt"
	"path/filepath"
	"time"
)

// MaxPayloadSize is the largest attachment the bot will upload (50 MiB).
const MaxPayloadSize int64 = 50 * 1024 * 1024

// JobID is a unique identifier for a download job.
type JobID string

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// MediaMode selects what a download job produces.
type MediaMode string

const (
	ModeVideo MediaMode = "video"
	ModeAudio MediaMode = "audio"
)

// Extension returns the file extension (with dot) produced for the mode.
func (m MediaMode) Extension() string {
	if m == ModeAudio {
		return ".mp3"
	}
	return ".mp4"
}

// DownloadJob is a single transient fetch of a source URL into the download area.
type DownloadJob struct {
	ID         JobID
	SourceURL  string
	PathPrefix string
	Mode       MediaMode
	CreatedAt  time.Time
}

// NewDownloadJob creates a job whose file name is derived from the chat and message
// identities, e.g. downloads/video_<chat>_<message>.
func NewDownloadJob(id JobID, sourceURL, dir string, mode MediaMode, chatID int64, messageID int) *DownloadJob {
	return &DownloadJob{
		ID:         id,
		SourceURL:  sourceURL,
		PathPrefix: filepath.Join(dir, fmt.Sprintf("%s_%d_%d", mode, chatID, messageID)),
		Mode:       mode,
		CreatedAt:  time.Now(),
	}
}

// Path returns the expected output file path.
func (j *DownloadJob) Path() string {
	return j.PathPrefix + j.Mode.Extension()
}
