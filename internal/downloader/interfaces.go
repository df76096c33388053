package downloader

import (
	"context"
)

// Fetcher turns a source URL into a local media file.
type Fetcher interface {
	// FetchVideo downloads url as a single mp4 container at prefix+".mp4" and
	// returns that path. A nil error does not guarantee the file exists: the
	// extraction tool exits cleanly when it aborts on the size cap, so callers
	// must stat the returned path before using it.
	FetchVideo(ctx context.Context, url, prefix string) (string, error)

	// FetchAudio downloads the best audio of url and transcodes it to
	// prefix+".mp3". It returns the path only if the file was produced,
	// otherwise domain.ErrFileMissing.
	FetchAudio(ctx context.Context, url, prefix string) (string, error)
}
