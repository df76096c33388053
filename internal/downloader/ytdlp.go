package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/iconidentify/grabbot/internal/config"
	"github.com/iconidentify/grabbot/internal/domain"
)

// runFunc executes an external command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// YTDLP implements Fetcher by shelling out to yt-dlp.
type YTDLP struct {
	binary      string
	maxFileSize int64
	cfg         config.DownloadConfig
	run         runFunc
	logger      *slog.Logger
}

// NewYTDLP creates a fetcher backed by the yt-dlp binary.
// It fails if the binary cannot be found in PATH.
func NewYTDLP(cfg config.DownloadConfig, maxFileSize int64, logger *slog.Logger) (*YTDLP, error) {
	binary, err := exec.LookPath(cfg.YTDLPPath)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not found: %w", err)
	}

	return &YTDLP{
		binary:      binary,
		maxFileSize: maxFileSize,
		cfg:         cfg,
		run:         execRun,
		logger:      logger,
	}, nil
}

// FetchVideo downloads the best mp4-compatible stream combination.
func (y *YTDLP) FetchVideo(ctx context.Context, url, prefix string) (string, error) {
	path := prefix + domain.ModeVideo.Extension()

	args := y.commonArgs(prefix)
	args = append(args,
		"-f", y.cfg.VideoFormat,
		"--merge-output-format", "mp4",
		url,
	)

	if err := y.exec(ctx, "video", url, args); err != nil {
		return "", err
	}
	return path, nil
}

// FetchAudio downloads the best audio and transcodes it.
func (y *YTDLP) FetchAudio(ctx context.Context, url, prefix string) (string, error) {
	path := prefix + "." + y.cfg.AudioCodec

	args := y.commonArgs(prefix)
	args = append(args,
		"-f", y.cfg.AudioFormat,
		"--extract-audio",
		"--audio-format", y.cfg.AudioCodec,
		"--audio-quality", y.cfg.AudioBitrate,
	)
	if y.cfg.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", y.cfg.FFmpegLocation)
	}
	args = append(args, url)

	if err := y.exec(ctx, "audio", url, args); err != nil {
		return "", err
	}

	if _, err := os.Stat(path); err != nil {
		y.logger.Warn("audio file was not produced", "path", path, "error", err)
		return "", fmt.Errorf("%w: %s", domain.ErrFileMissing, path)
	}

	y.logger.Info("audio file ready", "path", path)
	return path, nil
}

func (y *YTDLP) commonArgs(prefix string) []string {
	args := []string{
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--no-progress",
		"--max-filesize", strconv.FormatInt(y.maxFileSize, 10),
		"-o", prefix + ".%(ext)s",
	}
	if y.cfg.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(y.cfg.SocketTimeout.Seconds())))
	}
	return args
}

func (y *YTDLP) exec(ctx context.Context, mode, url string, args []string) error {
	y.logger.Info("starting download", "mode", mode, "url", url)

	output, err := y.run(ctx, y.binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", domain.ErrExtractionFailed, ctxErr)
		}
		detail := lastLine(string(output))
		y.logger.Error("yt-dlp failed", "mode", mode, "url", url, "error", err, "output", detail)
		if detail == "" {
			return fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
		}
		return fmt.Errorf("%w: %s", domain.ErrExtractionFailed, detail)
	}

	return nil
}

// lastLine returns the last non-empty line of tool output, truncated.
func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			if len(line) > 300 {
				return line[:300] + "..."
			}
			return line
		}
	}
	return ""
}
