package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/iconidentify/grabbot/internal/config"
	"github.com/iconidentify/grabbot/internal/domain"
	"github.com/iconidentify/grabbot/internal/downloader"
	"github.com/iconidentify/grabbot/internal/linkmatch"
	"github.com/iconidentify/grabbot/internal/repository"
)

const eventSource = "delivery"

// Messenger is the chat transport surface the delivery flow needs.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	SendPrompt(ctx context.Context, chatID int64, replyTo int, text string, button domain.Button) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendVideo(ctx context.Context, v domain.VideoUpload) error
	SendAudio(ctx context.Context, a domain.AudioUpload) error
	AnswerCallback(ctx context.Context, callbackID string) error
	BotMembership(ctx context.Context, chatID int64) (domain.Membership, error)
}

// DeliveryStats counts handler outcomes since startup.
type DeliveryStats struct {
	LinksDetected   int64 `json:"links_detected"`
	VideosDelivered int64 `json:"videos_delivered"`
	AudiosDelivered int64 `json:"audios_delivered"`
	Failures        int64 `json:"failures"`
	OriginalsPurged int64 `json:"originals_deleted"`
}

// DeliveryService turns detected links into uploaded media and serves the
// audio-only follow-up.
type DeliveryService struct {
	matcher   *linkmatch.Matcher
	fetcher   downloader.Fetcher
	links     repository.LinkRepository
	messenger Messenger
	events    domain.EventEmitter
	cfg       config.StorageConfig
	logger    *slog.Logger
	newJobID  func() domain.JobID

	linksDetected   atomic.Int64
	videosDelivered atomic.Int64
	audiosDelivered atomic.Int64
	failures        atomic.Int64
	originalsPurged atomic.Int64
}

// NewDeliveryService creates a new delivery service.
func NewDeliveryService(
	matcher *linkmatch.Matcher,
	fetcher downloader.Fetcher,
	links repository.LinkRepository,
	messenger Messenger,
	events domain.EventEmitter,
	storageCfg config.StorageConfig,
	logger *slog.Logger,
) *DeliveryService {
	if storageCfg.MaxFileSize <= 0 {
		storageCfg.MaxFileSize = domain.MaxPayloadSize
	}

	return &DeliveryService{
		matcher:   matcher,
		fetcher:   fetcher,
		links:     links,
		messenger: messenger,
		events:    events,
		cfg:       storageCfg,
		logger:    logger,
		newJobID: func() domain.JobID {
			return domain.JobID(uuid.NewString())
		},
	}
}

// Stats returns a snapshot of outcome counters.
func (s *DeliveryService) Stats() DeliveryStats {
	return DeliveryStats{
		LinksDetected:   s.linksDetected.Load(),
		VideosDelivered: s.videosDelivered.Load(),
		AudiosDelivered: s.audiosDelivered.Load(),
		Failures:        s.failures.Load(),
		OriginalsPurged: s.originalsPurged.Load(),
	}
}

// HandleMessage runs the text-message flow: detect, announce, fetch, verify,
// upload, offer audio, then try to remove the original message.
func (s *DeliveryService) HandleMessage(ctx context.Context, msg domain.IncomingMessage) {
	url, ok := s.matcher.Find(msg.Text)
	if !ok {
		return
	}
	s.linksDetected.Add(1)

	job := domain.NewDownloadJob(s.newJobID(), url, s.cfg.TempPath, domain.ModeVideo, msg.ChatID, msg.MessageID)
	logger := s.logger.With(
		"job_id", job.ID,
		"chat_id", msg.ChatID,
		"message_id", msg.MessageID,
		"user_id", msg.From.ID,
	)
	logger.Info("link detected", "url", url)

	noticeID, err := s.messenger.SendText(ctx, msg.ChatID, msg.MessageID, msgVideoLoading)
	if err != nil {
		logger.Error("failed to send loading notice", "error", err)
		s.failures.Add(1)
		return
	}

	path, err := s.fetcher.FetchVideo(ctx, url, job.PathPrefix)
	if err != nil {
		logger.Warn("video download failed", "error", domain.NewJobError(job.ID, "fetch video", err))
		s.editText(ctx, logger, msg.ChatID, noticeID, msgVideoFailed)
		s.fail(domain.EventCategoryVideo, "video download failed", job, err)
		return
	}

	size, err := s.verify(path)
	if err != nil {
		if errors.Is(err, domain.ErrFileTooLarge) {
			logger.Warn("video exceeds size limit", "path", path, "size", size, "limit", s.cfg.MaxFileSize)
			s.editText(ctx, logger, msg.ChatID, noticeID, fmt.Sprintf(msgVideoTooLarge, s.limitMB()))
			s.removeFile(logger, path)
		} else {
			logger.Warn("video file missing after download", "path", path, "error", err)
			s.editText(ctx, logger, msg.ChatID, noticeID, msgVideoMissing)
		}
		s.fail(domain.EventCategoryVideo, "video not deliverable", job, err)
		return
	}

	if err := s.uploadVideo(ctx, logger, msg, path, noticeID); err == nil {
		s.videosDelivered.Add(1)
		s.events.EmitSuccess(domain.EventCategoryVideo, eventSource, "video delivered", jobMetadata(job, nil))
	} else {
		s.fail(domain.EventCategoryVideo, "video upload failed", job, err)
	}

	s.offerAudio(ctx, logger, msg, url)
	s.moderate(ctx, logger, msg)
}

// HandleCallback runs the audio-only flow for a button press.
func (s *DeliveryService) HandleCallback(ctx context.Context, cb domain.IncomingCallback) {
	logger := s.logger.With(
		"callback_id", cb.ID,
		"chat_id", cb.ChatID,
		"message_id", cb.MessageID,
		"user_id", cb.From.ID,
	)

	if err := s.messenger.AnswerCallback(ctx, cb.ID); err != nil {
		logger.Warn("failed to answer callback", "error", err)
	}

	data, err := domain.ParseCallbackData(cb.Data)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownAction) {
			logger.Debug("ignoring callback with unknown action", "data", cb.Data)
		} else {
			logger.Warn("rejected callback payload", "data", cb.Data, "error", err)
		}
		return
	}

	url, err := s.links.Get(ctx, data.Key)
	if err != nil {
		logger.Info("no link recorded for audio request",
			"requester_id", data.Key.RequesterID,
			"source_message_id", data.Key.MessageID,
			"error", err,
		)
		s.editText(ctx, logger, cb.ChatID, cb.MessageID, msgAudioLinkMissing)
		s.failures.Add(1)
		s.events.EmitWarning(domain.EventCategoryAudio, eventSource, "audio link not found", domain.EventMetadata{
			"requester_id": data.Key.RequesterID,
			"message_id":   data.Key.MessageID,
		})
		return
	}

	job := domain.NewDownloadJob(s.newJobID(), url, s.cfg.TempPath, domain.ModeAudio, cb.ChatID, data.Key.MessageID)
	logger = logger.With("job_id", job.ID)

	s.editText(ctx, logger, cb.ChatID, cb.MessageID, msgAudioPreparing)

	path, err := s.fetcher.FetchAudio(ctx, url, job.PathPrefix)
	if err != nil {
		logger.Warn("audio download failed", "error", domain.NewJobError(job.ID, "fetch audio", err))
		s.editText(ctx, logger, cb.ChatID, cb.MessageID, msgAudioFailed)
		s.fail(domain.EventCategoryAudio, "audio download failed", job, err)
		return
	}

	size, err := s.verify(path)
	if err != nil {
		if errors.Is(err, domain.ErrFileTooLarge) {
			logger.Warn("audio exceeds size limit", "path", path, "size", size, "limit", s.cfg.MaxFileSize)
			s.editText(ctx, logger, cb.ChatID, cb.MessageID, fmt.Sprintf(msgAudioTooLarge, s.limitMB()))
			s.removeFile(logger, path)
		} else {
			logger.Warn("audio file missing after download", "path", path, "error", err)
			s.editText(ctx, logger, cb.ChatID, cb.MessageID, msgAudioFailed)
		}
		s.fail(domain.EventCategoryAudio, "audio not deliverable", job, err)
		return
	}
	logger.Info("audio ready", "size_mb", fmt.Sprintf("%.2f", float64(size)/(1024*1024)))

	if err := s.uploadAudio(ctx, logger, cb, path); err != nil {
		s.fail(domain.EventCategoryAudio, "audio upload failed", job, err)
		return
	}
	s.audiosDelivered.Add(1)
	s.events.EmitSuccess(domain.EventCategoryAudio, eventSource, "audio delivered", jobMetadata(job, nil))
}

// verify checks that path exists and fits the upload limit. It returns the
// size on disk alongside ErrFileMissing or ErrFileTooLarge.
func (s *DeliveryService) verify(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrFileMissing, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", domain.ErrFileMissing, path)
	}
	if info.Size() > s.cfg.MaxFileSize {
		return info.Size(), fmt.Errorf("%w: %d bytes", domain.ErrFileTooLarge, info.Size())
	}
	return info.Size(), nil
}

func (s *DeliveryService) uploadVideo(ctx context.Context, logger *slog.Logger, msg domain.IncomingMessage, path string, noticeID int) error {
	defer s.removeFile(logger, path)

	err := s.messenger.SendVideo(ctx, domain.VideoUpload{
		ChatID:            msg.ChatID,
		ReplyTo:           msg.MessageID,
		Path:              path,
		Caption:           fmt.Sprintf(msgVideoCaption, msg.From.DisplayName()),
		SupportsStreaming: true,
	})
	if err != nil {
		logger.Error("video upload failed", "error", err)
		s.editText(ctx, logger, msg.ChatID, noticeID, fmt.Sprintf(msgVideoUploadError, err))
		return fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	logger.Info("video delivered")
	s.deleteMessage(ctx, logger, msg.ChatID, noticeID)
	return nil
}

func (s *DeliveryService) uploadAudio(ctx context.Context, logger *slog.Logger, cb domain.IncomingCallback, path string) error {
	defer s.removeFile(logger, path)

	err := s.messenger.SendAudio(ctx, domain.AudioUpload{
		ChatID:    cb.ChatID,
		Path:      path,
		Caption:   msgAudioCaption,
		Title:     msgAudioTitle,
		Performer: msgAudioPerformer,
	})
	if err != nil {
		logger.Error("audio upload failed", "error", err)
		s.editText(ctx, logger, cb.ChatID, cb.MessageID, fmt.Sprintf(msgAudioUploadError, err))
		return fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	logger.Info("audio delivered")
	s.deleteMessage(ctx, logger, cb.ChatID, cb.MessageID)
	return nil
}

// offerAudio sends the audio-only button and records the link it refers to.
func (s *DeliveryService) offerAudio(ctx context.Context, logger *slog.Logger, msg domain.IncomingMessage, url string) {
	key := domain.LinkKey{RequesterID: msg.From.ID, MessageID: msg.MessageID}
	button := domain.Button{
		Label: msgAudioButton,
		Data:  domain.NewAudioCallback(key).Encode(),
	}

	if _, err := s.messenger.SendPrompt(ctx, msg.ChatID, msg.MessageID, msgAudioPrompt, button); err != nil {
		logger.Warn("failed to send audio prompt", "error", err)
	}

	if err := s.links.Put(ctx, key, url); err != nil {
		logger.Error("failed to record link", "error", err)
	}
}

// moderate deletes the original message when the bot is allowed to.
// Failures never reach the user.
func (s *DeliveryService) moderate(ctx context.Context, logger *slog.Logger, msg domain.IncomingMessage) domain.ModerationOutcome {
	outcome, err := s.deleteOriginal(ctx, msg)

	switch {
	case outcome == domain.ModerationDeleted:
		s.originalsPurged.Add(1)
		logger.Info("original message deleted")
	case outcome == domain.ModerationNotAllowed:
		logger.Debug("not allowed to delete original message")
	case outcome.Expected():
		logger.Warn("could not delete original message", "outcome", outcome, "error", err)
	default:
		logger.Error("unexpected failure deleting original message", "outcome", outcome, "error", err)
	}

	if outcome != domain.ModerationNotAllowed {
		meta := domain.EventMetadata{
			"chat_id":    msg.ChatID,
			"message_id": msg.MessageID,
			"outcome":    string(outcome),
		}
		if err != nil {
			meta["error"] = err.Error()
		}
		if outcome.Expected() {
			s.events.EmitInfo(domain.EventCategoryModeration, eventSource, "original message moderation", meta)
		} else {
			s.events.EmitError(domain.EventCategoryModeration, eventSource, "original message moderation", meta)
		}
	}

	return outcome
}

func (s *DeliveryService) deleteOriginal(ctx context.Context, msg domain.IncomingMessage) (domain.ModerationOutcome, error) {
	membership, err := s.messenger.BotMembership(ctx, msg.ChatID)
	if err != nil {
		return moderationOutcome(err), err
	}
	if !membership.CanDeleteOthers() {
		return domain.ModerationNotAllowed, nil
	}
	if err := s.messenger.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
		return moderationOutcome(err), err
	}
	return domain.ModerationDeleted, nil
}

func moderationOutcome(err error) domain.ModerationOutcome {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return domain.ModerationPermissionDenied
	case errors.Is(err, domain.ErrMessageNotFound):
		return domain.ModerationNotFound
	default:
		return domain.ModerationFailed
	}
}

func (s *DeliveryService) editText(ctx context.Context, logger *slog.Logger, chatID int64, messageID int, text string) {
	if err := s.messenger.EditText(ctx, chatID, messageID, text); err != nil {
		logger.Warn("failed to edit message", "target_message_id", messageID, "error", err)
	}
}

func (s *DeliveryService) deleteMessage(ctx context.Context, logger *slog.Logger, chatID int64, messageID int) {
	if err := s.messenger.DeleteMessage(ctx, chatID, messageID); err != nil {
		logger.Warn("failed to delete message", "target_message_id", messageID, "error", err)
	}
}

func (s *DeliveryService) removeFile(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove downloaded file", "path", path, "error", err)
	}
}

func (s *DeliveryService) fail(category domain.EventCategory, message string, job *domain.DownloadJob, err error) {
	s.failures.Add(1)
	s.events.EmitError(category, eventSource, message, jobMetadata(job, err))
}

func (s *DeliveryService) limitMB() int64 {
	return s.cfg.MaxFileSize / (1024 * 1024)
}

func jobMetadata(job *domain.DownloadJob, err error) domain.EventMetadata {
	meta := domain.EventMetadata{
		"job_id": job.ID.String(),
		"url":    job.SourceURL,
		"mode":   string(job.Mode),
	}
	if err != nil {
		meta["error"] = err.Error()
	}
	return meta
}
