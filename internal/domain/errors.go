package domain

import "errors"

// Domain errors.
var (
	// ErrExtractionFailed is returned when the extraction tool fails.
	ErrExtractionFailed = errors.New("media extraction failed")

	// ErrFileMissing is returned when extraction reported success but produced no file.
	ErrFileMissing = errors.New("downloaded file not found")

	// ErrFileTooLarge is returned when a downloaded file exceeds the upload limit.
	ErrFileTooLarge = errors.New("downloaded file exceeds size limit")

	// ErrLinkNotFound is returned when no source URL is recorded for a requester/message pair.
	ErrLinkNotFound = errors.New("link not found")

	// ErrMalformedPayload is returned when a callback payload cannot be decoded.
	ErrMalformedPayload = errors.New("malformed callback payload")

	// ErrUnknownAction is returned when a callback payload carries an unknown action tag.
	ErrUnknownAction = errors.New("unknown callback action")

	// ErrPermissionDenied is returned when the bot lacks rights for a chat action.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrMessageNotFound is returned when a chat message no longer exists.
	ErrMessageNotFound = errors.New("message not found")

	// ErrUploadFailed is returned when an attachment could not be sent.
	ErrUploadFailed = errors.New("upload failed")
)

// JobError wraps an error with download job context.
type JobError struct {
	JobID JobID
	Op    string
	Err   error
}

func (e *JobError) Error() string {
	if e.JobID != "" {
		return e.Op + " [" + e.JobID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// NewJobError creates a new JobError.
func NewJobError(jobID JobID, op string, err error) *JobError {
	return &JobError{
		JobID: jobID,
		Op:    op,
		Err:   err,
	}
}
