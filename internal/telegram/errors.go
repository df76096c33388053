package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iconidentify/grabbot/internal/domain"
)

// classify maps Bot API failures onto domain errors so callers can tell
// expected refusals apart from real faults.
func classify(op string, err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	desc := strings.ToLower(apiErr.Message)
	switch {
	case strings.Contains(desc, "not found"):
		return fmt.Errorf("%s: %w: %s", op, domain.ErrMessageNotFound, apiErr.Message)
	case apiErr.Code == http.StatusForbidden,
		strings.Contains(desc, "not enough rights"),
		strings.Contains(desc, "can't be deleted"),
		strings.Contains(desc, "have no rights"):
		return fmt.Errorf("%s: %w: %s", op, domain.ErrPermissionDenied, apiErr.Message)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
