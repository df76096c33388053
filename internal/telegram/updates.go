package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iconidentify/grabbot/internal/domain"
)

// Updates starts long polling and streams converted events until ctx is done.
// The returned channel is closed when polling stops.
func (c *Client) Updates(ctx context.Context) <-chan domain.Update {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}

	source := c.api.GetUpdatesChan(u)
	out := make(chan domain.Update)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.api.StopReceivingUpdates()
				return
			case raw, ok := <-source:
				if !ok {
					return
				}
				update, ok := ConvertUpdate(raw)
				if !ok {
					continue
				}
				select {
				case out <- update:
				case <-ctx.Done():
					c.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()

	return out
}

// ConvertUpdate turns a Bot API update into a domain event. Non-text messages,
// bot commands, anonymous posts and inline-mode callbacks are dropped.
func ConvertUpdate(raw tgbotapi.Update) (domain.Update, bool) {
	switch {
	case raw.Message != nil:
		msg := raw.Message
		if msg.Text == "" || msg.IsCommand() || msg.From == nil || msg.Chat == nil {
			return domain.Update{}, false
		}
		return domain.Update{
			ID: raw.UpdateID,
			Message: &domain.IncomingMessage{
				ChatID:    msg.Chat.ID,
				MessageID: msg.MessageID,
				Text:      msg.Text,
				From:      convertUser(msg.From),
			},
		}, true

	case raw.CallbackQuery != nil:
		cq := raw.CallbackQuery
		if cq.Message == nil || cq.Message.Chat == nil {
			return domain.Update{}, false
		}
		cb := &domain.IncomingCallback{
			ID:        cq.ID,
			ChatID:    cq.Message.Chat.ID,
			MessageID: cq.Message.MessageID,
			Data:      cq.Data,
		}
		if cq.From != nil {
			cb.From = convertUser(cq.From)
		}
		return domain.Update{ID: raw.UpdateID, Callback: cb}, true
	}

	return domain.Update{}, false
}

func convertUser(u *tgbotapi.User) domain.User {
	return domain.User{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
