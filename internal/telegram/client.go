// Package telegram adapts the Telegram Bot API to the bot's chat operations.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/iconidentify/grabbot/internal/config"
	"github.com/iconidentify/grabbot/internal/domain"
)

// botAPI is the subset of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client sends and receives chat events through the Telegram Bot API.
// All outbound calls share one rate limiter.
type Client struct {
	api         botAPI
	selfID      int64
	username    string
	pollTimeout int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// New connects to the Bot API and verifies the token.
func New(cfg config.TelegramConfig, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout(),
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.ReadTimeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connect to bot api: %w", err)
	}
	api.Debug = cfg.Debug

	c := newClient(api, api.Self.ID, cfg, logger)
	c.username = api.Self.UserName
	return c, nil
}

func newClient(api botAPI, selfID int64, cfg config.TelegramConfig, logger *slog.Logger) *Client {
	limit := rate.Limit(cfg.RateLimit)
	burst := cfg.RateBurst
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 60
	}

	return &Client{
		api:         api,
		selfID:      selfID,
		pollTimeout: pollTimeout,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger,
	}
}

// Username returns the bot's own username.
func (c *Client) Username() string {
	return c.username
}

// SendText sends a plain message, optionally as a reply, and returns its ID.
func (c *Client) SendText(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, classify("send message", err)
	}
	return sent.MessageID, nil
}

// SendPrompt sends a message carrying a single inline button.
func (c *Client) SendPrompt(ctx context.Context, chatID int64, replyTo int, text string, button domain.Button) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Data),
		),
	)

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, classify("send prompt", err)
	}
	return sent.MessageID, nil
}

// EditText replaces the text of an existing message.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := c.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return classify("edit message", err)
	}
	return nil
}

// DeleteMessage removes a message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return classify("delete message", err)
	}
	return nil
}

// SendVideo uploads a local video file.
func (c *Client) SendVideo(ctx context.Context, v domain.VideoUpload) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	video := tgbotapi.NewVideo(v.ChatID, tgbotapi.FilePath(v.Path))
	video.Caption = v.Caption
	video.SupportsStreaming = v.SupportsStreaming
	video.ReplyToMessageID = v.ReplyTo

	if _, err := c.api.Send(video); err != nil {
		return classify("send video", err)
	}
	return nil
}

// SendAudio uploads a local audio file.
func (c *Client) SendAudio(ctx context.Context, a domain.AudioUpload) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	audio := tgbotapi.NewAudio(a.ChatID, tgbotapi.FilePath(a.Path))
	audio.Caption = a.Caption
	audio.Title = a.Title
	audio.Performer = a.Performer

	if _, err := c.api.Send(audio); err != nil {
		return classify("send audio", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press without showing any text.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return classify("answer callback", err)
	}
	return nil
}

// BotMembership returns the bot's own role in a chat.
func (c *Client) BotMembership(ctx context.Context, chatID int64) (domain.Membership, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Membership{}, err
	}

	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: c.selfID,
		},
	})
	if err != nil {
		return domain.Membership{}, classify("get chat member", err)
	}

	return domain.Membership{
		Status:            domain.MemberStatus(member.Status),
		CanDeleteMessages: member.CanDeleteMessages,
	}, nil
}
