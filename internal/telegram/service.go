// Package telegram implements the messaging service over the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rentagg/feedbot/internal/models"
)

// Opts holds configuration options for the Telegram service.
type Opts struct {
	Token         string
	WebhookURL    string
	WebhookSecret string
	Debug         bool
}

// Option defines a configuration option for the Telegram service.
type Option func(*Opts)

// WithToken sets the bot token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithWebhook sets the public webhook URL and the secret token Telegram
// echoes back in the X-Telegram-Bot-Api-Secret-Token header.
func WithWebhook(url, secret string) Option {
	return func(o *Opts) {
		o.WebhookURL = url
		o.WebhookSecret = secret
	}
}

// WithDebug enables the SDK's request logging.
func WithDebug(debug bool) Option {
	return func(o *Opts) { o.Debug = debug }
}

// Service implements messaging.Service using the Telegram Bot API SDK.
type Service struct {
	bot           *tgbotapi.BotAPI
	webhookURL    string
	webhookSecret string
}

// NewService creates a Telegram service and verifies the token against the
// Bot API.
func NewService(opts ...Option) (*Service, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewService invoked", "token_set", cfg.Token != "", "webhook_set", cfg.WebhookURL != "")

	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token must be provided")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		slog.Error("Failed to create Telegram bot client", "error", err)
		return nil, fmt.Errorf("failed to create bot client: %w", err)
	}
	bot.Debug = cfg.Debug
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	return &Service{
		bot:           bot,
		webhookURL:    cfg.WebhookURL,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// Start registers the webhook with Telegram.
func (s *Service) Start(ctx context.Context) error {
	if s.webhookURL == "" {
		slog.Warn("Telegram webhook URL not configured, skipping registration")
		return nil
	}
	params := tgbotapi.Params{}
	params.AddNonEmpty("url", s.webhookURL)
	params.AddNonEmpty("secret_token", s.webhookSecret)
	if _, err := s.bot.MakeRequest("setWebhook", params); err != nil {
		slog.Error("Failed to set Telegram webhook", "error", err)
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	slog.Info("Telegram webhook set", "url", s.webhookURL)
	return nil
}

// Stop deletes the webhook registration.
func (s *Service) Stop() error {
	if s.webhookURL == "" {
		return nil
	}
	if _, err := s.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		slog.Error("Failed to delete Telegram webhook", "error", err)
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	slog.Info("Telegram webhook deleted")
	return nil
}

// SendPrompt sends a text message with an optional keyboard descriptor.
func (s *Service) SendPrompt(ctx context.Context, to int64, text string, kb *models.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(to, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup := buildMarkup(kb); markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := s.bot.Send(msg); err != nil {
		slog.Error("Telegram SendPrompt failed", "error", err, "to", to)
		return fmt.Errorf("failed to send message to %d: %w", to, err)
	}
	slog.Debug("Telegram SendPrompt succeeded", "to", to, "text_length", len(text))
	return nil
}

// EditMessage replaces the text and inline keyboard of a sent message.
func (s *Service) EditMessage(ctx context.Context, ref models.MessageRef, text string, kb *models.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var edit tgbotapi.Chattable
	if inline, ok := buildMarkup(kb).(tgbotapi.InlineKeyboardMarkup); ok {
		e := tgbotapi.NewEditMessageTextAndMarkup(ref.ChatID, ref.MessageID, text, inline)
		e.ParseMode = tgbotapi.ModeHTML
		edit = e
	} else {
		e := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
		e.ParseMode = tgbotapi.ModeHTML
		edit = e
	}
	if _, err := s.bot.Send(edit); err != nil {
		slog.Error("Telegram EditMessage failed", "error", err, "chatID", ref.ChatID, "messageID", ref.MessageID)
		return fmt.Errorf("failed to edit message %d in chat %d: %w", ref.MessageID, ref.ChatID, err)
	}
	slog.Debug("Telegram EditMessage succeeded", "chatID", ref.ChatID, "messageID", ref.MessageID)
	return nil
}

// Ack answers a callback query so the client stops its progress spinner.
func (s *Service) Ack(ctx context.Context, callbackID string) error {
	if callbackID == "" {
		return nil
	}
	if _, err := s.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		slog.Warn("Telegram callback ack failed", "error", err, "callbackID", callbackID)
		return fmt.Errorf("failed to ack callback: %w", err)
	}
	return nil
}

// buildMarkup converts a declarative keyboard descriptor into the SDK's
// markup types. Returns nil for a nil or empty descriptor.
func buildMarkup(kb *models.Keyboard) interface{} {
	if kb == nil {
		return nil
	}
	if kb.RequestContact {
		label := kb.ContactLabel
		if label == "" {
			label = "☎️"
		}
		markup := tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(label)),
		)
		markup.OneTimeKeyboard = true
		markup.ResizeKeyboard = true
		return markup
	}
	if len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Token))
		}
		rows = append(rows, btns)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
