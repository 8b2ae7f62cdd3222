package telegram

import (
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rentagg/feedbot/internal/models"
)

// Callback token grammar. Tokens are opaque to the conversation engine;
// this is the only place they are parsed.
const (
	tokenBegin         = "start_form"
	tokenLangPrefix    = "lang:"
	tokenAnswerPrefix  = "ans:"
	tokenNavPrefix     = "nav:"
	tokenPostPrefix    = "post:"
	commandStart       = "start"
	commandCancel      = "cancel"
	commandStats       = "stats"
	commandSelfTest    = "selftest"
	maxAnswerTokenPart = 3
)

// Token helpers used by the flow package when building keyboards, so the
// grammar stays defined in one place.

// LocaleToken builds the callback token for a language choice.
func LocaleToken(loc models.Locale) string { return tokenLangPrefix + string(loc) }

// BeginToken is the callback token of the "start survey" button.
func BeginToken() string { return tokenBegin }

// AnswerToken builds the callback token for a step answer option.
func AnswerToken(step, option string) string { return tokenAnswerPrefix + step + ":" + option }

// NavToken builds the callback token for a navigation direction.
func NavToken(dir models.NavDirection) string { return tokenNavPrefix + string(dir) }

// PostToken builds the callback token for a post-survey action.
func PostToken(kind models.PostActionKind) string { return tokenPostPrefix + string(kind) }

// Decode converts a raw Telegram update into a typed inbound event. It
// returns false for updates the bot does not handle (joins, edits, unknown
// tokens); those are logged and dropped, never surfaced as errors.
func Decode(update tgbotapi.Update) (models.Inbound, bool) {
	switch {
	case update.CallbackQuery != nil:
		return decodeCallback(update.CallbackQuery)
	case update.Message != nil:
		return decodeMessage(update.Message)
	default:
		slog.Debug("Telegram update type not handled", "updateID", update.UpdateID)
		return models.Inbound{}, false
	}
}

func decodeMessage(msg *tgbotapi.Message) (models.Inbound, bool) {
	if msg.From == nil {
		return models.Inbound{}, false
	}
	inb := models.Inbound{
		From: identity(msg.From),
		Ref:  models.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID},
	}

	if msg.Contact != nil {
		name := strings.TrimSpace(msg.Contact.FirstName + " " + msg.Contact.LastName)
		inb.Event = models.ContactEvent{Name: name, Phone: msg.Contact.PhoneNumber}
		return inb, true
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case commandStart:
			inb.Event = models.StartEvent{}
		case commandCancel:
			inb.Event = models.CancelEvent{}
		case commandStats:
			inb.Event = models.StatsEvent{}
		case commandSelfTest:
			inb.Event = models.SelfTestEvent{}
		default:
			slog.Debug("Telegram command not handled", "command", msg.Command())
			return models.Inbound{}, false
		}
		return inb, true
	}

	if msg.Text != "" {
		inb.Event = models.TextEvent{Text: msg.Text}
		return inb, true
	}
	return models.Inbound{}, false
}

func decodeCallback(cb *tgbotapi.CallbackQuery) (models.Inbound, bool) {
	inb := models.Inbound{
		From:       identity(cb.From),
		CallbackID: cb.ID,
	}
	if cb.Message != nil {
		inb.Ref = models.MessageRef{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.MessageID}
	}

	ev, ok := decodeToken(cb.Data)
	if !ok {
		slog.Warn("Telegram callback token not recognized", "data", cb.Data)
		return models.Inbound{}, false
	}
	inb.Event = ev
	return inb, true
}

// decodeToken parses a callback token into its typed event.
func decodeToken(data string) (models.Event, bool) {
	switch {
	case data == tokenBegin:
		return models.BeginEvent{}, true

	case strings.HasPrefix(data, tokenLangPrefix):
		loc, err := models.ParseLocale(strings.TrimPrefix(data, tokenLangPrefix))
		if err != nil {
			return nil, false
		}
		return models.LocaleEvent{Locale: loc}, true

	case strings.HasPrefix(data, tokenAnswerPrefix):
		parts := strings.SplitN(data, ":", maxAnswerTokenPart)
		if len(parts) != maxAnswerTokenPart || parts[1] == "" || parts[2] == "" {
			return nil, false
		}
		return models.ChoiceEvent{Step: parts[1], Token: parts[2]}, true

	case strings.HasPrefix(data, tokenNavPrefix):
		switch models.NavDirection(strings.TrimPrefix(data, tokenNavPrefix)) {
		case models.NavBack:
			return models.NavEvent{Direction: models.NavBack}, true
		case models.NavSkip:
			return models.NavEvent{Direction: models.NavSkip}, true
		}
		return nil, false

	case strings.HasPrefix(data, tokenPostPrefix):
		switch models.PostActionKind(strings.TrimPrefix(data, tokenPostPrefix)) {
		case models.PostActionContact:
			return models.PostActionEvent{Kind: models.PostActionContact}, true
		case models.PostActionComment:
			return models.PostActionEvent{Kind: models.PostActionComment}, true
		}
		return nil, false
	}
	return nil, false
}

func identity(u *tgbotapi.User) models.Identity {
	return models.Identity{
		ID:       u.ID,
		Username: u.UserName,
		FullName: strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
}
