package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rentagg/feedbot/internal/models"
)

func textUpdate(text string, entities []tgbotapi.MessageEntity) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 10,
			From:      &tgbotapi.User{ID: 42, UserName: "acme", FirstName: "Acme", LastName: "Cars"},
			Chat:      &tgbotapi.Chat{ID: 42},
			Text:      text,
			Entities:  entities,
		},
	}
}

func commandUpdate(cmd string) tgbotapi.Update {
	return textUpdate("/"+cmd, []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}})
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    &tgbotapi.User{ID: 42, UserName: "acme"},
			Data:    data,
			Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: 42}},
		},
	}
}

func TestDecodeCommands(t *testing.T) {
	cases := []struct {
		cmd  string
		want models.Event
	}{
		{"start", models.StartEvent{}},
		{"cancel", models.CancelEvent{}},
		{"stats", models.StatsEvent{}},
		{"selftest", models.SelfTestEvent{}},
	}
	for _, tc := range cases {
		inb, ok := Decode(commandUpdate(tc.cmd))
		if !ok {
			t.Fatalf("command %q not decoded", tc.cmd)
		}
		if inb.Event != tc.want {
			t.Errorf("command %q: got %T, want %T", tc.cmd, inb.Event, tc.want)
		}
		if inb.From.ID != 42 || inb.From.FullName != "Acme Cars" {
			t.Errorf("identity not decoded: %+v", inb.From)
		}
	}
}

func TestDecodeFreeText(t *testing.T) {
	inb, ok := Decode(textUpdate("Acme", nil))
	if !ok {
		t.Fatal("text not decoded")
	}
	ev, isText := inb.Event.(models.TextEvent)
	if !isText || ev.Text != "Acme" {
		t.Errorf("got %#v", inb.Event)
	}
}

func TestDecodeCallbackTokens(t *testing.T) {
	cases := []struct {
		data string
		want models.Event
	}{
		{"start_form", models.BeginEvent{}},
		{"lang:uz", models.LocaleEvent{Locale: models.LocaleUZ}},
		{"ans:q1:2", models.ChoiceEvent{Step: "q1", Token: "2"}},
		{"nav:back", models.NavEvent{Direction: models.NavBack}},
		{"nav:skip", models.NavEvent{Direction: models.NavSkip}},
		{"post:contact", models.PostActionEvent{Kind: models.PostActionContact}},
		{"post:comment", models.PostActionEvent{Kind: models.PostActionComment}},
	}
	for _, tc := range cases {
		inb, ok := Decode(callbackUpdate(tc.data))
		if !ok {
			t.Fatalf("token %q not decoded", tc.data)
		}
		if inb.Event != tc.want {
			t.Errorf("token %q: got %#v, want %#v", tc.data, inb.Event, tc.want)
		}
		if inb.CallbackID != "cb-1" {
			t.Errorf("token %q: callback id not captured", tc.data)
		}
	}
}

func TestDecodeRejectsMalformedTokens(t *testing.T) {
	for _, data := range []string{"", "ans:q1", "ans::2", "nav:sideways", "lang:xx", "post:", "bogus"} {
		if _, ok := Decode(callbackUpdate(data)); ok {
			t.Errorf("token %q should not decode", data)
		}
	}
}

func TestDecodeContactShare(t *testing.T) {
	upd := textUpdate("", nil)
	upd.Message.Contact = &tgbotapi.Contact{PhoneNumber: "+99890", FirstName: "Ali", LastName: "V"}
	inb, ok := Decode(upd)
	if !ok {
		t.Fatal("contact not decoded")
	}
	ev, isContact := inb.Event.(models.ContactEvent)
	if !isContact || ev.Phone != "+99890" || ev.Name != "Ali V" {
		t.Errorf("got %#v", inb.Event)
	}
}

func TestRoundTripTokenBuilders(t *testing.T) {
	if ev, ok := decodeToken(AnswerToken("q5", "9")); !ok || ev != (models.ChoiceEvent{Step: "q5", Token: "9"}) {
		t.Errorf("answer token round trip failed: %#v", ev)
	}
	if ev, ok := decodeToken(NavToken(models.NavSkip)); !ok || ev != (models.NavEvent{Direction: models.NavSkip}) {
		t.Errorf("nav token round trip failed: %#v", ev)
	}
	if ev, ok := decodeToken(LocaleToken(models.LocaleRU)); !ok || ev != (models.LocaleEvent{Locale: models.LocaleRU}) {
		t.Errorf("locale token round trip failed: %#v", ev)
	}
	if ev, ok := decodeToken(PostToken(models.PostActionComment)); !ok || ev != (models.PostActionEvent{Kind: models.PostActionComment}) {
		t.Errorf("post token round trip failed: %#v", ev)
	}
}
