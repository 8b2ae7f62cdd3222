package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentagg/feedbot/internal/i18n"
	"github.com/rentagg/feedbot/internal/messaging"
	"github.com/rentagg/feedbot/internal/models"
	"github.com/rentagg/feedbot/internal/notify"
	"github.com/rentagg/feedbot/internal/records"
	"github.com/rentagg/feedbot/internal/session"
	"github.com/rentagg/feedbot/internal/stats"
	"github.com/rentagg/feedbot/internal/telegram"
)

// Dependencies bundles everything the engine needs. All fields are required
// except Notifier, which may be nil when no observers are configured.
type Dependencies struct {
	Sessions  session.Store
	Languages *session.LanguageResolver
	Messenger messaging.Service
	Records   *records.Coordinator
	Notifier  *notify.Notifier
}

// Engine is the conversation state machine. It owns no transport details:
// inbound updates arrive as typed events and outbound messages go through
// the messaging service.
//
// Per-user state lives in the session store; the engine itself is stateless
// and safe for concurrent use across users. The transport layer serializes
// updates per user, so two events for the same user never race.
type Engine struct {
	steps    []Step
	sessions session.Store
	langs    *session.LanguageResolver
	msg      messaging.Service
	records  *records.Coordinator
	notifier *notify.Notifier
}

// NewEngine creates the engine over the standard survey step sequence.
func NewEngine(deps Dependencies) *Engine {
	slog.Debug("Creating flow engine")
	return &Engine{
		steps:    SurveySteps(),
		sessions: deps.Sessions,
		langs:    deps.Languages,
		msg:      deps.Messenger,
		records:  deps.Records,
		notifier: deps.Notifier,
	}
}

// HandleInbound dispatches one typed inbound event. Every branch is
// fire-and-forget toward the user: failures are logged, never returned,
// so a broken send cannot wedge the webhook handler.
func (e *Engine) HandleInbound(ctx context.Context, inb models.Inbound) {
	loc := e.langs.Resolve(ctx, inb.From.ID)
	slog.Debug("Engine handling inbound", "userID", inb.From.ID, "event", fmt.Sprintf("%T", inb.Event))

	switch ev := inb.Event.(type) {
	case models.StartEvent:
		e.handleStart(ctx, inb.From)
	case models.LocaleEvent:
		e.handleLocale(ctx, inb.From, ev.Locale, inb.Ref)
	case models.BeginEvent:
		e.Begin(ctx, inb.From, loc)
	case models.TextEvent:
		e.AcceptText(ctx, inb.From, loc, ev.Text)
	case models.ChoiceEvent:
		e.AcceptChoice(ctx, inb.From, loc, ev.Step, ev.Token)
	case models.NavEvent:
		e.Navigate(ctx, inb.From, loc, ev.Direction)
	case models.PostActionEvent:
		e.handlePostAction(ctx, inb.From, loc, ev.Kind)
	case models.ContactEvent:
		e.handleContact(ctx, inb.From, loc, ev)
	case models.CancelEvent:
		e.Cancel(ctx, inb.From, loc)
	case models.StatsEvent:
		e.handleStats(ctx, inb.From, loc)
	case models.SelfTestEvent:
		e.handleSelfTest(ctx, inb.From, loc)
	default:
		slog.Warn("Engine received unknown event", "userID", inb.From.ID, "event", fmt.Sprintf("%T", inb.Event))
	}

	if inb.CallbackID != "" {
		if err := e.msg.Ack(ctx, inb.CallbackID); err != nil {
			slog.Warn("Engine failed to ack callback", "error", err, "userID", inb.From.ID)
		}
	}
}

// handleStart shows the language chooser. /start always lands here, even
// mid-survey; the existing session survives until the user begins again.
func (e *Engine) handleStart(ctx context.Context, id models.Identity) {
	kb := &models.Keyboard{Rows: [][]models.Button{{
		{Label: "🇷🇺 Русский", Token: telegram.LocaleToken(models.LocaleRU)},
		{Label: "🇺🇿 Ўзбекча", Token: telegram.LocaleToken(models.LocaleUZ)},
	}}}
	e.send(ctx, id.ID, i18n.Text(i18n.DefaultLocale, "choose_lang"), kb)
}

// handleLocale records the chosen locale and replaces the chooser message
// with the localized greeting.
func (e *Engine) handleLocale(ctx context.Context, id models.Identity, loc models.Locale, ref models.MessageRef) {
	e.langs.Set(ctx, id.ID, loc)

	text := i18n.Text(loc, "hello")
	kb := &models.Keyboard{Rows: [][]models.Button{
		{{Label: i18n.Text(loc, "start_btn"), Token: telegram.BeginToken()}},
	}}
	if ref.IsZero() {
		e.send(ctx, id.ID, text, kb)
		return
	}
	if err := e.msg.EditMessage(ctx, ref, text, kb); err != nil {
		slog.Warn("Engine failed to edit locale chooser", "error", err, "userID", id.ID)
		e.send(ctx, id.ID, text, kb)
	}
}

// Begin starts a fresh survey. Idempotent: pressing begin again discards the
// in-flight session and restarts from the first step with a new nonce.
func (e *Engine) Begin(ctx context.Context, id models.Identity, loc models.Locale) {
	if err := e.sessions.Delete(ctx, id.ID); err != nil {
		slog.Warn("Engine failed to clear stale session", "error", err, "userID", id.ID)
	}

	now := time.Now()
	sess := &models.Session{
		UserID:       id.ID,
		SubmissionID: uuid.NewString(),
		Step:         0,
		Answers:      make(map[string]string),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.sessions.Put(ctx, sess); err != nil {
		slog.Error("Engine failed to create session", "error", err, "userID", id.ID)
		e.send(ctx, id.ID, i18n.Text(loc, "err"), nil)
		return
	}
	slog.Info("Engine began survey", "userID", id.ID, "submissionID", sess.SubmissionID)
	e.prompt(ctx, id.ID, loc, sess.Step)
}

// AcceptText handles free user text. Mid-survey it records the answer for
// the current step; in post-capture mode it amends the stored record. Text
// with no active session is ignored.
func (e *Engine) AcceptText(ctx context.Context, id models.Identity, loc models.Locale, text string) {
	sess, err := e.sessions.Get(ctx, id.ID)
	if err != nil || sess == nil {
		slog.Debug("Engine ignoring text without session", "userID", id.ID)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if sess.Post != models.PostModeNone {
		e.acceptPostText(ctx, id, loc, sess, text)
		return
	}

	sess.Answers[e.steps[sess.Step].Column] = text
	e.advance(ctx, id, loc, sess)
}

// AcceptChoice handles a button answer. Tokens for a stale step or outside
// the option set are dropped and the current question re-asked; the user
// sees the prompt again instead of an error.
func (e *Engine) AcceptChoice(ctx context.Context, id models.Identity, loc models.Locale, stepName, token string) {
	sess, err := e.sessions.Get(ctx, id.ID)
	if err != nil || sess == nil {
		slog.Debug("Engine ignoring choice without session", "userID", id.ID)
		return
	}
	step := e.steps[sess.Step]
	value, ok := e.choiceValue(loc, step, stepName, token)
	if !ok {
		slog.Warn("Engine dropping invalid choice token", "userID", id.ID, "step", stepName, "token", token)
		e.prompt(ctx, id.ID, loc, sess.Step)
		return
	}

	sess.Answers[step.Column] = value
	e.advance(ctx, id, loc, sess)
}

// choiceValue validates a callback token against the current step and
// returns the value to record: the localized label for enumerated options,
// the token itself for scale buttons.
func (e *Engine) choiceValue(loc models.Locale, step Step, stepName, token string) (string, bool) {
	if stepName != step.Name {
		return "", false
	}
	switch step.Kind {
	case StepChoice:
		for _, opt := range step.Options {
			if opt.Token == token {
				return i18n.Text(loc, opt.LabelKey), true
			}
		}
	case StepScale:
		if validScaleToken(token) {
			return token, true
		}
	}
	return "", false
}

// Navigate moves one step backward or forward without recording an answer.
// Back at the first step and skip at the last step are both no-ops.
func (e *Engine) Navigate(ctx context.Context, id models.Identity, loc models.Locale, dir models.NavDirection) {
	sess, err := e.sessions.Get(ctx, id.ID)
	if err != nil || sess == nil || sess.Post != models.PostModeNone {
		slog.Debug("Engine ignoring navigation without survey session", "userID", id.ID)
		return
	}

	switch dir {
	case models.NavBack:
		if sess.Step == 0 {
			return
		}
		sess.Step--
	case models.NavSkip:
		if sess.Step >= len(e.steps)-1 {
			return
		}
		sess.Step++
	default:
		return
	}

	if err := e.sessions.Put(ctx, sess); err != nil {
		slog.Error("Engine failed to save session", "error", err, "userID", id.ID)
		return
	}
	e.prompt(ctx, id.ID, loc, sess.Step)
}

// Cancel discards any in-flight session. Always succeeds, with or without
// an active survey.
func (e *Engine) Cancel(ctx context.Context, id models.Identity, loc models.Locale) {
	if err := e.sessions.Delete(ctx, id.ID); err != nil {
		slog.Warn("Engine failed to delete session", "error", err, "userID", id.ID)
	}
	slog.Info("Engine cancelled survey", "userID", id.ID)
	e.send(ctx, id.ID, i18n.Text(loc, "cancelled"), nil)
}

// advance stores the session at the next step and either asks the next
// question or, past the last step, finalizes the submission.
func (e *Engine) advance(ctx context.Context, id models.Identity, loc models.Locale, sess *models.Session) {
	sess.Step++
	sess.UpdatedAt = time.Now()

	if sess.Step >= len(e.steps) {
		e.finalize(ctx, id, loc, sess)
		return
	}
	if err := e.sessions.Put(ctx, sess); err != nil {
		slog.Error("Engine failed to save session", "error", err, "userID", id.ID)
		e.send(ctx, id.ID, i18n.Text(loc, "err"), nil)
		return
	}
	e.prompt(ctx, id.ID, loc, sess.Step)
}

// finalize persists the completed survey. On success the session is cleared
// and the post-capture offer shown; on failure the session is kept so the
// user's answers are not lost, and the raw payload is mirrored to observers.
func (e *Engine) finalize(ctx context.Context, id models.Identity, loc models.Locale, sess *models.Session) {
	values := make(map[string]string, len(sess.Answers)+1)
	for k, v := range sess.Answers {
		values[k] = v
	}
	values[records.ColSubmissionID] = sess.SubmissionID

	if !e.records.Create(ctx, id, values) {
		slog.Error("Engine finalize failed", "userID", id.ID, "submissionID", sess.SubmissionID)
		e.send(ctx, id.ID, i18n.Text(loc, "err"), nil)
		e.broadcast(ctx, failureNote(id, sess.Answers))
		return
	}

	if err := e.sessions.Delete(ctx, id.ID); err != nil {
		slog.Warn("Engine failed to clear finished session", "error", err, "userID", id.ID)
	}
	slog.Info("Engine finalized survey", "userID", id.ID, "submissionID", sess.SubmissionID)

	e.send(ctx, id.ID, i18n.Text(loc, "thanks"), nil)
	e.send(ctx, id.ID, i18n.Text(loc, "post_offer"), &models.Keyboard{Rows: [][]models.Button{
		{{Label: i18n.Text(loc, "btn_contact"), Token: telegram.PostToken(models.PostActionContact)}},
		{{Label: i18n.Text(loc, "btn_comment"), Token: telegram.PostToken(models.PostActionComment)}},
	}})
	e.broadcast(ctx, fmt.Sprintf("Новый фидбэк от %s — %s", id.Handle(), sess.Answers[records.ColCompany]))
}

// handlePostAction switches the session into contact or comment capture.
// Works after finalize (no session) and replaces any in-flight survey.
func (e *Engine) handlePostAction(ctx context.Context, id models.Identity, loc models.Locale, kind models.PostActionKind) {
	now := time.Now()
	sess := &models.Session{UserID: id.ID, Answers: make(map[string]string), CreatedAt: now, UpdatedAt: now}

	switch kind {
	case models.PostActionContact:
		sess.Post = models.PostModeContact
	case models.PostActionComment:
		sess.Post = models.PostModeComment
	default:
		return
	}
	if err := e.sessions.Put(ctx, sess); err != nil {
		slog.Error("Engine failed to save post-capture session", "error", err, "userID", id.ID)
		return
	}

	if sess.Post == models.PostModeContact {
		e.send(ctx, id.ID, i18n.Text(loc, "ask_contact"), &models.Keyboard{
			RequestContact: true,
			ContactLabel:   i18n.Text(loc, "share_contact"),
		})
		return
	}
	e.send(ctx, id.ID, i18n.Text(loc, "ask_comment"), nil)
}

// acceptPostText amends the stored record with typed contact details or a
// comment and ends the post-capture session.
func (e *Engine) acceptPostText(ctx context.Context, id models.Identity, loc models.Locale, sess *models.Session, text string) {
	var patch map[string]string
	var ackKey string
	switch sess.Post {
	case models.PostModeContact:
		patch = map[string]string{records.ColContact: text}
		ackKey = "contact_saved"
	case models.PostModeComment:
		patch = map[string]string{records.ColComment: text}
		ackKey = "comment_saved"
	default:
		return
	}

	if !e.records.Amend(ctx, id, patch) {
		e.send(ctx, id.ID, i18n.Text(loc, "err"), nil)
		return
	}
	if err := e.sessions.Delete(ctx, id.ID); err != nil {
		slog.Warn("Engine failed to clear post-capture session", "error", err, "userID", id.ID)
	}
	e.send(ctx, id.ID, i18n.Text(loc, ackKey), nil)
	e.broadcast(ctx, fmt.Sprintf("Дополнение к фидбэку от %s: %s", id.Handle(), text))
}

// handleContact handles a shared Telegram contact card. Works regardless of
// session state: a card is unambiguous, so it is stored even if the user
// never pressed the contact button.
func (e *Engine) handleContact(ctx context.Context, id models.Identity, loc models.Locale, ev models.ContactEvent) {
	patch := map[string]string{
		records.ColContactName:  ev.Name,
		records.ColContactPhone: ev.Phone,
	}
	if !e.records.Amend(ctx, id, patch) {
		e.send(ctx, id.ID, i18n.Text(loc, "err"), nil)
		return
	}
	if err := e.sessions.Delete(ctx, id.ID); err != nil {
		slog.Warn("Engine failed to clear post-capture session", "error", err, "userID", id.ID)
	}
	e.send(ctx, id.ID, i18n.Text(loc, "contact_saved"), nil)
	e.broadcast(ctx, fmt.Sprintf("Контакт от %s: %s %s", id.Handle(), ev.Name, ev.Phone))
}

// handleStats renders the aggregate report. Observer-only when observers
// are configured; open otherwise so local runs can use it.
func (e *Engine) handleStats(ctx context.Context, id models.Identity, loc models.Locale) {
	if !e.allowDiagnostics(id.ID) {
		slog.Debug("Engine refusing stats for non-observer", "userID", id.ID)
		return
	}
	rows, err := e.records.AllRows(ctx)
	if err != nil {
		slog.Error("Engine failed to read rows for stats", "error", err, "userID", id.ID)
		e.send(ctx, id.ID, i18n.Text(loc, "err"), nil)
		return
	}
	e.send(ctx, id.ID, stats.Render(stats.Compute(rows), loc), nil)
}

// handleSelfTest writes one diagnostic row end to end and reports pass or
// fail. Subject to the same observer gate as stats.
func (e *Engine) handleSelfTest(ctx context.Context, id models.Identity, loc models.Locale) {
	if !e.allowDiagnostics(id.ID) {
		slog.Debug("Engine refusing selftest for non-observer", "userID", id.ID)
		return
	}
	key := "selftest_ok"
	if !e.SelfTest(ctx) {
		key = "selftest_fail"
	}
	e.send(ctx, id.ID, i18n.Text(loc, key), nil)
}

// SelfTest performs one dummy create through the full persistence path.
// Also exposed over HTTP by the API server.
func (e *Engine) SelfTest(ctx context.Context) bool {
	id := models.Identity{ID: 0, Username: "selftest", FullName: "Self Test"}
	return e.records.Create(ctx, id, map[string]string{
		records.ColSubmissionID: uuid.NewString(),
		records.ColCompany:      "selftest",
		records.ColComment:      "diagnostic write",
	})
}

// Digest broadcasts the aggregate report to observers. Invoked on a cron
// schedule when one is configured.
func (e *Engine) Digest(ctx context.Context) {
	rows, err := e.records.AllRows(ctx)
	if err != nil {
		slog.Error("Engine failed to read rows for digest", "error", err)
		return
	}
	e.broadcast(ctx, stats.Render(stats.Compute(rows), i18n.DefaultLocale))
}

func (e *Engine) allowDiagnostics(userID int64) bool {
	if e.notifier == nil || !e.notifier.HasObservers() {
		return true
	}
	return e.notifier.IsObserver(userID)
}

// prompt sends the question for the given step with its answer and
// navigation keyboard.
func (e *Engine) prompt(ctx context.Context, to int64, loc models.Locale, stepIdx int) {
	step := e.steps[stepIdx]
	e.send(ctx, to, i18n.Text(loc, step.PromptKey), e.stepKeyboard(loc, step, stepIdx))
}

// stepKeyboard builds the inline keyboard for a step: answer buttons per
// kind, then a navigation row. Back is omitted on the first step and skip
// on the last, matching the navigation no-ops.
func (e *Engine) stepKeyboard(loc models.Locale, step Step, stepIdx int) *models.Keyboard {
	var rows [][]models.Button

	switch step.Kind {
	case StepChoice:
		row := make([]models.Button, 0, len(step.Options))
		for _, opt := range step.Options {
			row = append(row, models.Button{
				Label: i18n.Text(loc, opt.LabelKey),
				Token: telegram.AnswerToken(step.Name, opt.Token),
			})
		}
		rows = append(rows, row)
	case StepScale:
		// Two rows of five keeps the buttons readable on phones.
		for lo := 0; lo < len(scaleTokens); lo += 5 {
			row := make([]models.Button, 0, 5)
			for _, t := range scaleTokens[lo : lo+5] {
				row = append(row, models.Button{Label: t, Token: telegram.AnswerToken(step.Name, t)})
			}
			rows = append(rows, row)
		}
	}

	var nav []models.Button
	if stepIdx > 0 {
		nav = append(nav, models.Button{Label: i18n.Text(loc, "back"), Token: telegram.NavToken(models.NavBack)})
	}
	if stepIdx < len(e.steps)-1 {
		nav = append(nav, models.Button{Label: i18n.Text(loc, "skip"), Token: telegram.NavToken(models.NavSkip)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	if len(rows) == 0 {
		return nil
	}
	return &models.Keyboard{Rows: rows}
}

// send delivers a message, logging failures without propagating them.
func (e *Engine) send(ctx context.Context, to int64, text string, kb *models.Keyboard) {
	if err := e.msg.SendPrompt(ctx, to, text, kb); err != nil {
		slog.Error("Engine failed to send message", "error", err, "to", to)
	}
}

// broadcast forwards a note to observers when a notifier is configured.
func (e *Engine) broadcast(ctx context.Context, text string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Broadcast(ctx, text)
}

// failureNote mirrors a failed submission's payload to observers so nothing
// is lost while the store is down.
func failureNote(id models.Identity, answers map[string]string) string {
	raw, err := json.Marshal(answers)
	if err != nil {
		raw = []byte("{}")
	}
	return fmt.Sprintf("⚠️ Не удалось сохранить фидбэк от %s: %s", id.Handle(), raw)
}
