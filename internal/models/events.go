// Package models defines the typed inbound events produced at the transport
// boundary. Raw transport updates (commands, free text, callback tokens,
// shared contacts) are decoded into this closed set before the conversation
// engine sees them, so the engine never parses strings.
package models

// NavDirection is a navigation request between survey steps.
type NavDirection string

const (
	// NavBack moves to the immediately preceding step.
	NavBack NavDirection = "back"
	// NavSkip moves past the current step without writing an answer.
	NavSkip NavDirection = "skip"
)

// PostActionKind selects a post-survey amendment flow.
type PostActionKind string

const (
	// PostActionContact starts contact detail capture.
	PostActionContact PostActionKind = "contact"
	// PostActionComment starts free comment capture.
	PostActionComment PostActionKind = "comment"
)

// Event is a decoded inbound event. Implementations form a closed set.
type Event interface {
	isEvent()
}

// StartEvent is the /start command.
type StartEvent struct{}

// LocaleEvent is a language selection button press.
type LocaleEvent struct {
	Locale Locale
}

// BeginEvent is the "start survey" button press.
type BeginEvent struct{}

// TextEvent is a free-text message.
type TextEvent struct {
	Text string
}

// ChoiceEvent is an answer button press for a specific step.
type ChoiceEvent struct {
	Step  string
	Token string
}

// NavEvent is a back/skip navigation button press.
type NavEvent struct {
	Direction NavDirection
}

// PostActionEvent is a post-survey amendment button press.
type PostActionEvent struct {
	Kind PostActionKind
}

// ContactEvent is a shared contact card.
type ContactEvent struct {
	Name  string
	Phone string
}

// CancelEvent is the /cancel command.
type CancelEvent struct{}

// StatsEvent is the /stats reporting command.
type StatsEvent struct{}

// SelfTestEvent is the /selftest store connectivity command.
type SelfTestEvent struct{}

func (StartEvent) isEvent()      {}
func (LocaleEvent) isEvent()     {}
func (BeginEvent) isEvent()      {}
func (TextEvent) isEvent()       {}
func (ChoiceEvent) isEvent()     {}
func (NavEvent) isEvent()        {}
func (PostActionEvent) isEvent() {}
func (ContactEvent) isEvent()    {}
func (CancelEvent) isEvent()     {}
func (StatsEvent) isEvent()      {}
func (SelfTestEvent) isEvent()   {}

// Inbound bundles a decoded event with its sender and message context.
type Inbound struct {
	From       Identity
	Event      Event
	Ref        MessageRef // message the event originated from, for edits
	CallbackID string     // non-empty for button presses, used to ack
}
