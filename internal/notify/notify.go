// Package notify broadcasts best-effort notifications to configured observers.
//
// Every send is independent and fire-and-forget: one slow or failing
// observer never blocks the others, never delays the originating user, and
// no retry is applied.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/rentagg/feedbot/internal/messaging"
)

// DefaultSendTimeout bounds each observer send.
const DefaultSendTimeout = 10 * time.Second

// Notifier fans a message out to observer chat ids and, when configured,
// SMS recipients.
type Notifier struct {
	msg       messaging.Service
	observers []int64
	sms       *SMSChannel
	timeout   time.Duration
}

// NewNotifier creates a notifier for the given observer chat ids. The SMS
// channel is optional and may be nil.
func NewNotifier(msg messaging.Service, observers []int64, sms *SMSChannel) *Notifier {
	slog.Debug("Creating Notifier", "observers", len(observers), "sms_enabled", sms != nil)
	return &Notifier{
		msg:       msg,
		observers: observers,
		sms:       sms,
		timeout:   DefaultSendTimeout,
	}
}

// HasObservers reports whether any observer is configured.
func (n *Notifier) HasObservers() bool {
	return len(n.observers) > 0 || (n.sms != nil && len(n.sms.recipients) > 0)
}

// IsObserver reports whether the given chat id is a configured observer.
// Used to gate the diagnostic commands.
func (n *Notifier) IsObserver(chatID int64) bool {
	for _, id := range n.observers {
		if id == chatID {
			return true
		}
	}
	return false
}

// Broadcast dispatches the text to every observer without blocking the
// caller. Delivery failures are logged and swallowed.
func (n *Notifier) Broadcast(ctx context.Context, text string) {
	for _, id := range n.observers {
		go func(id int64) {
			sctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			defer cancel()
			if err := n.msg.SendPrompt(sctx, id, text, nil); err != nil {
				slog.Warn("Notifier observer send failed", "error", err, "observer", id)
				return
			}
			slog.Debug("Notifier observer send succeeded", "observer", id)
		}(id)
	}
	if n.sms != nil {
		n.sms.Broadcast(text)
	}
}
