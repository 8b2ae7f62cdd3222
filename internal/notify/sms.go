package notify

import (
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSOpts holds configuration options for the SMS observer channel.
type SMSOpts struct {
	AccountSID string
	AuthToken  string
	From       string
	Recipients []string
}

// SMSOption defines a configuration option for the SMS observer channel.
type SMSOption func(*SMSOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) SMSOption {
	return func(o *SMSOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) SMSOption {
	return func(o *SMSOpts) { o.AuthToken = token }
}

// WithFrom sets the sending phone number.
func WithFrom(from string) SMSOption {
	return func(o *SMSOpts) { o.From = from }
}

// WithRecipients sets the observer phone numbers.
func WithRecipients(nums []string) SMSOption {
	return func(o *SMSOpts) { o.Recipients = nums }
}

// smsSender abstracts the Twilio message create call for tests.
type smsSender interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSChannel delivers observer notifications over SMS via Twilio. The same
// fire-and-forget contract as chat observers applies.
type SMSChannel struct {
	api        smsSender
	from       string
	recipients []string
}

// NewSMSChannel creates an SMS observer channel.
func NewSMSChannel(opts ...SMSOption) (*SMSChannel, error) {
	var cfg SMSOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Twilio SMS channel config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"from_set", cfg.From != "",
		"recipients", len(cfg.Recipients))

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMSChannel{
		api:        client.Api,
		from:       cfg.From,
		recipients: cfg.Recipients,
	}, nil
}

// Broadcast sends the text to every SMS recipient, each in its own
// goroutine, swallowing failures.
func (c *SMSChannel) Broadcast(text string) {
	for _, to := range c.recipients {
		go func(to string) {
			params := &twilioApi.CreateMessageParams{}
			params.SetTo(to)
			params.SetFrom(c.from)
			params.SetBody(text)
			if _, err := c.api.CreateMessage(params); err != nil {
				slog.Warn("SMS observer send failed", "error", err, "to", to)
				return
			}
			slog.Debug("SMS observer send succeeded", "to", to)
		}(to)
	}
}
