// Package messaging defines the pluggable chat transport abstraction.
package messaging

import (
	"context"

	"github.com/rentagg/feedbot/internal/models"
)

// Service defines a pluggable message delivery abstraction. The core never
// assumes delivery succeeded and does not block conversation logic on
// confirmation beyond logging.
type Service interface {
	// SendPrompt sends a text message with an optional keyboard descriptor.
	SendPrompt(ctx context.Context, to int64, text string, kb *models.Keyboard) error

	// EditMessage replaces the text and keyboard of a previously sent message.
	EditMessage(ctx context.Context, ref models.MessageRef, text string, kb *models.Keyboard) error

	// Ack confirms receipt of a button press so the client stops its spinner.
	Ack(ctx context.Context, callbackID string) error

	// Start begins any background processing (e.g., webhook registration).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error
}
