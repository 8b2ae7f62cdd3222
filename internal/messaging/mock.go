package messaging

import (
	"context"
	"sync"

	"github.com/rentagg/feedbot/internal/models"
)

// SentMessage records one SendPrompt or EditMessage call on the mock.
type SentMessage struct {
	To       int64
	Text     string
	Keyboard *models.Keyboard
	Edited   bool
	Ref      models.MessageRef
}

// MockService is an in-memory Service implementation for tests.
type MockService struct {
	mu      sync.Mutex
	sent    []SentMessage
	acked   []string
	SendErr error // when set, SendPrompt returns this error
}

// NewMockService creates an empty mock transport.
func NewMockService() *MockService {
	return &MockService{}
}

// SendPrompt records the message.
func (m *MockService) SendPrompt(ctx context.Context, to int64, text string, kb *models.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, SentMessage{To: to, Text: text, Keyboard: kb})
	return nil
}

// EditMessage records the edit.
func (m *MockService) EditMessage(ctx context.Context, ref models.MessageRef, text string, kb *models.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{To: ref.ChatID, Text: text, Keyboard: kb, Edited: true, Ref: ref})
	return nil
}

// Ack records the callback id.
func (m *MockService) Ack(ctx context.Context, callbackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, callbackID)
	return nil
}

// Start is a no-op.
func (m *MockService) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (m *MockService) Stop() error { return nil }

// Sent returns a copy of everything recorded so far.
func (m *MockService) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}

// Acked returns the recorded callback ids.
func (m *MockService) Acked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

// LastTo returns the recipients of recorded messages, in order.
func (m *MockService) LastTo() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.To
	}
	return out
}
