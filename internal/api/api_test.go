package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rentagg/feedbot/internal/models"
)

type stubDispatcher struct {
	mu       sync.Mutex
	inbounds []models.Inbound
	selfOK   bool
}

func (d *stubDispatcher) HandleInbound(ctx context.Context, inb models.Inbound) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inbounds = append(d.inbounds, inb)
}

func (d *stubDispatcher) SelfTest(ctx context.Context) bool { return d.selfOK }

func (d *stubDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inbounds)
}

func (d *stubDispatcher) last() models.Inbound {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inbounds[len(d.inbounds)-1]
}

const sampleUpdate = `{
	"update_id": 10,
	"message": {
		"message_id": 5,
		"from": {"id": 77, "is_bot": false, "first_name": "Ann", "username": "ann"},
		"chat": {"id": 77, "type": "private"},
		"date": 1,
		"text": "/start",
		"entities": [{"type": "bot_command", "offset": 0, "length": 6}]
	}
}`

func waitForDispatch(t *testing.T, d *stubDispatcher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("dispatcher saw %d inbounds, want %d", d.count(), n)
}

func TestHealthz(t *testing.T) {
	s := NewServer(&stubDispatcher{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestWebhookDispatchesDecodedUpdate(t *testing.T) {
	d := &stubDispatcher{}
	s := NewServer(d)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleUpdate))
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	waitForDispatch(t, d, 1)
	inb := d.last()
	if _, ok := inb.Event.(models.StartEvent); !ok {
		t.Errorf("event = %T, want StartEvent", inb.Event)
	}
	if inb.From.ID != 77 {
		t.Errorf("from = %d", inb.From.ID)
	}
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	d := &stubDispatcher{}
	s := NewServer(d, WithWebhookSecret("s3cret"))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleUpdate))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing secret: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleUpdate))
	req.Header.Set(secretHeader, "wrong")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong secret: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleUpdate))
	req.Header.Set(secretHeader, "s3cret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("good secret: status = %d", rec.Code)
	}
	waitForDispatch(t, d, 1)
	if d.count() != 1 {
		t.Errorf("dispatched %d updates, want 1", d.count())
	}
}

func TestWebhookIgnoresUnhandledUpdate(t *testing.T) {
	d := &stubDispatcher{}
	s := NewServer(d)

	// An edited message is not something the bot handles; the endpoint
	// still answers 200 so Telegram does not retry it.
	body := `{"update_id": 11, "edited_message": {"message_id": 5, "chat": {"id": 77, "type": "private"}, "date": 1}}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	time.Sleep(20 * time.Millisecond)
	if d.count() != 0 {
		t.Errorf("unhandled update was dispatched")
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	s := NewServer(&stubDispatcher{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSelfTestReportsOutcome(t *testing.T) {
	s := NewServer(&stubDispatcher{selfOK: true})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/selftest", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "true") {
		t.Fatalf("pass: status = %d body = %q", rec.Code, rec.Body.String())
	}

	s = NewServer(&stubDispatcher{selfOK: false})
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/selftest", nil))
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "false") {
		t.Fatalf("fail: status = %d body = %q", rec.Code, rec.Body.String())
	}
}
