package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rentagg/feedbot/internal/messaging"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestBroadcastReachesAllObservers(t *testing.T) {
	mock := messaging.NewMockService()
	n := NewNotifier(mock, []int64{1, 2, 3}, nil)

	n.Broadcast(context.Background(), "new feedback")

	waitFor(t, func() bool { return len(mock.Sent()) == 3 })
	seen := make(map[int64]bool)
	for _, to := range mock.LastTo() {
		seen[to] = true
	}
	for _, id := range []int64{1, 2, 3} {
		if !seen[id] {
			t.Errorf("observer %d not notified", id)
		}
	}
}

func TestBroadcastSwallowsSendFailures(t *testing.T) {
	mock := messaging.NewMockService()
	mock.SendErr = errors.New("blocked")
	n := NewNotifier(mock, []int64{1, 2}, nil)

	// Must not panic or block; failures are logged and dropped.
	n.Broadcast(context.Background(), "new feedback")
	time.Sleep(50 * time.Millisecond)
	if got := len(mock.Sent()); got != 0 {
		t.Errorf("expected no recorded sends, got %d", got)
	}
}

func TestIsObserver(t *testing.T) {
	n := NewNotifier(messaging.NewMockService(), []int64{7}, nil)
	if !n.IsObserver(7) {
		t.Error("expected 7 to be an observer")
	}
	if n.IsObserver(8) {
		t.Error("expected 8 not to be an observer")
	}
}
