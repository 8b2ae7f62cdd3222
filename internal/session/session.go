// Package session provides per-user conversation state storage.
//
// Sessions are ephemeral: they exist between begin and finalize/cancel and
// are keyed by user identity. The Store interface allows swapping the
// in-memory implementation for a networked one without touching the flow.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rentagg/feedbot/internal/models"
)

// Store defines clear/get/set access to per-user sessions.
type Store interface {
	// Get returns the session for a user, or nil when none is active.
	Get(ctx context.Context, userID int64) (*models.Session, error)

	// Put stores or replaces a user's session.
	Put(ctx context.Context, s *models.Session) error

	// Delete removes a user's session. Deleting a missing session is not an
	// error.
	Delete(ctx context.Context, userID int64) error
}

// MemoryStore is the in-process Store implementation. Concurrent updates
// for the same user are last-write-wins; this is an accepted limitation,
// not a serialized critical section.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*models.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*models.Session)}
}

// Get returns a copy of the user's session, or nil when none is active.
func (s *MemoryStore) Get(ctx context.Context, userID int64) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	cp := *sess
	cp.Answers = make(map[string]string, len(sess.Answers))
	for k, v := range sess.Answers {
		cp.Answers[k] = v
	}
	return &cp, nil
}

// Put stores or replaces a user's session.
func (s *MemoryStore) Put(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.UpdatedAt = time.Now()
	s.sessions[sess.UserID] = sess
	slog.Debug("MemoryStore Put", "userID", sess.UserID, "step", sess.Step, "answers", len(sess.Answers))
	return nil
}

// Delete removes a user's session if one exists.
func (s *MemoryStore) Delete(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	slog.Debug("MemoryStore Delete", "userID", userID)
	return nil
}
