package session

import (
	"context"
	"testing"
	"time"

	"github.com/rentagg/feedbot/internal/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	got, err := st.Get(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected no session for new user")
	}

	sess := &models.Session{
		UserID:    42,
		Step:      1,
		Answers:   map[string]string{"company": "Acme"},
		CreatedAt: time.Now(),
	}
	if err := st.Put(ctx, sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err = st.Get(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Answers["company"] != "Acme" {
		t.Errorf("session not stored or retrieved correctly: %+v", got)
	}

	// The returned session is a copy; mutating it must not affect the store.
	got.Answers["company"] = "Globex"
	again, _ := st.Get(ctx, 42)
	if again.Answers["company"] != "Acme" {
		t.Error("Get should return a copy, not the stored session")
	}

	if err := st.Delete(ctx, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = st.Get(ctx, 42)
	if got != nil {
		t.Error("session should be gone after Delete")
	}

	// Deleting a missing session is not an error.
	if err := st.Delete(ctx, 42); err != nil {
		t.Errorf("deleting missing session should not error: %v", err)
	}
}

// fakePersister records saves and serves a fixed locale.
type fakePersister struct {
	saved  map[int64]models.Locale
	stored map[int64]models.Locale
}

func (p *fakePersister) SaveLocale(ctx context.Context, userID int64, loc models.Locale) bool {
	if p.saved == nil {
		p.saved = make(map[int64]models.Locale)
	}
	p.saved[userID] = loc
	return true
}

func (p *fakePersister) LoadLocale(ctx context.Context, userID int64) (models.Locale, bool) {
	loc, ok := p.stored[userID]
	return loc, ok
}

func TestLanguageResolverOrder(t *testing.T) {
	ctx := context.Background()
	p := &fakePersister{stored: map[int64]models.Locale{7: models.LocaleUZ}}
	r := NewLanguageResolver(p, models.LocaleRU)
	r.SetSynchronousPersist()

	// Default when nothing is known.
	if loc := r.Resolve(ctx, 1); loc != models.LocaleRU {
		t.Errorf("expected default locale, got %s", loc)
	}

	// Durable store fallback.
	if loc := r.Resolve(ctx, 7); loc != models.LocaleUZ {
		t.Errorf("expected stored locale, got %s", loc)
	}

	// Cache is authoritative after Set.
	r.Set(ctx, 1, models.LocaleUZ)
	if loc := r.Resolve(ctx, 1); loc != models.LocaleUZ {
		t.Errorf("expected cached locale, got %s", loc)
	}
	if p.saved[1] != models.LocaleUZ {
		t.Error("expected durability write to reach the persister")
	}
}
