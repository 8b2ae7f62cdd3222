package records

import (
	"context"
	"testing"
	"time"

	"github.com/rentagg/feedbot/internal/models"
	"github.com/rentagg/feedbot/internal/sheet"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *sheet.MemoryBackend) {
	t.Helper()
	backend := sheet.NewMemoryBackend()
	adapter := sheet.NewAdapter(backend, sheet.WithSleep(func(time.Duration) {}))
	return NewCoordinator(adapter), backend
}

var testIdentity = models.Identity{ID: 42, Username: "acme_cars", FullName: "Acme Cars"}

func TestCreateWritesIdentityAndAnswers(t *testing.T) {
	c, backend := newTestCoordinator(t)
	ok := c.Create(context.Background(), testIdentity, map[string]string{
		ColCompany: "Acme",
		ColQ1:      "15–30 минут",
		ColQ5:      "9",
	})
	if !ok {
		t.Fatal("expected create to succeed")
	}

	rows := backend.Snapshot(FeedbackTable)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	rec := rowByHeader(rows[0], rows[1])
	if rec[ColUserID] != "42" || rec[ColUsername] != "acme_cars" {
		t.Errorf("identity not populated: %v", rec)
	}
	if rec[ColCompany] != "Acme" || rec[ColQ5] != "9" {
		t.Errorf("answers not populated: %v", rec)
	}
	if rec[ColRawJSON] == "" {
		t.Error("raw snapshot missing")
	}
	if _, err := time.Parse(time.RFC3339, rec[ColTimestamp]); err != nil {
		t.Errorf("timestamp not RFC3339: %q", rec[ColTimestamp])
	}
}

func TestAmendUpdatesOnlyPatchColumns(t *testing.T) {
	c, backend := newTestCoordinator(t)
	ctx := context.Background()
	c.Create(ctx, testIdentity, map[string]string{ColCompany: "Acme", ColQ5: "9"})
	// Second user in between, and an older row for the same user.
	c.Create(ctx, models.Identity{ID: 7}, map[string]string{ColCompany: "Globex"})
	c.Create(ctx, testIdentity, map[string]string{ColCompany: "Acme v2", ColQ5: "10"})

	before := backend.Snapshot(FeedbackTable)
	ok := c.Amend(ctx, testIdentity, map[string]string{ColComment: "call me"})
	if !ok {
		t.Fatal("expected amend to succeed")
	}
	after := backend.Snapshot(FeedbackTable)

	if len(after) != len(before) {
		t.Fatalf("amend must not append rows: %d -> %d", len(before), len(after))
	}
	// Most recent matching row (sheet row 4, slice index 3) gets the patch.
	rec := rowByHeader(after[0], after[3])
	if rec[ColComment] != "call me" {
		t.Errorf("comment not amended: %v", rec)
	}
	if rec[ColCompany] != "Acme v2" || rec[ColQ5] != "10" {
		t.Errorf("untouched columns changed: %v", rec)
	}
	// Older row for the same user is untouched.
	old := rowByHeader(after[0], after[1])
	if old[ColComment] != "" {
		t.Errorf("amend must target only the latest row: %v", old)
	}
}

func TestAmendFallsBackToSparseCreate(t *testing.T) {
	c, backend := newTestCoordinator(t)
	ok := c.Amend(context.Background(), testIdentity, map[string]string{ColComment: "late note"})
	if !ok {
		t.Fatal("expected fallback create to succeed")
	}
	rows := backend.Snapshot(FeedbackTable)
	if len(rows) != 2 {
		t.Fatalf("expected exactly one new row, got %d data rows", len(rows)-1)
	}
	rec := rowByHeader(rows[0], rows[1])
	if rec[ColComment] != "late note" {
		t.Errorf("amendment field missing: %v", rec)
	}
	for _, col := range []string{ColCompany, ColQ1, ColQ2, ColQ3, ColQ4, ColQ5} {
		if rec[col] != "" {
			t.Errorf("survey column %s should be blank in sparse row, got %q", col, rec[col])
		}
	}
}

func TestLocaleRoundTrip(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, found := c.LoadLocale(ctx, 42); found {
		t.Fatal("expected no stored locale")
	}
	if !c.SaveLocale(ctx, 42, models.LocaleUZ) {
		t.Fatal("expected save to succeed")
	}
	loc, found := c.LoadLocale(ctx, 42)
	if !found || loc != models.LocaleUZ {
		t.Errorf("expected uz, got %s (found=%v)", loc, found)
	}

	// Re-selecting overwrites, not duplicates.
	if !c.SaveLocale(ctx, 42, models.LocaleRU) {
		t.Fatal("expected save to succeed")
	}
	loc, _ = c.LoadLocale(ctx, 42)
	if loc != models.LocaleRU {
		t.Errorf("expected ru after overwrite, got %s", loc)
	}
}

// rowByHeader zips a header row and a data row into a map for assertions.
func rowByHeader(header, row []string) map[string]string {
	rec := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(row) {
			rec[name] = row[i]
		} else {
			rec[name] = ""
		}
	}
	return rec
}
