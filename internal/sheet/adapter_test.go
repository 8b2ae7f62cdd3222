package sheet

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testHeader = []string{"timestamp", "user_id", "company", "comment"}

func newTestAdapter(t *testing.T) (*Adapter, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	a := NewAdapter(backend, WithSleep(func(time.Duration) {}))
	a.Register("feedback", testHeader)
	return a, backend
}

func TestResolveColumnsWritesCanonicalHeader(t *testing.T) {
	a, backend := newTestAdapter(t)
	cols, err := a.ResolveColumns(context.Background(), "feedback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols["timestamp"] != 1 || cols["comment"] != 4 {
		t.Errorf("unexpected column mapping: %v", cols)
	}
	rows := backend.Snapshot("feedback")
	if len(rows) != 1 || rows[0][1] != "user_id" {
		t.Errorf("canonical header not written: %v", rows)
	}
}

func TestResolveColumnsPrefersExistingHeader(t *testing.T) {
	backend := NewMemoryBackend()
	tab, _ := backend.Open(context.Background(), "feedback")
	// Existing header with a different column order than the canonical one.
	if err := tab.SetHeader(context.Background(), []string{"company", "user_id"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := NewAdapter(backend, WithSleep(func(time.Duration) {}))
	a.Register("feedback", testHeader)
	cols, err := a.ResolveColumns(context.Background(), "feedback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols["company"] != 1 || cols["user_id"] != 2 {
		t.Errorf("existing header should win: %v", cols)
	}
}

func TestAppendRowBuildsFullWidthRow(t *testing.T) {
	a, backend := newTestAdapter(t)
	ok := a.AppendRow(context.Background(), "feedback", map[string]string{
		"user_id": "42",
		"comment": "fine",
	})
	if !ok {
		t.Fatal("expected append to succeed")
	}
	rows := backend.Snapshot("feedback")
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	got := rows[1]
	want := []string{"", "42", "", "fine"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFindLatestRowForKey(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()
	a.AppendRow(ctx, "feedback", map[string]string{"user_id": "42", "company": "Acme"})
	a.AppendRow(ctx, "feedback", map[string]string{"user_id": "7", "company": "Globex"})
	a.AppendRow(ctx, "feedback", map[string]string{"user_id": "42", "company": "Acme v2"})

	row, found := a.FindLatestRowForKey(ctx, "feedback", "user_id", "42")
	if !found {
		t.Fatal("expected to find a row")
	}
	if row != 4 {
		t.Errorf("expected latest matching row 4, got %d", row)
	}

	if _, found := a.FindLatestRowForKey(ctx, "feedback", "user_id", "999"); found {
		t.Error("expected not-found for unknown key")
	}
}

func TestUpdateCellLeavesOtherColumnsUntouched(t *testing.T) {
	a, backend := newTestAdapter(t)
	ctx := context.Background()
	a.AppendRow(ctx, "feedback", map[string]string{"user_id": "42", "company": "Acme"})

	before := backend.Snapshot("feedback")
	if err := a.UpdateCell(ctx, "feedback", 2, "comment", "late note"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := backend.Snapshot("feedback")

	if after[1][3] != "late note" {
		t.Errorf("comment cell not updated: %v", after[1])
	}
	for i := 0; i < 3; i++ {
		if after[1][i] != before[1][i] {
			t.Errorf("cell %d changed from %q to %q", i, before[1][i], after[1][i])
		}
	}
}

func TestReadAllRowsNormalizesBlanks(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()
	a.AppendRow(ctx, "feedback", map[string]string{"user_id": "42"})

	recs, err := a.ReadAllRows(ctx, "feedback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if v, ok := recs[0]["company"]; !ok || v != "" {
		t.Errorf("blank cell should normalize to empty string, got %q (present=%v)", v, ok)
	}
}

// failingBackend counts Open calls and always fails appends.
type failingBackend struct {
	opens int
}

func (b *failingBackend) Open(ctx context.Context, table string) (Tab, error) {
	b.opens++
	return &failingTab{}, nil
}

func (b *failingBackend) Close() error { return nil }

type failingTab struct{}

func (t *failingTab) Header(ctx context.Context) ([]string, error) {
	return []string{"user_id"}, nil
}
func (t *failingTab) SetHeader(ctx context.Context, cols []string) error { return nil }
func (t *failingTab) Append(ctx context.Context, cells []string) error {
	return errors.New("rate limited")
}
func (t *failingTab) Rows(ctx context.Context) ([][]string, error) { return nil, nil }
func (t *failingTab) UpdateCell(ctx context.Context, row, col int, value string) error {
	return errors.New("rate limited")
}

func TestAppendRowRetryExhaustion(t *testing.T) {
	backend := &failingBackend{}
	var delays []time.Duration
	a := NewAdapter(backend, WithSleep(func(d time.Duration) { delays = append(delays, d) }))
	a.Register("feedback", testHeader)

	ok := a.AppendRow(context.Background(), "feedback", map[string]string{"user_id": "42"})
	if ok {
		t.Fatal("expected append to fail after retries")
	}
	if backend.opens != DefaultAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultAttempts, backend.opens)
	}
	if len(delays) != DefaultAttempts-1 {
		t.Fatalf("expected %d inter-attempt delays, got %d", DefaultAttempts-1, len(delays))
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] < delays[i-1] {
			t.Errorf("delays should be non-decreasing: %v", delays)
		}
	}
}

func TestHeaderGrowthReresolved(t *testing.T) {
	a, backend := newTestAdapter(t)
	ctx := context.Background()
	a.AppendRow(ctx, "feedback", map[string]string{"user_id": "42"})

	// Grow the header behind the adapter's cache.
	tab, _ := backend.Open(ctx, "feedback")
	if err := tab.SetHeader(ctx, append(append([]string(nil), testHeader...), "extra")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := a.UpdateCell(ctx, "feedback", 2, "extra", "x"); err != nil {
		t.Fatalf("expected new column to be picked up, got %v", err)
	}
	rows := backend.Snapshot("feedback")
	if rows[1][4] != "x" {
		t.Errorf("new column not written: %v", rows[1])
	}
}
