package sheet

import (
	"context"
	"sync"
)

// MemoryBackend is an in-memory backend for tests and local development.
type MemoryBackend struct {
	mu     sync.Mutex
	tables map[string][][]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tables: make(map[string][][]string)}
}

// Open returns a handle to the named table.
func (b *MemoryBackend) Open(ctx context.Context, table string) (Tab, error) {
	return &memoryTab{backend: b, name: table}, nil
}

// Close is a no-op for the in-memory backend.
func (b *MemoryBackend) Close() error {
	return nil
}

// Snapshot returns a deep copy of a table's rows, header included.
// Intended for test assertions.
func (b *MemoryBackend) Snapshot(table string) [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	src := b.tables[table]
	out := make([][]string, len(src))
	for i, row := range src {
		out[i] = append([]string(nil), row...)
	}
	return out
}

type memoryTab struct {
	backend *MemoryBackend
	name    string
}

func (t *memoryTab) Header(ctx context.Context) ([]string, error) {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	rows := t.backend.tables[t.name]
	if len(rows) == 0 {
		return nil, nil
	}
	return append([]string(nil), rows[0]...), nil
}

func (t *memoryTab) SetHeader(ctx context.Context, cols []string) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	rows := t.backend.tables[t.name]
	header := append([]string(nil), cols...)
	if len(rows) == 0 {
		t.backend.tables[t.name] = [][]string{header}
	} else {
		rows[0] = header
	}
	return nil
}

func (t *memoryTab) Append(ctx context.Context, cells []string) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	t.backend.tables[t.name] = append(t.backend.tables[t.name], append([]string(nil), cells...))
	return nil
}

func (t *memoryTab) Rows(ctx context.Context) ([][]string, error) {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	src := t.backend.tables[t.name]
	out := make([][]string, len(src))
	for i, row := range src {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (t *memoryTab) UpdateCell(ctx context.Context, row, col int, value string) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	rows := t.backend.tables[t.name]
	if row < 1 || row > len(rows) {
		return ErrNoTable
	}
	rows[row-1] = setCell(rows[row-1], col, value)
	return nil
}
