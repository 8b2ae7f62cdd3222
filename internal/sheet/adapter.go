package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default adapter configuration constants
const (
	// DefaultTimeout bounds every backend call.
	DefaultTimeout = 7 * time.Second
	// DefaultAttempts is the total number of append attempts.
	DefaultAttempts = 3
	// DefaultBackoff is the base inter-attempt delay; the actual delay is
	// DefaultBackoff multiplied by the attempt number just completed.
	DefaultBackoff = 700 * time.Millisecond
)

// Adapter wraps a Backend with named-column resolution, bounded timeouts,
// and retry with linear backoff. Write failures never escape as errors:
// callers receive pass/fail.
type Adapter struct {
	backend  Backend
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	sleep    func(time.Duration)

	mu      sync.Mutex
	headers map[string][]string       // canonical header per registered table
	columns map[string]map[string]int // cached name -> 1-based index per table
}

// NewAdapter creates an Adapter over the given backend.
func NewAdapter(backend Backend, opts ...Option) *Adapter {
	cfg := Opts{
		Timeout:  DefaultTimeout,
		Attempts: DefaultAttempts,
		Backoff:  DefaultBackoff,
		Sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Creating sheet adapter", "timeout", cfg.Timeout, "attempts", cfg.Attempts, "backoff", cfg.Backoff)
	return &Adapter{
		backend:  backend,
		timeout:  cfg.Timeout,
		attempts: cfg.Attempts,
		backoff:  cfg.Backoff,
		sleep:    cfg.Sleep,
		headers:  make(map[string][]string),
		columns:  make(map[string]map[string]int),
	}
}

// Register declares the canonical header for a table. The header is written
// to the store the first time the table is accessed empty; an existing
// header in the store always wins over the canonical one for addressing.
func (a *Adapter) Register(table string, header []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.headers[table] = header
	slog.Debug("Adapter registered table", "table", table, "columns", len(header))
}

// ResolveColumns returns the column name to 1-based index mapping for a
// table, writing the canonical header first if the table is empty. The
// mapping is cached per table and re-resolved whenever a requested name is
// missing, so header growth never requires code changes.
func (a *Adapter) ResolveColumns(ctx context.Context, table string) (map[string]int, error) {
	a.mu.Lock()
	if cols, ok := a.columns[table]; ok {
		a.mu.Unlock()
		return cols, nil
	}
	a.mu.Unlock()

	tab, err := a.backend.Open(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", table, err)
	}
	return a.resolve(ctx, table, tab)
}

// resolve reads the header through an already-open handle and refreshes the
// cache.
func (a *Adapter) resolve(ctx context.Context, table string, tab Tab) (map[string]int, error) {
	header, err := tab.Header(ctx)
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", table, err)
	}
	if len(header) == 0 {
		a.mu.Lock()
		canonical := a.headers[table]
		a.mu.Unlock()
		if len(canonical) == 0 {
			return nil, fmt.Errorf("table %s has no header and none registered", table)
		}
		slog.Info("Adapter writing canonical header", "table", table, "columns", len(canonical))
		if err := tab.SetHeader(ctx, canonical); err != nil {
			return nil, fmt.Errorf("write header of %s: %w", table, err)
		}
		header = canonical
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i + 1
	}
	a.mu.Lock()
	a.columns[table] = cols
	a.mu.Unlock()
	slog.Debug("Adapter resolved columns", "table", table, "columns", len(cols))
	return cols, nil
}

// columnIndex looks a name up in the cached mapping, re-resolving once if
// the name is absent (the header may have grown since the cache was built).
func (a *Adapter) columnIndex(ctx context.Context, table string, tab Tab, name string) (int, bool, error) {
	cols, err := a.ResolveColumns(ctx, table)
	if err != nil {
		return 0, false, err
	}
	if idx, ok := cols[name]; ok {
		return idx, true, nil
	}
	cols, err = a.resolve(ctx, table, tab)
	if err != nil {
		return 0, false, err
	}
	idx, ok := cols[name]
	return idx, ok, nil
}

// AppendRow builds a full-width row from the named values and appends it.
// Unmapped columns are left blank; value keys with no matching column are
// logged and dropped. Transient failures (including timeouts) are retried
// with linearly increasing backoff, reopening the table handle each attempt.
// The result is pass/fail; low-level errors never propagate.
func (a *Adapter) AppendRow(ctx context.Context, table string, values map[string]string) bool {
	var lastErr error
	for attempt := 1; attempt <= a.attempts; attempt++ {
		if attempt > 1 {
			a.sleep(a.backoff * time.Duration(attempt-1))
			// Drop the cached mapping so a schema change behind a failure
			// is picked up on the retry.
			a.mu.Lock()
			delete(a.columns, table)
			a.mu.Unlock()
		}
		if err := a.appendOnce(ctx, table, values); err != nil {
			lastErr = err
			slog.Warn("Adapter AppendRow attempt failed", "error", err, "table", table, "attempt", attempt)
			continue
		}
		slog.Debug("Adapter AppendRow succeeded", "table", table, "attempt", attempt)
		return true
	}
	slog.Error("Adapter AppendRow exhausted retries", "error", lastErr, "table", table, "attempts", a.attempts)
	return false
}

func (a *Adapter) appendOnce(ctx context.Context, table string, values map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	tab, err := a.backend.Open(ctx, table)
	if err != nil {
		return fmt.Errorf("open table %s: %w", table, err)
	}
	cols, err := a.resolve(ctx, table, tab)
	if err != nil {
		return err
	}

	width := 0
	for _, idx := range cols {
		if idx > width {
			width = idx
		}
	}
	row := make([]string, width)
	for name, value := range values {
		idx, ok := cols[name]
		if !ok {
			slog.Warn("Adapter dropping value with no column", "table", table, "column", name)
			continue
		}
		row[idx-1] = value
	}
	return tab.Append(ctx, row)
}

// FindLatestRowForKey returns the highest row index whose key column equals
// keyValue, or false when no row matches. Lookup failures are treated as
// not-found.
func (a *Adapter) FindLatestRowForKey(ctx context.Context, table, keyColumn, keyValue string) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	tab, err := a.backend.Open(ctx, table)
	if err != nil {
		slog.Warn("Adapter FindLatestRowForKey open failed", "error", err, "table", table)
		return 0, false
	}
	idx, ok, err := a.columnIndex(ctx, table, tab, keyColumn)
	if err != nil || !ok {
		slog.Warn("Adapter FindLatestRowForKey column not resolved", "error", err, "table", table, "column", keyColumn)
		return 0, false
	}
	rows, err := tab.Rows(ctx)
	if err != nil {
		slog.Warn("Adapter FindLatestRowForKey read failed", "error", err, "table", table)
		return 0, false
	}

	latest := 0
	for rowNum, row := range rows {
		if rowNum == 0 {
			continue // header
		}
		if idx <= len(row) && row[idx-1] == keyValue {
			latest = rowNum + 1
		}
	}
	if latest == 0 {
		slog.Debug("Adapter FindLatestRowForKey not found", "table", table, "column", keyColumn)
		return 0, false
	}
	slog.Debug("Adapter FindLatestRowForKey found", "table", table, "row", latest)
	return latest, true
}

// UpdateCell overwrites one cell addressed by column name. It is not
// retried: it only runs against a row a lookup just found, and callers
// treat failure as non-fatal.
func (a *Adapter) UpdateCell(ctx context.Context, table string, row int, column, value string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	tab, err := a.backend.Open(ctx, table)
	if err != nil {
		return fmt.Errorf("open table %s: %w", table, err)
	}
	idx, ok, err := a.columnIndex(ctx, table, tab, column)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("table %s has no column %q", table, column)
	}
	if err := tab.UpdateCell(ctx, row, idx, value); err != nil {
		return fmt.Errorf("update %s!%s row %d: %w", table, column, row, err)
	}
	slog.Debug("Adapter UpdateCell succeeded", "table", table, "row", row, "column", column)
	return nil
}

// ReadAllRows returns every data row as a column-name-keyed map. Cells the
// writer never touched come back as empty strings, never as absent keys.
func (a *Adapter) ReadAllRows(ctx context.Context, table string) ([]map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	tab, err := a.backend.Open(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", table, err)
	}
	cols, err := a.resolve(ctx, table, tab)
	if err != nil {
		return nil, err
	}
	rows, err := tab.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", table, err)
	}

	var out []map[string]string
	for rowNum, row := range rows {
		if rowNum == 0 {
			continue // header
		}
		rec := make(map[string]string, len(cols))
		for name, idx := range cols {
			if idx <= len(row) {
				rec[name] = row[idx-1]
			} else {
				rec[name] = ""
			}
		}
		out = append(out, rec)
	}
	slog.Debug("Adapter ReadAllRows succeeded", "table", table, "rows", len(out))
	return out, nil
}
