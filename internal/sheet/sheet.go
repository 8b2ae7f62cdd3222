// Package sheet provides the row store used for survey persistence.
//
// The store models a spreadsheet: named tables whose first row is a header,
// with all addressing done by column name resolved from that header at access
// time. Backends implement raw table access; Adapter layers column
// resolution, bounded timeouts, and retry with linear backoff on top.
package sheet

import (
	"context"
	"errors"
	"time"
)

// Row indices are 1-based throughout the package, with row 1 the header,
// matching spreadsheet addressing.
const HeaderRow = 1

// ErrNoTable is returned by backends when a table has never been written.
var ErrNoTable = errors.New("table does not exist")

// Tab is an open handle to one named table. Handles are cheap and are
// reopened per write attempt rather than held long-term.
type Tab interface {
	// Header returns the header row, or an empty slice if none was written.
	Header(ctx context.Context) ([]string, error)

	// SetHeader writes the header row. Only valid while the table is empty.
	SetHeader(ctx context.Context, cols []string) error

	// Append adds a full-width row after the last existing row.
	Append(ctx context.Context, cells []string) error

	// Rows returns every row including the header, in row order. Cells the
	// writer never touched come back as empty strings.
	Rows(ctx context.Context) ([][]string, error)

	// UpdateCell overwrites a single cell. Row and column are 1-based.
	UpdateCell(ctx context.Context, row, col int, value string) error
}

// Backend opens table handles against a concrete storage engine.
type Backend interface {
	Open(ctx context.Context, table string) (Tab, error)
	Close() error
}

// Opts holds configuration options for store backends and the adapter.
type Opts struct {
	DSN      string
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
	Sleep    func(time.Duration)
}

// Option defines a configuration option.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithTimeout sets the per-call timeout for backend I/O.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithAttempts sets the total number of write attempts.
func WithAttempts(n int) Option {
	return func(o *Opts) { o.Attempts = n }
}

// WithBackoff sets the base inter-attempt delay. The delay grows linearly:
// backoff × attempt number.
func WithBackoff(d time.Duration) Option {
	return func(o *Opts) { o.Backoff = d }
}

// WithSleep overrides the sleep function between attempts (for tests).
func WithSleep(fn func(time.Duration)) Option {
	return func(o *Opts) { o.Sleep = fn }
}
