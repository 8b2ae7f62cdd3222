// Package sheet provides the row store used for survey persistence.
//
// This file implements the PostgreSQL-backed backend.
package sheet

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresBackend stores tables in a PostgreSQL database.
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend creates a new Postgres backend based on provided options.
func NewPostgresBackend(opts ...Option) (*PostgresBackend, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresBackend invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresBackend DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresBackend{db: db}, nil
}

// Open returns a handle to the named table.
func (b *PostgresBackend) Open(ctx context.Context, table string) (Tab, error) {
	return &postgresTab{db: b.db, name: table}, nil
}

// Close closes the Postgres database connection.
func (b *PostgresBackend) Close() error {
	slog.Debug("Closing Postgres database connection")
	return b.db.Close()
}

type postgresTab struct {
	db   *sql.DB
	name string
}

func (t *postgresTab) Header(ctx context.Context) ([]string, error) {
	var cellsJSON string
	err := t.db.QueryRowContext(ctx,
		`SELECT cells FROM sheet_rows WHERE tab = $1 AND row_idx = $2`, t.name, HeaderRow).Scan(&cellsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("postgresTab Header failed", "error", err, "tab", t.name)
		return nil, fmt.Errorf("failed to read header of %s: %w", t.name, err)
	}
	return decodeCells(cellsJSON)
}

func (t *postgresTab) SetHeader(ctx context.Context, cols []string) error {
	cellsJSON, err := encodeCells(cols)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO sheet_rows (tab, row_idx, cells) VALUES ($1, $2, $3)
		 ON CONFLICT (tab, row_idx) DO UPDATE SET cells = EXCLUDED.cells`,
		t.name, HeaderRow, cellsJSON)
	if err != nil {
		slog.Error("postgresTab SetHeader failed", "error", err, "tab", t.name)
		return fmt.Errorf("failed to write header of %s: %w", t.name, err)
	}
	slog.Debug("postgresTab SetHeader succeeded", "tab", t.name, "columns", len(cols))
	return nil
}

func (t *postgresTab) Append(ctx context.Context, cells []string) error {
	cellsJSON, err := encodeCells(cells)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO sheet_rows (tab, row_idx, cells)
		 SELECT $1, COALESCE(MAX(row_idx), 0) + 1, $2 FROM sheet_rows WHERE tab = $3`,
		t.name, cellsJSON, t.name)
	if err != nil {
		slog.Error("postgresTab Append failed", "error", err, "tab", t.name)
		return fmt.Errorf("failed to append row to %s: %w", t.name, err)
	}
	slog.Debug("postgresTab Append succeeded", "tab", t.name)
	return nil
}

func (t *postgresTab) Rows(ctx context.Context) ([][]string, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT cells FROM sheet_rows WHERE tab = $1 ORDER BY row_idx`, t.name)
	if err != nil {
		slog.Error("postgresTab Rows query failed", "error", err, "tab", t.name)
		return nil, fmt.Errorf("failed to query rows of %s: %w", t.name, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			slog.Error("postgresTab Rows scan failed", "error", err, "tab", t.name)
			return nil, fmt.Errorf("failed to scan row of %s: %w", t.name, err)
		}
		cells, err := decodeCells(cellsJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows of %s: %w", t.name, err)
	}
	return out, nil
}

func (t *postgresTab) UpdateCell(ctx context.Context, row, col int, value string) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update of %s: %w", t.name, err)
	}
	defer tx.Rollback()

	var cellsJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT cells FROM sheet_rows WHERE tab = $1 AND row_idx = $2 FOR UPDATE`, t.name, row).Scan(&cellsJSON)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s has no row %d", t.name, row)
	}
	if err != nil {
		return fmt.Errorf("failed to read row %d of %s: %w", row, t.name, err)
	}

	cells, err := decodeCells(cellsJSON)
	if err != nil {
		return err
	}
	cells = setCell(cells, col, value)
	cellsJSON, err = encodeCells(cells)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sheet_rows SET cells = $1 WHERE tab = $2 AND row_idx = $3`,
		cellsJSON, t.name, row); err != nil {
		return fmt.Errorf("failed to update row %d of %s: %w", row, t.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update of %s: %w", t.name, err)
	}
	slog.Debug("postgresTab UpdateCell succeeded", "tab", t.name, "row", row, "col", col)
	return nil
}
