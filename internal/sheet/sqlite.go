// Package sheet provides the row store used for survey persistence.
//
// This file implements the SQLite-backed backend.
package sheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteBackend stores tables in a local SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend creates a new SQLite backend with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteBackend(opts ...Option) (*SQLiteBackend, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteBackend invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteBackend DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteBackend{db: db}, nil
}

// Open returns a handle to the named table.
func (b *SQLiteBackend) Open(ctx context.Context, table string) (Tab, error) {
	return &sqliteTab{db: b.db, name: table}, nil
}

// Close closes the SQLite database connection.
func (b *SQLiteBackend) Close() error {
	slog.Debug("Closing SQLite database connection")
	return b.db.Close()
}

type sqliteTab struct {
	db   *sql.DB
	name string
}

func (t *sqliteTab) Header(ctx context.Context) ([]string, error) {
	var cellsJSON string
	err := t.db.QueryRowContext(ctx,
		`SELECT cells FROM sheet_rows WHERE tab = ? AND row_idx = ?`, t.name, HeaderRow).Scan(&cellsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("sqliteTab Header failed", "error", err, "tab", t.name)
		return nil, fmt.Errorf("failed to read header of %s: %w", t.name, err)
	}
	return decodeCells(cellsJSON)
}

func (t *sqliteTab) SetHeader(ctx context.Context, cols []string) error {
	cellsJSON, err := encodeCells(cols)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sheet_rows (tab, row_idx, cells) VALUES (?, ?, ?)`,
		t.name, HeaderRow, cellsJSON)
	if err != nil {
		slog.Error("sqliteTab SetHeader failed", "error", err, "tab", t.name)
		return fmt.Errorf("failed to write header of %s: %w", t.name, err)
	}
	slog.Debug("sqliteTab SetHeader succeeded", "tab", t.name, "columns", len(cols))
	return nil
}

func (t *sqliteTab) Append(ctx context.Context, cells []string) error {
	cellsJSON, err := encodeCells(cells)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO sheet_rows (tab, row_idx, cells)
		 SELECT ?, COALESCE(MAX(row_idx), 0) + 1, ? FROM sheet_rows WHERE tab = ?`,
		t.name, cellsJSON, t.name)
	if err != nil {
		slog.Error("sqliteTab Append failed", "error", err, "tab", t.name)
		return fmt.Errorf("failed to append row to %s: %w", t.name, err)
	}
	slog.Debug("sqliteTab Append succeeded", "tab", t.name)
	return nil
}

func (t *sqliteTab) Rows(ctx context.Context) ([][]string, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT cells FROM sheet_rows WHERE tab = ? ORDER BY row_idx`, t.name)
	if err != nil {
		slog.Error("sqliteTab Rows query failed", "error", err, "tab", t.name)
		return nil, fmt.Errorf("failed to query rows of %s: %w", t.name, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			slog.Error("sqliteTab Rows scan failed", "error", err, "tab", t.name)
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

func (t *sqliteTab) UpdateCell(ctx context.Context, row, col int, value string) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update of %s: %w", t.name, err)
	}
	defer tx.Rollback()

	var cellsJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT cells FROM sheet_rows WHERE tab = ? AND row_idx = ?`, t.name, row).Scan(&cellsJSON)
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
		`UPDATE sheet_rows SET cells = ? WHERE tab = ? AND row_idx = ?`,
		cellsJSON, t.name, row); err != nil {
		return fmt.Errorf("failed to update row %d of %s: %w", row, t.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update of %s: %w", t.name, err)
	}
	slog.Debug("sqliteTab UpdateCell succeeded", "tab", t.name, "row", row, "col", col)
	return nil
}

// encodeCells serializes a row as a JSON string array.
func encodeCells(cells []string) (string, error) {
	if cells == nil {
		cells = []string{}
	}
	b, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("failed to encode cells: %w", err)
	}
	return string(b), nil
}

// decodeCells parses a JSON string array back into a row.
func decodeCells(cellsJSON string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
		return nil, fmt.Errorf("failed to decode cells: %w", err)
	}
	return cells, nil
}

// setCell grows the row as needed and writes the 1-based column.
func setCell(cells []string, col int, value string) []string {
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	return cells
}
