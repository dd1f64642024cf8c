package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

// MemoryPath opens a private in-memory database. Used by tests.
const MemoryPath = ":memory:"

// DBTX is the subset of *sql.DB and *sql.Tx used by the stores.
// Task handlers receive the claiming *sql.Tx and hand it to stores through WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// InTx runs fn inside a transaction. When db is already a transaction fn
// joins it and the caller owns commit and rollback.
func InTx(ctx context.Context, db DBTX, fn func(tx DBTX) error) error {
	b, ok := db.(txBeginner)
	if !ok {
		return fn(db)
	}

	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Open opens the history database at path and configures the connection.
//
// The pool is limited to one connection: SQLite allows a single writer, and
// an in-memory database only exists on the connection that created it.
// Transactions use BEGIN IMMEDIATE so a claim takes the write lock up front.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if err := registerFunctions(); err != nil {
		return nil, apperrors.IOError("failed to register SQL functions", err)
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, apperrors.IOError("failed to create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, apperrors.IOError("failed to open database", err).WithDetail("path", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -32768",
	}
	if path != MemoryPath {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, apperrors.IOError("failed to configure database", err).WithDetail("pragma", p)
		}
	}

	slog.Debug("database_opened", slog.String("path", path))
	return db, nil
}

func dsn(path string) string {
	return path + "?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// SizeBytes returns page_count * page_size for the open database.
func SizeBytes(ctx context.Context, db DBTX) (int64, error) {
	var pages, size int64
	if err := db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pages); err != nil {
		return 0, fmt.Errorf("failed to read page_count: %w", err)
	}
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to read page_size: %w", err)
	}
	return pages * size, nil
}

// Checkpoint truncates the WAL file. Errors are ignored for in-memory databases.
func Checkpoint(ctx context.Context, db DBTX) error {
	_, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

// IntegrityCheck runs PRAGMA quick_check and reports a corrupt database.
func IntegrityCheck(ctx context.Context, db DBTX) error {
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptDB, "integrity check failed", err)
	}
	if result != "ok" {
		return apperrors.New(apperrors.ErrCodeCorruptDB, "database corrupted", nil).
			WithDetail("check", result).
			WithSuggestion("Restore from an export with 'fttf import', or remove the database file to start over.")
	}
	return nil
}
