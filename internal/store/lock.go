package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

// WriterLock is a cross-process lock held for as long as a process owns the
// history database. The engine assumes exactly one writer process.
type WriterLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewWriterLock returns the lock guarding dbPath (<dbPath>.lock).
func NewWriterLock(dbPath string) *WriterLock {
	path := dbPath + ".lock"
	return &WriterLock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock without blocking. A lock held by another process
// yields an ErrCodeDatabaseLocked error.
func (l *WriterLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire writer lock: %w", err)
	}
	if !ok {
		return apperrors.New(apperrors.ErrCodeDatabaseLocked, "history database is in use by another fttf process", nil).
			WithDetail("lock", l.path).
			WithSuggestion("Stop the other fttf process (serve, watch or a running drain) and retry.")
	}
	l.locked = true
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *WriterLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release writer lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *WriterLock) Path() string {
	return l.path
}
