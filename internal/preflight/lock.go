package preflight

import (
	"fmt"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/store"
)

// CheckWriterLock tries the database writer lock and releases it at once.
// A lock held by a running serve or watch process is only a warning.
func (c *Checker) CheckWriterLock(dbPath string) CheckResult {
	result := CheckResult{
		Name:     "writer_lock",
		Required: true,
	}

	lock := store.NewWriterLock(dbPath)
	err := lock.Acquire()
	switch {
	case err == nil:
		_ = lock.Release()
		result.Status = StatusPass
		result.Message = "available"
	case apperrors.GetCode(err) == apperrors.ErrCodeDatabaseLocked:
		result.Status = StatusWarn
		result.Message = "held by another fttf process"
	default:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot take lock: %v", err)
	}
	result.Details = lock.Path()
	return result
}
