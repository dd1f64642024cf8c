package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Status selects tasks by state.
type Status string

const (
	StatusAll     Status = ""
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// Task is a row of the task table.
type Task struct {
	ID        int64           `json:"id"`
	Type      TaskType        `json:"task_type"`
	Params    json.RawMessage `json:"params"`
	CreatedAt int64           `json:"created_at"`
	FailedAt  int64           `json:"failed_at,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Failed reports whether the task has been marked failed.
func (t Task) Failed() bool {
	return t.FailedAt != 0
}

// Filter narrows List.
type Filter struct {
	Status Status
	Type   TaskType
	// Limit caps the result; <= 0 means 100.
	Limit int
}

// Counts returns the number of pending and failed tasks.
func (q *Queue) Counts(ctx context.Context) (pending, failed int64, err error) {
	err = q.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(failed_at IS NULL), 0),
			COALESCE(SUM(failed_at IS NOT NULL), 0)
		FROM task`).Scan(&pending, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return pending, failed, nil
}

// List returns tasks oldest first.
func (q *Queue) List(ctx context.Context, f Filter) ([]Task, error) {
	var (
		where []string
		args  []any
	)
	switch f.Status {
	case StatusPending:
		where = append(where, "failed_at IS NULL")
	case StatusFailed:
		where = append(where, "failed_at IS NOT NULL")
	case StatusAll:
	default:
		return nil, fmt.Errorf("unknown task status %q", f.Status)
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("task_type = ?%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := `SELECT id, task_type, params, created_at, failed_at, error FROM task`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at, id LIMIT ?%d", len(args))

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Task
	for rows.Next() {
		var (
			t        Task
			taskType string
			params   string
			failedAt sql.NullInt64
			errText  sql.NullString
		)
		if err := rows.Scan(&t.ID, &taskType, &params, &t.CreatedAt, &failedAt, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Type = TaskType(taskType)
		t.Params = json.RawMessage(params)
		t.FailedAt = failedAt.Int64
		t.Error = errText.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes a task whatever its state.
func (q *Queue) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM task WHERE id = ?1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Requeue clears the failure mark of a failed task so the next drain runs
// it again.
func (q *Queue) Requeue(ctx context.Context, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE task SET failed_at = NULL, error = NULL WHERE id = ?1 AND failed_at IS NOT NULL`, id)
	if err != nil {
		return false, fmt.Errorf("failed to requeue task %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RequeueAllFailed requeues every failed task and returns how many.
func (q *Queue) RequeueAllFailed(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE task SET failed_at = NULL, error = NULL WHERE failed_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue tasks: %w", err)
	}
	return res.RowsAffected()
}
