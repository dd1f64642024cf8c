package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/store"
)

const (
	// DefaultInterval is the pause between two tasks of one drain.
	DefaultInterval = time.Second

	// DefaultPollInterval is how often Run checks for work without a wake.
	DefaultPollInterval = 30 * time.Second
)

// Queue claims and runs tasks from the task table.
type Queue struct {
	db       *sql.DB
	registry *Registry
	interval time.Duration
	poll     time.Duration
	logger   *slog.Logger
	now      func() time.Time

	processing atomic.Bool
	stopped    atomic.Bool
	stopCh     chan struct{}
	wakeCh     chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithInterval sets the pause between tasks. Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.interval = d
		}
	}
}

// WithPollInterval sets how often Run looks for work on its own.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.poll = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithClock overrides time.Now for created_at and failed_at.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// New creates a queue over db running the handlers in registry.
func New(db *sql.DB, registry *Registry, opts ...Option) *Queue {
	q := &Queue{
		db:       db,
		registry: registry,
		interval: DefaultInterval,
		poll:     DefaultPollInterval,
		logger:   slog.Default(),
		now:      time.Now,
		stopCh:   make(chan struct{}, 1),
		wakeCh:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Registry returns the handler registry.
func (q *Queue) Registry() *Registry {
	return q.registry
}

// Enqueue validates params and inserts a task. An identical task already in
// the table makes it a no-op that returns the existing id and false.
func (q *Queue) Enqueue(ctx context.Context, t TaskType, params Params) (int64, bool, error) {
	return q.EnqueueTx(ctx, q.db, t, params)
}

// EnqueueTx is Enqueue inside the caller's transaction.
func (q *Queue) EnqueueTx(ctx context.Context, tx store.DBTX, t TaskType, params Params) (int64, bool, error) {
	raw, err := q.registry.canonicalParams(t, params)
	if err != nil {
		return 0, false, err
	}
	return q.insert(ctx, tx, t, raw)
}

// EnqueueRaw parses params from JSON, rejecting unknown fields, and enqueues
// the task in canonical form.
func (q *Queue) EnqueueRaw(ctx context.Context, t TaskType, params json.RawMessage) (int64, bool, error) {
	def, err := q.registry.lookup(t)
	if err != nil {
		return 0, false, err
	}
	p, err := def.decode(params)
	if err != nil {
		return 0, false, err
	}
	return q.Enqueue(ctx, t, p)
}

func (q *Queue) insert(ctx context.Context, tx store.DBTX, t TaskType, params []byte) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO task (task_type, params, created_at)
		VALUES (?1, ?2, ?3)
		ON CONFLICT (task_type, params) DO NOTHING
		RETURNING id`,
		string(t), string(params), q.now().UnixMilli()).Scan(&id)
	if err == nil {
		q.logger.Debug("task_enqueued", slog.Int64("task_id", id), slog.String("task_type", string(t)))
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to enqueue %s: %w", t, err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT id FROM task WHERE task_type = ?1 AND params = ?2`,
		string(t), string(params)).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to find existing %s task: %w", t, err)
	}
	return id, false, nil
}

// Result describes one claimed task.
type Result struct {
	TaskID   int64
	Type     TaskType
	Params   json.RawMessage
	Duration time.Duration
	// Err is the handler failure recorded on the task, nil on success.
	Err error
}

const claimSQL = `
	DELETE FROM task
	WHERE id = (
		SELECT id FROM task
		WHERE failed_at IS NULL
		ORDER BY (task_type = 'generate_fragments') DESC, random()
		LIMIT 1
	)
	RETURNING id, task_type, params`

// RunNext claims one pending task and runs it. It returns nil, nil when no
// task is pending. Handler failures are recorded on the task and reported in
// Result.Err; the returned error is reserved for database failures.
//
// The claim takes the write lock (BEGIN IMMEDIATE) before selecting, so two
// workers can never claim the same row.
func (q *Queue) RunNext(ctx context.Context) (*Result, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		res     Result
		rawType string
		params  string
	)
	if err := tx.QueryRowContext(ctx, claimSQL).Scan(&res.TaskID, &rawType, &params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	res.Type = TaskType(rawType)
	res.Params = json.RawMessage(params)

	ex := &Exec{Tx: tx, TaskID: res.TaskID, queue: q}
	start := time.Now()
	runErr := q.execute(ctx, ex, res.Type, res.Params)
	res.Duration = time.Since(start)

	if runErr == nil {
		if err := tx.Commit(); err != nil {
			runErr = fmt.Errorf("failed to commit task: %w", err)
		}
	}
	if runErr != nil {
		_ = tx.Rollback()
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Interrupted tasks stay pending.
			return nil, ctxErr
		}
		res.Err = apperrors.TaskError(rawType, runErr)
		q.logger.Warn("task_failed",
			slog.Int64("task_id", res.TaskID),
			slog.String("task_type", rawType),
			slog.Duration("duration", res.Duration),
			slog.String("error", runErr.Error()))
		if err := q.markFailed(ctx, res.TaskID, runErr); err != nil {
			return &res, err
		}
		return &res, nil
	}

	for _, hook := range ex.hooks {
		hook()
	}
	q.logger.Info("task_completed",
		slog.Int64("task_id", res.TaskID),
		slog.String("task_type", rawType),
		slog.Duration("duration", res.Duration))
	return &res, nil
}

func (q *Queue) execute(ctx context.Context, ex *Exec, t TaskType, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	def, err := q.registry.lookup(t)
	if err != nil {
		return err
	}
	p, err := def.decode(raw)
	if err != nil {
		return err
	}
	return def.run(ctx, ex, p)
}

// markFailed runs after the claim rolled back, so the row exists again.
func (q *Queue) markFailed(ctx context.Context, id int64, cause error) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE task SET failed_at = ?1, error = ?2 WHERE id = ?3`,
		q.now().UnixMilli(), cause.Error(), id)
	if err != nil {
		return fmt.Errorf("failed to mark task %d failed: %w", id, err)
	}
	return nil
}

// ProcessPendingTasks runs tasks until none is pending or Stop is called.
// A call made while another drain is running returns immediately. A Stop
// that arrives while no drain is running ends the next one before its
// first task.
func (q *Queue) ProcessPendingTasks(ctx context.Context) error {
	if !q.processing.CompareAndSwap(false, true) {
		return nil
	}
	defer func() {
		q.stopped.Store(false)
		select {
		case <-q.stopCh:
		default:
		}
		q.processing.Store(false)
	}()

	for !q.stopped.Load() {
		pending, err := q.pendingCount(ctx)
		if err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		if _, err := q.RunNext(ctx); err != nil {
			return err
		}
		if q.interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.stopCh:
			case <-time.After(q.interval):
			}
		}
	}
	return nil
}

// Processing reports whether a drain is running.
func (q *Queue) Processing() bool {
	return q.processing.Load()
}

// Stop asks the running drain to finish after its current task, or the next
// drain to return without running any.
func (q *Queue) Stop() {
	q.stopped.Store(true)
	select {
	case q.stopCh <- struct{}{}:
	default:
	}
}

// Wake nudges Run to start a drain. It never blocks; wakes sent while a
// drain is pending coalesce.
func (q *Queue) Wake() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

// Run drains the queue at start, on every Wake and every poll interval,
// until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	q.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.wakeCh:
		case <-ticker.C:
		}
		q.drain(ctx)
	}
}

func (q *Queue) drain(ctx context.Context) {
	if err := q.ProcessPendingTasks(ctx); err != nil && ctx.Err() == nil {
		q.logger.Error("queue_drain_failed", apperrors.LogAttrs(err)...)
	}
}

func (q *Queue) pendingCount(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task WHERE failed_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending tasks: %w", err)
	}
	return n, nil
}
