// Package queue is the durable background task queue.
//
// Tasks live in the task table until a worker claims them. A claim deletes
// the row inside a transaction and runs the handler in that same
// transaction, so a task either completes and disappears or rolls back and
// is marked failed. Failed tasks stay in the table until an operator
// requeues or deletes them; nothing is retried automatically.
package queue

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

// TaskType names a kind of task. The set is closed.
type TaskType string

const (
	TypeGenerateFragments TaskType = "generate_fragments"
	TypeGenerateVector    TaskType = "generate_vector"
	TypePing              TaskType = "ping"
	TypeFailingTask       TaskType = "failing_task"
)

// TaskTypes lists every known task type.
func TaskTypes() []TaskType {
	return []TaskType{TypeGenerateFragments, TypeGenerateVector, TypePing, TypeFailingTask}
}

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	switch t {
	case TypeGenerateFragments, TypeGenerateVector, TypePing, TypeFailingTask:
		return true
	}
	return false
}

// Params is implemented by every task parameter struct.
type Params interface {
	Validate() error
}

// Handler runs one task. It must do all database work through ex.Tx.
type Handler[P Params] func(ctx context.Context, ex *Exec, params P) error

// Exec is what a running handler gets from the queue.
type Exec struct {
	// Tx is the claiming transaction. Using the connection pool instead
	// blocks forever: the pool has a single connection and Tx holds it.
	Tx *sql.Tx

	TaskID int64

	queue *Queue
	hooks []func()
}

// Enqueue adds a task inside the claiming transaction.
func (ex *Exec) Enqueue(ctx context.Context, t TaskType, params Params) (int64, bool, error) {
	return ex.queue.EnqueueTx(ctx, ex.Tx, t, params)
}

// AfterCommit registers fn to run once the claiming transaction commits.
// Hooks are dropped when the task fails.
func (ex *Exec) AfterCommit(fn func()) {
	ex.hooks = append(ex.hooks, fn)
}

type definition struct {
	taskType TaskType
	// accepts reports whether p has this task's params type.
	accepts func(p Params) bool
	// decode strictly parses and validates stored params.
	decode func(raw []byte) (Params, error)
	run    func(ctx context.Context, ex *Exec, p Params) error
}

// Registry maps task types to handlers.
type Registry struct {
	defs map[TaskType]definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[TaskType]definition)}
}

// Define registers the handler for t with params type P.
func Define[P Params](r *Registry, t TaskType, h Handler[P]) error {
	if !t.Valid() {
		return apperrors.New(apperrors.ErrCodeUnknownTaskType, fmt.Sprintf("unknown task type %q", t), nil)
	}
	if _, dup := r.defs[t]; dup {
		return fmt.Errorf("task type %q already defined", t)
	}
	r.defs[t] = definition{
		taskType: t,
		accepts: func(p Params) bool {
			_, ok := p.(P)
			return ok
		},
		decode: func(raw []byte) (Params, error) {
			var p P
			if len(bytes.TrimSpace(raw)) == 0 {
				raw = []byte("{}")
			}
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&p); err != nil {
				return nil, apperrors.InvalidParamsError(string(t), err)
			}
			if err := p.Validate(); err != nil {
				return nil, apperrors.InvalidParamsError(string(t), err)
			}
			return p, nil
		},
		run: func(ctx context.Context, ex *Exec, p Params) error {
			return h(ctx, ex, p.(P))
		},
	}
	return nil
}

// MustDefine is Define for static wiring; it panics on error.
func MustDefine[P Params](r *Registry, t TaskType, h Handler[P]) {
	if err := Define(r, t, h); err != nil {
		panic(err)
	}
}

// Types returns the registered task types in name order.
func (r *Registry) Types() []TaskType {
	out := make([]TaskType, 0, len(r.defs))
	for t := range r.defs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) lookup(t TaskType) (definition, error) {
	def, ok := r.defs[t]
	if !ok {
		return definition{}, apperrors.New(apperrors.ErrCodeUnknownTaskType,
			fmt.Sprintf("task type %q not implemented", t), nil).WithDetail("task_type", string(t))
	}
	return def, nil
}

// canonicalParams validates p against t and returns its stored JSON form.
func (r *Registry) canonicalParams(t TaskType, p Params) ([]byte, error) {
	def, err := r.lookup(t)
	if err != nil {
		return nil, err
	}
	if p == nil || !def.accepts(p) {
		return nil, apperrors.InvalidParamsError(string(t), fmt.Errorf("params of type %T", p))
	}
	if err := p.Validate(); err != nil {
		return nil, apperrors.InvalidParamsError(string(t), err)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, apperrors.InvalidParamsError(string(t), err)
	}
	return raw, nil
}

// NoParams is the params type of tasks that take none.
type NoParams struct{}

// Validate accepts the empty object.
func (NoParams) Validate() error { return nil }
