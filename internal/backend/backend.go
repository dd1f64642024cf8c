// Package backend is the single entry point to the history database. It
// owns the connection, the writer lock, the task queue loop and the
// in-memory vector index, and exposes every operation the CLI, the MCP
// server and the inbox watcher call.
package backend

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/fttf/internal/blacklist"
	"github.com/Aman-CERP/fttf/internal/embed"
	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/migrate"
	"github.com/Aman-CERP/fttf/internal/queue"
	"github.com/Aman-CERP/fttf/internal/search"
	"github.com/Aman-CERP/fttf/internal/store"
	"github.com/Aman-CERP/fttf/internal/tasks"
)

// State is the lifecycle state of a Backend.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateFailed        State = "failed"
	StateClosed        State = "closed"
)

// Status reports readiness.
type Status struct {
	OK    bool   `json:"ok"`
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
}

// Config configures a Backend.
type Config struct {
	// DBPath is the database file, or store.MemoryPath.
	DBPath string

	// Embedder computes fragment vectors in generate_vector tasks.
	// Nil disables embeddings.
	Embedder embed.Embedder
	// QueryEmbedder embeds search queries; nil falls back to Embedder.
	QueryEmbedder embed.Embedder

	// QueueEnabled starts the background drain loop on Open.
	QueueEnabled bool
	// QueueInterval is the pause between two tasks.
	QueueInterval time.Duration

	// HNSW loads stored vectors into the in-memory ANN index.
	HNSW bool

	DefaultLimit      int
	OrderBy           search.OrderBy
	SemanticThreshold float64

	Logger *slog.Logger
	// Clock overrides time.Now. Used by tests.
	Clock func() time.Time
}

// Backend is safe for concurrent use.
type Backend struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	state State
	err   error

	db     *sql.DB
	lock   *store.WriterLock
	docs   *store.DocumentStore
	frags  *store.FragmentStore
	rules  *blacklist.Classifier
	queue  *queue.Queue
	index  *store.VectorIndex
	engine *search.Engine

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an uninitialized Backend. Call Open before anything else.
func New(cfg Config) *Backend {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.QueryEmbedder == nil {
		cfg.QueryEmbedder = cfg.Embedder
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = search.DefaultLimit
	}
	if cfg.OrderBy == "" {
		cfg.OrderBy = search.OrderUpdatedAt
	}
	return &Backend{
		cfg:    cfg,
		logger: cfg.Logger,
		now:    cfg.Clock,
		state:  StateUninitialized,
	}
}

// Open creates a Backend and opens it. The Backend is returned even when
// Open fails so that its Status can be reported.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	b := New(cfg)
	return b, b.Open(ctx)
}

// Open opens the database, takes the writer lock, applies migrations,
// seeds blacklist rules, loads the vector index and starts the queue.
// Any failure leaves the Backend in StateFailed.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateUninitialized {
		return apperrors.InternalError("backend already opened", nil).WithDetail("state", string(b.state))
	}

	start := time.Now()
	db, err := store.Open(ctx, b.cfg.DBPath)
	if err != nil {
		return b.fail(err)
	}
	b.db = db

	if b.cfg.DBPath != store.MemoryPath {
		b.lock = store.NewWriterLock(b.cfg.DBPath)
		if err := b.lock.Acquire(); err != nil {
			b.lock = nil
			return b.fail(err)
		}
	}

	status, err := store.Migrate(ctx, db, migrate.WithLogger(b.logger), migrate.WithClock(b.now))
	if err != nil {
		return b.fail(err)
	}
	if !status.OK {
		return b.fail(status.Err)
	}

	b.docs = store.NewDocumentStore(db)
	b.docs.SetClock(b.now)
	b.frags = store.NewFragmentStore(db)
	b.rules = blacklist.New(db, blacklist.WithClock(b.now), blacklist.WithLogger(b.logger))

	seeded, err := b.rules.SeedDefaults(ctx)
	if err != nil {
		return b.fail(err)
	}

	if b.cfg.HNSW {
		b.index = store.NewVectorIndex(store.VectorIndexConfig{})
		n, err := b.index.Load(ctx, b.frags)
		if err != nil {
			return b.fail(err)
		}
		b.logger.Info("vector_index_loaded", slog.Int("vectors", n))
	}

	registry, err := tasks.NewRegistry(tasks.Deps{
		Embedder: b.cfg.Embedder,
		Index:    b.index,
		Logger:   b.logger,
	})
	if err != nil {
		return b.fail(err)
	}
	b.queue = queue.New(db, registry,
		queue.WithInterval(b.cfg.QueueInterval),
		queue.WithLogger(b.logger),
		queue.WithClock(b.now))

	engineOpts := []search.EngineOption{
		search.WithLogger(b.logger),
		search.WithSemanticThreshold(b.cfg.SemanticThreshold),
	}
	if b.cfg.QueryEmbedder != nil {
		engineOpts = append(engineOpts, search.WithEmbedder(b.cfg.QueryEmbedder))
	}
	if b.index != nil {
		engineOpts = append(engineOpts, search.WithVectorIndex(b.index))
	}
	b.engine = search.New(db, engineOpts...)

	if b.cfg.QueueEnabled {
		runCtx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		b.done = make(chan struct{})
		go func() {
			defer close(b.done)
			_ = b.queue.Run(runCtx)
		}()
	}

	b.state = StateReady
	b.logger.Info("backend_ready",
		slog.String("db", b.cfg.DBPath),
		slog.Int("schema_version", status.CurrentVersion),
		slog.Int("rules_seeded", seeded),
		slog.Bool("queue", b.cfg.QueueEnabled),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// fail records err, releases what Open acquired and returns err.
// The caller holds b.mu.
func (b *Backend) fail(err error) error {
	b.state = StateFailed
	b.err = err
	b.logger.Error("backend_open_failed", apperrors.LogAttrs(err)...)
	b.release()
	return err
}

// release closes resources. The caller holds b.mu.
func (b *Backend) release() {
	if b.cancel != nil {
		b.queue.Stop()
		b.cancel()
		<-b.done
		b.cancel = nil
	}
	if b.index != nil {
		_ = b.index.Close()
	}
	if b.db != nil {
		if b.cfg.DBPath != store.MemoryPath {
			_ = store.Checkpoint(context.Background(), b.db)
		}
		_ = b.db.Close()
		b.db = nil
	}
	if b.lock != nil {
		_ = b.lock.Release()
		b.lock = nil
	}
}

// Status reports whether the Backend is ready.
func (b *Backend) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Status{OK: b.state == StateReady, State: b.state}
	if b.err != nil {
		s.Error = b.err.Error()
	} else if !s.OK {
		s.Error = "database not ready"
	}
	return s
}

// ready returns a not-ready error unless the Backend is open.
func (b *Backend) ready() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state == StateReady {
		return nil
	}
	return apperrors.NotReadyError("database not ready", b.err).WithDetail("state", string(b.state))
}

// Close stops the queue after its current task and closes the database.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return nil
	}
	b.release()
	if b.state == StateReady {
		b.logger.Info("backend_closed")
	}
	b.state = StateClosed
	return nil
}

// DB returns the underlying database handle. Nil unless ready.
func (b *Backend) DB() *sql.DB {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.db
}

// Queue returns the task queue. Nil unless ready.
func (b *Backend) Queue() *queue.Queue {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.queue
}
