package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/Aman-CERP/fttf/internal/blacklist"
	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/migrate"
	"github.com/Aman-CERP/fttf/internal/queue"
	"github.com/Aman-CERP/fttf/internal/search"
	"github.com/Aman-CERP/fttf/internal/store"
	"github.com/Aman-CERP/fttf/internal/tasks"
)

// Search runs a full-text query. Zero limit and empty order fall back to
// the configured defaults.
func (b *Backend) Search(ctx context.Context, opts search.FullTextOptions) (*search.FullTextResults, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = b.cfg.DefaultLimit
	}
	if opts.OrderBy == "" {
		opts.OrderBy = b.cfg.OrderBy
	}
	return b.engine.FullText(ctx, opts)
}

// SearchTrigram finds fragments similar to query despite typos.
func (b *Backend) SearchTrigram(ctx context.Context, query string, limit int) ([]search.ScoredResult, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	return b.engine.Trigram(ctx, query, limit)
}

// SearchSemantic finds fragments whose embedding is close to query's.
func (b *Backend) SearchSemantic(ctx context.Context, query string, opts search.SemanticOptions) ([]search.ScoredResult, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	return b.engine.Semantic(ctx, query, opts)
}

// Stats is the database summary plus runtime details.
type Stats struct {
	store.Stats
	SchemaVersion  int                     `json:"schema_version"`
	VectorIndex    *store.VectorIndexStats `json:"vector_index,omitempty"`
	EmbeddingModel string                  `json:"embedding_model,omitempty"`
	QueueRunning   bool                    `json:"queue_running"`
}

// GetStats summarizes the database.
func (b *Backend) GetStats(ctx context.Context) (Stats, error) {
	if err := b.ready(); err != nil {
		return Stats{}, err
	}
	st, err := store.CollectStats(ctx, b.db)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{Stats: st, QueueRunning: b.queue.Processing()}
	if ms, err := b.MigrationStatus(ctx); err == nil {
		out.SchemaVersion = ms.CurrentVersion
	}
	if b.index != nil {
		vs := b.index.Stats()
		out.VectorIndex = &vs
	}
	if b.cfg.Embedder != nil {
		out.EmbeddingModel = b.cfg.Embedder.ModelName()
	}
	return out, nil
}

// Export writes every document and fragment to w.
func (b *Backend) Export(ctx context.Context, w io.Writer) (store.BulkSummary, error) {
	if err := b.ready(); err != nil {
		return store.BulkSummary{}, err
	}
	start := time.Now()
	sum, err := store.Export(ctx, b.db, w)
	if err != nil {
		return sum, err
	}
	b.logger.Info("export_completed",
		slog.Int("documents", sum.Documents),
		slog.Int("fragments", sum.Fragments),
		slog.Duration("duration", time.Since(start)))
	return sum, nil
}

// Import reads an export stream. Rows already present are skipped. Imported
// vectors join the vector index and fragments imported without a vector
// get a generate_vector task.
func (b *Backend) Import(ctx context.Context, r io.Reader) (store.BulkSummary, error) {
	if err := b.ready(); err != nil {
		return store.BulkSummary{}, err
	}
	start := time.Now()
	sum, err := store.Import(ctx, b.db, r)
	if err != nil {
		return sum, err
	}
	if b.index != nil {
		if _, err := b.index.Load(ctx, b.frags); err != nil {
			return sum, err
		}
	}
	queued, err := b.enqueueMissingVectors(ctx, b.db)
	if err != nil {
		return sum, err
	}
	if queued > 0 {
		b.queue.Wake()
	}
	b.logger.Info("import_completed",
		slog.Int("documents", sum.Documents),
		slog.Int("fragments", sum.Fragments),
		slog.Int("skipped", sum.Skipped),
		slog.Int("vector_tasks", queued),
		slog.Duration("duration", time.Since(start)))
	return sum, nil
}

// ReindexResult counts the work queued by Reindex.
type ReindexResult struct {
	FragmentTasks int `json:"fragment_tasks"`
	VectorTasks   int `json:"vector_tasks"`
}

// Reindex rebuilds the full-text index and queues the derived data that is
// missing: fragments for documents with content but no content fragments,
// and vectors for fragments without one. Tasks already queued are not
// duplicated.
func (b *Backend) Reindex(ctx context.Context) (ReindexResult, error) {
	if err := b.ready(); err != nil {
		return ReindexResult{}, err
	}

	var res ReindexResult
	err := store.InTx(ctx, b.db, func(tx store.DBTX) error {
		if err := b.frags.WithTx(tx).RebuildFullText(ctx); err != nil {
			return err
		}
		ids, err := b.docs.WithTx(tx).MissingFragments(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			_, inserted, err := b.queue.EnqueueTx(ctx, tx, queue.TypeGenerateFragments,
				tasks.GenerateFragmentsParams{DocumentID: id})
			if err != nil {
				return err
			}
			if inserted {
				res.FragmentTasks++
			}
		}
		res.VectorTasks, err = b.enqueueMissingVectors(ctx, tx)
		return err
	})
	if err != nil {
		return ReindexResult{}, err
	}

	b.logger.Info("reindex_queued",
		slog.Int("fragment_tasks", res.FragmentTasks),
		slog.Int("vector_tasks", res.VectorTasks))
	if res.FragmentTasks+res.VectorTasks > 0 {
		b.queue.Wake()
	}
	return res, nil
}

// enqueueMissingVectors queues generate_vector for fragments lacking one.
// Nothing is queued without an embedder.
func (b *Backend) enqueueMissingVectors(ctx context.Context, db store.DBTX) (int, error) {
	if b.cfg.Embedder == nil {
		return 0, nil
	}
	queued := 0
	err := store.InTx(ctx, db, func(tx store.DBTX) error {
		ids, err := b.frags.WithTx(tx).MissingVectors(ctx, 0)
		if err != nil {
			return err
		}
		for _, id := range ids {
			_, inserted, err := b.queue.EnqueueTx(ctx, tx, queue.TypeGenerateVector,
				tasks.GenerateVectorParams{FragmentID: id})
			if err != nil {
				return err
			}
			if inserted {
				queued++
			}
		}
		return nil
	})
	return queued, err
}

// AddRule creates or updates a blacklist rule.
func (b *Backend) AddRule(ctx context.Context, pattern, level string) (blacklist.Rule, error) {
	if err := b.ready(); err != nil {
		return blacklist.Rule{}, err
	}
	lvl, err := blacklist.RuleLevel(level)
	if err != nil {
		return blacklist.Rule{}, err
	}
	return b.rules.AddRule(ctx, pattern, lvl)
}

// RemoveRule deletes a blacklist rule.
func (b *Backend) RemoveRule(ctx context.Context, id int64) (bool, error) {
	if err := b.ready(); err != nil {
		return false, err
	}
	_, ok, err := b.rules.RemoveRule(ctx, id)
	return ok, err
}

// ListRules returns every blacklist rule.
func (b *Backend) ListRules(ctx context.Context) ([]blacklist.Rule, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	return b.rules.ListRules(ctx)
}

// Classify returns the index level of rawURL after normalization.
func (b *Backend) Classify(ctx context.Context, rawURL string) (string, blacklist.IndexLevel, error) {
	if err := b.ready(); err != nil {
		return "", "", err
	}
	normalized, err := blacklist.NormalizeURL(rawURL)
	if err != nil {
		return "", "", err
	}
	level, err := b.rules.Classify(ctx, normalized)
	return normalized, level, err
}

// TaskCounts is the size of the queue.
type TaskCounts struct {
	Pending int64 `json:"pending"`
	Failed  int64 `json:"failed"`
}

// ListTasks returns queued or failed tasks.
func (b *Backend) ListTasks(ctx context.Context, f queue.Filter) ([]queue.Task, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	return b.queue.List(ctx, f)
}

// CountTasks returns pending and failed task counts.
func (b *Backend) CountTasks(ctx context.Context) (TaskCounts, error) {
	if err := b.ready(); err != nil {
		return TaskCounts{}, err
	}
	pending, failed, err := b.queue.Counts(ctx)
	return TaskCounts{Pending: pending, Failed: failed}, err
}

// RetryTask makes a failed task pending again.
func (b *Backend) RetryTask(ctx context.Context, id int64) (bool, error) {
	if err := b.ready(); err != nil {
		return false, err
	}
	ok, err := b.queue.Requeue(ctx, id)
	if ok {
		b.queue.Wake()
	}
	return ok, err
}

// RetryFailedTasks makes every failed task pending again.
func (b *Backend) RetryFailedTasks(ctx context.Context) (int64, error) {
	if err := b.ready(); err != nil {
		return 0, err
	}
	n, err := b.queue.RequeueAllFailed(ctx)
	if n > 0 {
		b.queue.Wake()
	}
	return n, err
}

// DeleteTask removes a task whatever its state.
func (b *Backend) DeleteTask(ctx context.Context, id int64) (bool, error) {
	if err := b.ready(); err != nil {
		return false, err
	}
	return b.queue.Delete(ctx, id)
}

// EnqueueTask queues a task from its JSON params.
func (b *Backend) EnqueueTask(ctx context.Context, t queue.TaskType, params json.RawMessage) (int64, bool, error) {
	if err := b.ready(); err != nil {
		return 0, false, err
	}
	id, inserted, err := b.queue.EnqueueRaw(ctx, t, params)
	if inserted {
		b.queue.Wake()
	}
	return id, inserted, err
}

// DrainTasks runs pending tasks on the calling goroutine until none are
// left. It returns immediately when the queue is already being drained.
func (b *Backend) DrainTasks(ctx context.Context) (TaskCounts, error) {
	if err := b.ready(); err != nil {
		return TaskCounts{}, err
	}
	if err := b.queue.ProcessPendingTasks(ctx); err != nil {
		return TaskCounts{}, err
	}
	pending, failed, err := b.queue.Counts(ctx)
	return TaskCounts{Pending: pending, Failed: failed}, err
}

func (b *Backend) migrator() *migrate.Manager {
	m := migrate.NewManager(b.db, migrate.WithLogger(b.logger), migrate.WithClock(b.now))
	// Migrations() is a static list validated by Open.
	_ = m.RegisterAll(store.Migrations()...)
	return m
}

// MigrationStatus reports the schema version without changing it.
func (b *Backend) MigrationStatus(ctx context.Context) (migrate.Status, error) {
	if err := b.ready(); err != nil {
		return migrate.Status{}, err
	}
	return b.migrator().Status(ctx)
}

// AppliedMigrations lists the rows of the migrations table.
func (b *Backend) AppliedMigrations(ctx context.Context) ([]migrate.Record, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	return b.migrator().Applied(ctx)
}

// CheckIntegrity runs a quick consistency check of the database file.
func (b *Backend) CheckIntegrity(ctx context.Context) error {
	if err := b.ready(); err != nil {
		return err
	}
	if err := store.IntegrityCheck(ctx, b.db); err != nil {
		b.logger.Error("integrity_check_failed", apperrors.LogAttrs(err)...)
		return err
	}
	return nil
}
