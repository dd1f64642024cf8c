package search

import (
	"database/sql"
	"log/slog"

	"github.com/Aman-CERP/fttf/internal/embed"
	"github.com/Aman-CERP/fttf/internal/store"
)

// Engine runs searches against the history database. It only reads.
type Engine struct {
	db        store.DBTX
	embedder  embed.Embedder
	index     *store.VectorIndex
	threshold float64
	logger    *slog.Logger
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithEmbedder sets the query embedder used by Semantic.
func WithEmbedder(e embed.Embedder) EngineOption {
	return func(en *Engine) {
		en.embedder = e
	}
}

// WithVectorIndex sets the ANN index Semantic takes candidates from.
func WithVectorIndex(idx *store.VectorIndex) EngineOption {
	return func(en *Engine) {
		en.index = idx
	}
}

// WithSemanticThreshold sets the default minimum similarity.
func WithSemanticThreshold(t float64) EngineOption {
	return func(en *Engine) {
		if t != 0 {
			en.threshold = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(en *Engine) {
		if l != nil {
			en.logger = l
		}
	}
}

// New creates a search engine over db.
func New(db store.DBTX, opts ...EngineOption) *Engine {
	e := &Engine{
		db:        db,
		threshold: DefaultSemanticThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// documentColumns selects DocumentFields from document alias d.
const documentColumns = `d.id AS document_id, d.url, d.hostname, d.title, d.excerpt, d.last_visit,
	d.last_visit_date, d.md_content_hash, d.updated_at, d.created_at`

// documentDest returns scan destinations for documentColumns and a func
// copying the scanned values into f.
func documentDest(f *DocumentFields) ([]any, func()) {
	var (
		host, title, excerpt, date, hash sql.NullString
		lastVisit, updated               sql.NullInt64
	)
	dest := []any{&f.DocumentID, &f.URL, &host, &title, &excerpt, &lastVisit, &date, &hash, &updated, &f.CreatedAt}
	return dest, func() {
		f.Hostname = host.String
		f.Title = title.String
		f.Excerpt = excerpt.String
		f.LastVisit = lastVisit.Int64
		f.LastVisitDate = date.String
		f.MdContentHash = hash.String
		f.UpdatedAt = updated.Int64
	}
}
