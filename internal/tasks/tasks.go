// Package tasks holds the handlers run by the background queue.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Aman-CERP/fttf/internal/chunk"
	"github.com/Aman-CERP/fttf/internal/embed"
	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/queue"
	"github.com/Aman-CERP/fttf/internal/store"
)

// GenerateFragmentsParams selects the document to fragment.
type GenerateFragmentsParams struct {
	DocumentID int64 `json:"document_id"`
}

// Validate requires a positive id.
func (p GenerateFragmentsParams) Validate() error {
	if p.DocumentID <= 0 {
		return errors.New("document_id must be a positive integer")
	}
	return nil
}

// GenerateVectorParams selects the fragment to embed.
type GenerateVectorParams struct {
	FragmentID int64 `json:"fragment_id"`
}

// Validate requires a positive id.
func (p GenerateVectorParams) Validate() error {
	if p.FragmentID <= 0 {
		return errors.New("fragment_id must be a positive integer")
	}
	return nil
}

// Deps are the collaborators of the handlers.
type Deps struct {
	// Embedder computes fragment vectors. Nil disables vector generation:
	// generate_fragments then enqueues nothing and generate_vector fails.
	Embedder embed.Embedder

	// Index receives each new vector after its task commits. Optional.
	Index *store.VectorIndex

	// Fragmenter cuts markdown; the zero value uses the defaults.
	Fragmenter chunk.Fragmenter

	Logger *slog.Logger
}

// Register defines every task type on reg.
func Register(reg *queue.Registry, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{deps: deps}

	if err := queue.Define(reg, queue.TypeGenerateFragments, h.generateFragments); err != nil {
		return err
	}
	if err := queue.Define(reg, queue.TypeGenerateVector, h.generateVector); err != nil {
		return err
	}
	if err := queue.Define(reg, queue.TypePing, ping); err != nil {
		return err
	}
	return queue.Define(reg, queue.TypeFailingTask, failingTask)
}

// NewRegistry returns a registry with every task type defined.
func NewRegistry(deps Deps) (*queue.Registry, error) {
	reg := queue.NewRegistry()
	if err := Register(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}

type handlers struct {
	deps Deps
}

// BuildFragments derives the fragment set of doc. Content comes from the
// stored markdown.
func BuildFragments(doc *store.Document, f chunk.Fragmenter) store.FragmentInput {
	in := store.FragmentInput{
		Title:   doc.Title,
		Excerpt: doc.Excerpt,
		URL:     doc.URL,
	}
	if !f.SkipSegmentation {
		in.Title = chunk.Segment(in.Title)
		in.Excerpt = chunk.Segment(in.Excerpt)
	}
	if doc.MdContent != "" {
		in.Content = f.Split(doc.MdContent)
	}
	return in
}

func (h *handlers) generateFragments(ctx context.Context, ex *queue.Exec, p GenerateFragmentsParams) error {
	doc, err := store.NewDocumentStore(ex.Tx).Get(ctx, p.DocumentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return apperrors.NotFoundError("document", strconv.FormatInt(p.DocumentID, 10))
	}

	frags := store.NewFragmentStore(ex.Tx)
	inserted, err := frags.Upsert(ctx, doc.ID, BuildFragments(doc, h.deps.Fragmenter))
	if err != nil {
		return fmt.Errorf("failed to upsert fragments: %w", err)
	}

	enqueued := 0
	if h.deps.Embedder != nil {
		missing, err := frags.MissingVectorsForDocument(ctx, doc.ID)
		if err != nil {
			return err
		}
		for _, id := range missing {
			_, added, err := ex.Enqueue(ctx, queue.TypeGenerateVector, GenerateVectorParams{FragmentID: id})
			if err != nil {
				return err
			}
			if added {
				enqueued++
			}
		}
	}

	h.deps.Logger.Debug("fragments_generated",
		slog.Int64("document_id", doc.ID),
		slog.Int("inserted", inserted),
		slog.Int("vector_tasks", enqueued))
	return nil
}

func (h *handlers) generateVector(ctx context.Context, ex *queue.Exec, p GenerateVectorParams) error {
	if h.deps.Embedder == nil {
		return apperrors.EmbeddingError("no embedder configured", nil)
	}

	frags := store.NewFragmentStore(ex.Tx)
	frag, err := frags.Get(ctx, p.FragmentID)
	if err != nil {
		return err
	}
	if frag == nil {
		return apperrors.NotFoundError("fragment", strconv.FormatInt(p.FragmentID, 10))
	}

	vec, err := h.deps.Embedder.Embed(ctx, frag.Value)
	if err != nil {
		return apperrors.EmbeddingError("failed to embed fragment", err).
			WithDetail("fragment_id", strconv.FormatInt(frag.ID, 10))
	}
	if err := frags.SetVector(ctx, frag.ID, vec); err != nil {
		return err
	}

	if idx := h.deps.Index; idx != nil {
		id := frag.ID
		ex.AfterCommit(func() {
			if err := idx.Add(id, vec); err != nil {
				h.deps.Logger.Warn("vector_index_add_failed",
					slog.Int64("fragment_id", id), slog.String("error", err.Error()))
			}
		})
	}
	return nil
}

func ping(context.Context, *queue.Exec, queue.NoParams) error {
	slog.Debug("pong")
	return nil
}

func failingTask(context.Context, *queue.Exec, queue.NoParams) error {
	return errors.New("this task always fails")
}
