package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/store"
)

const semanticScanSQL = `
	SELECT * FROM (
		SELECT f.id AS fragment_id, f.attribute, f.value, vec_cosine(f.content_vector, ?1) AS score,
			` + documentColumns + `
		FROM document_fragment f
		JOIN document d ON d.id = f.entity_id
		WHERE f.content_vector IS NOT NULL
	)
	WHERE score > ?2
	ORDER BY score DESC, fragment_id
	LIMIT ?3`

const semanticRescoreSQL = `
	SELECT f.id AS fragment_id, f.attribute, f.value, vec_cosine(f.content_vector, ?1) AS score,
		` + documentColumns + `
	FROM document_fragment f
	JOIN document d ON d.id = f.entity_id
	WHERE f.content_vector IS NOT NULL AND f.id IN (%s)`

// candidateFactor is how many ANN candidates are fetched per wanted result.
const candidateFactor = 4

// Semantic embeds query and returns the fragments whose vectors are most
// similar, above the threshold, best first. With a loaded vector index the
// index supplies candidates and SQL computes their exact similarity;
// otherwise every stored vector is scanned.
func (e *Engine) Semantic(ctx context.Context, query string, opts SemanticOptions) ([]ScoredResult, error) {
	if strings.TrimSpace(query) == "" {
		return []ScoredResult{}, nil
	}
	if e.embedder == nil {
		return nil, apperrors.EmbeddingError("semantic search needs an embedder", nil).
			WithSuggestion("Set embeddings.provider in the config file.")
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.EmbeddingError("failed to embed query", err)
	}
	if len(vec) != store.EmbeddingDimensions {
		return nil, apperrors.New(apperrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query embedding has %d dimensions, want %d", len(vec), store.EmbeddingDimensions), nil).
			WithDetail("model", e.embedder.ModelName())
	}

	limit := clampLimit(opts.Limit, DefaultSimilarityLimit)
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = e.threshold
	}

	var results []ScoredResult
	if e.index != nil && e.index.Len() > 0 && !opts.Exact {
		results, err = e.semanticIndexed(ctx, vec, threshold, limit)
	} else {
		results, err = e.scored(ctx, semanticScanSQL, store.EncodeVector(vec), threshold, limit)
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSearchFailed, "semantic search failed", err)
	}

	e.logger.Debug("semantic_search",
		slog.String("query", query),
		slog.Int("results", len(results)),
		slog.Bool("indexed", e.index != nil && !opts.Exact))
	return results, nil
}

func (e *Engine) semanticIndexed(ctx context.Context, vec []float32, threshold float64, limit int) ([]ScoredResult, error) {
	hits, err := e.index.Search(vec, limit*candidateFactor)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []ScoredResult{}, nil
	}

	args := make([]any, 0, len(hits)+1)
	args = append(args, store.EncodeVector(vec))
	placeholders := make([]string, len(hits))
	for i, h := range hits {
		args = append(args, h.FragmentID)
		placeholders[i] = fmt.Sprintf("?%d", i+2)
	}

	candidates, err := e.scored(ctx, fmt.Sprintf(semanticRescoreSQL, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return nil, err
	}

	results := candidates[:0]
	for _, r := range candidates {
		if r.Score > threshold {
			results = append(results, r)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].FragmentID < results[j].FragmentID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
