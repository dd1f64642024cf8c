package search

import (
	"context"
	"strings"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

const trigramSQL = `
	SELECT * FROM (
		SELECT f.id AS fragment_id, f.attribute, f.value, trgm_similarity(f.value, ?1) AS score,
			` + documentColumns + `
		FROM document_fragment f
		JOIN document d ON d.id = f.entity_id
	)
	WHERE score > 0
	ORDER BY score DESC, fragment_id
	LIMIT ?2`

// Trigram returns the fragments most similar to query by trigram overlap,
// best first. It tolerates typos and ignores tokenization.
func (e *Engine) Trigram(ctx context.Context, query string, limit int) ([]ScoredResult, error) {
	if strings.TrimSpace(query) == "" {
		return []ScoredResult{}, nil
	}
	results, err := e.scored(ctx, trigramSQL, query, clampLimit(limit, DefaultSimilarityLimit))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSearchFailed, "trigram search failed", err)
	}
	return results, nil
}

// scored runs a query selecting id, attribute, value, score and
// documentColumns.
func (e *Engine) scored(ctx context.Context, query string, args ...any) ([]ScoredResult, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := []ScoredResult{}
	for rows.Next() {
		var r ScoredResult
		docDest, finish := documentDest(&r.DocumentFields)
		dest := append([]any{&r.FragmentID, &r.Attribute, &r.Value, &r.Score}, docDest...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		finish()
		results = append(results, r)
	}
	return results, rows.Err()
}
