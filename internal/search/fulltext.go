package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

var fullTextSQL = `
	SELECT
		f.id,
		f.attribute,
		snippet(document_fragment_fts, 0, '<mark>', '</mark>', '…', 63),
		-bm25(document_fragment_fts) AS fts_rank,
		` + rankModifierSQL("d.hostname") + ` AS rank_modifier,
		` + documentColumns + `
	FROM document_fragment_fts
	JOIN document_fragment f ON f.id = document_fragment_fts.rowid
	JOIN document d ON d.id = f.entity_id
	WHERE document_fragment_fts MATCH ?1
	ORDER BY rank_modifier DESC, %s DESC, f.id DESC
	LIMIT ?2 OFFSET ?3`

const fullTextCountSQL = `SELECT COUNT(*) FROM document_fragment_fts WHERE document_fragment_fts MATCH ?1`

// FullText runs a full-text query. The total count is read before the page,
// on the same connection. A query FTS5 cannot parse matches nothing.
func (e *Engine) FullText(ctx context.Context, opts FullTextOptions) (*FullTextResults, error) {
	start := time.Now()

	query := opts.Query
	if !opts.Raw {
		query = PrepareQuery(query)
	}
	out := &FullTextResults{Results: []Result{}, Query: query}
	if strings.TrimSpace(query) == "" {
		return out, nil
	}

	limit := clampLimit(opts.Limit, DefaultLimit)
	offset := max(opts.Offset, 0)

	err := e.db.QueryRowContext(ctx, fullTextCountSQL, query).Scan(&out.Count)
	if err == nil && out.Count > 0 {
		out.Results, err = e.fullTextPage(ctx, query, opts.OrderBy, limit, offset)
	}
	if err != nil {
		if isSyntaxError(err) {
			e.logger.Debug("fulltext_query_invalid", slog.String("query", query), slog.String("error", err.Error()))
			return &FullTextResults{Results: []Result{}, Query: query, PerfMs: msSince(start)}, nil
		}
		return nil, apperrors.New(apperrors.ErrCodeSearchFailed, "full-text search failed", err).
			WithDetail("query", query)
	}

	out.PerfMs = msSince(start)
	e.logger.Debug("fulltext_search",
		slog.String("query", query),
		slog.Int64("count", out.Count),
		slog.Float64("perf_ms", out.PerfMs))
	return out, nil
}

func (e *Engine) fullTextPage(ctx context.Context, query string, order OrderBy, limit, offset int) ([]Result, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(fullTextSQL, order.column()), query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := []Result{}
	for rows.Next() {
		var r Result
		docDest, finish := documentDest(&r.DocumentFields)
		dest := append([]any{&r.FragmentID, &r.Attribute, &r.Snippet, &r.Rank, &r.RankModifier}, docDest...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		finish()
		results = append(results, r)
	}
	return results, rows.Err()
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
