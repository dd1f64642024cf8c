package search

import (
	"fmt"
	"strings"
)

// OrderBy is the secondary sort key of full-text results. The primary key
// is always the host rank modifier.
type OrderBy string

const (
	OrderUpdatedAt OrderBy = "updated_at"
	OrderLastVisit OrderBy = "last_visit"
	OrderCreatedAt OrderBy = "created_at"
	OrderRank      OrderBy = "rank"
)

// ParseOrderBy accepts the snake_case and camelCase spellings.
func ParseOrderBy(s string) (OrderBy, error) {
	switch strings.TrimSpace(s) {
	case "", "updated_at", "updatedAt":
		return OrderUpdatedAt, nil
	case "last_visit", "lastVisit":
		return OrderLastVisit, nil
	case "created_at", "createdAt":
		return OrderCreatedAt, nil
	case "rank":
		return OrderRank, nil
	}
	return "", fmt.Errorf("unknown order %q (want updated_at, last_visit, created_at or rank)", s)
}

func (o OrderBy) column() string {
	switch o {
	case OrderLastVisit:
		return "d.last_visit"
	case OrderCreatedAt:
		return "d.created_at"
	case OrderRank:
		return "fts_rank"
	default:
		return "d.updated_at"
	}
}

const (
	// DefaultLimit is the full-text page size.
	DefaultLimit = 100
	// DefaultSimilarityLimit is the trigram and semantic result count.
	DefaultSimilarityLimit = 20
	// MaxLimit caps every page size.
	MaxLimit = 1000
	// DefaultSemanticThreshold is the minimum cosine similarity of a
	// semantic hit, tuned by hand for all-MiniLM embeddings.
	DefaultSemanticThreshold = 0.5
)

// DocumentFields are the display fields of the document a hit belongs to.
type DocumentFields struct {
	DocumentID    int64  `json:"document_id"`
	URL           string `json:"url"`
	Hostname      string `json:"hostname,omitempty"`
	Title         string `json:"title,omitempty"`
	Excerpt       string `json:"excerpt,omitempty"`
	LastVisit     int64  `json:"last_visit,omitempty"`
	LastVisitDate string `json:"last_visit_date,omitempty"`
	MdContentHash string `json:"md_content_hash,omitempty"`
	UpdatedAt     int64  `json:"updated_at,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// FullTextOptions configures FullText.
type FullTextOptions struct {
	Query   string
	Limit   int
	Offset  int
	OrderBy OrderBy
	// Raw passes Query to FTS5 unchanged instead of through PrepareQuery.
	Raw bool
}

// Result is one full-text hit.
type Result struct {
	FragmentID   int64   `json:"fragment_id"`
	Attribute    string  `json:"attribute"`
	Snippet      string  `json:"snippet"`
	Rank         float64 `json:"rank"`
	RankModifier int     `json:"rank_modifier"`
	DocumentFields
}

// FullTextResults is a page of full-text hits.
type FullTextResults struct {
	Results []Result `json:"results"`
	// Count is the number of matching fragments over all pages.
	Count int64 `json:"count"`
	// PerfMs is the query latency in milliseconds.
	PerfMs float64 `json:"perf_ms"`
	// Query is the FTS5 query that ran.
	Query string `json:"query"`
}

// ScoredResult is a trigram or semantic hit with its similarity in [0, 1].
type ScoredResult struct {
	FragmentID int64   `json:"fragment_id"`
	Attribute  string  `json:"attribute"`
	Value      string  `json:"value"`
	Score      float64 `json:"score"`
	DocumentFields
}

// SemanticOptions configures Semantic.
type SemanticOptions struct {
	Limit int
	// Threshold is the exclusive minimum similarity. Zero selects the
	// engine default; a negative value keeps every hit.
	Threshold float64
	// Exact skips the HNSW index and scans every stored vector.
	Exact bool
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, MaxLimit)
}
