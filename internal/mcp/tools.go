package mcp

import (
	"github.com/Aman-CERP/fttf/internal/blacklist"
	"github.com/Aman-CERP/fttf/internal/store"
)

// Search modes of the search_history tool.
const (
	ModeFullText = "fulltext"
	ModeTrigram  = "trigram"
	ModeSemantic = "semantic"
)

// SearchHistoryInput defines the input schema for the search_history tool.
type SearchHistoryInput struct {
	Query     string   `json:"query" jsonschema:"words to look for in visited pages; the last word matches as a prefix"`
	Mode      string   `json:"mode,omitempty" jsonschema:"fulltext (default), trigram for typo tolerant matching, or semantic for meaning based matching"`
	Limit     int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Offset    int      `json:"offset,omitempty" jsonschema:"results to skip, fulltext only"`
	OrderBy   string   `json:"order_by,omitempty" jsonschema:"fulltext secondary order: updated_at (default), last_visit, created_at or rank"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity for semantic mode, default 0.5"`
}

// SearchHistoryOutput defines the output schema for the search_history tool.
type SearchHistoryOutput struct {
	Query   string       `json:"query" jsonschema:"the query as executed"`
	Mode    string       `json:"mode"`
	Total   int          `json:"total" jsonschema:"number of matches before paging; fulltext only"`
	PerfMs  float64      `json:"perf_ms,omitempty"`
	Results []HistoryHit `json:"results"`
}

// HistoryHit is one matching fragment of a visited page.
type HistoryHit struct {
	URL           string  `json:"url"`
	Title         string  `json:"title,omitempty"`
	Hostname      string  `json:"hostname,omitempty"`
	LastVisitDate string  `json:"last_visit_date,omitempty"`
	Attribute     string  `json:"attribute" jsonschema:"page field that matched: title, excerpt, url or content"`
	Text          string  `json:"text" jsonschema:"matching text; fulltext hits mark terms with <mark>"`
	Score         float64 `json:"score"`
	DocumentID    int64   `json:"document_id"`
	FragmentID    int64   `json:"fragment_id"`
}

// PageStatusInput defines the input schema for the page_status tool.
type PageStatusInput struct {
	URL string `json:"url" jsonschema:"page address to check"`
}

// PageStatusOutput defines the output schema for the page_status tool.
type PageStatusOutput struct {
	NormalizedURL string               `json:"normalized_url,omitempty"`
	IndexLevel    blacklist.IndexLevel `json:"index_level,omitempty" jsonschema:"full, url_only or no_index"`
	Stored        bool                 `json:"stored"`
	ShouldIndex   bool                 `json:"should_index" jsonschema:"true when the page is allowed and its content is not stored yet"`
	DocumentID    int64                `json:"document_id,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// IndexStatsInput defines the input schema for the index_stats tool (no parameters).
type IndexStatsInput struct{}

// IndexStatsOutput defines the output schema for the index_stats tool.
type IndexStatsOutput struct {
	Ready          bool                    `json:"ready"`
	State          string                  `json:"state"`
	Error          string                  `json:"error,omitempty"`
	Stats          store.Stats             `json:"stats"`
	SchemaVersion  int                     `json:"schema_version"`
	EmbeddingModel string                  `json:"embedding_model,omitempty"`
	VectorIndex    *store.VectorIndexStats `json:"vector_index,omitempty"`
	// SemanticSearch reports whether semantic mode can serve queries.
	SemanticSearch bool `json:"semantic_search"`
}
