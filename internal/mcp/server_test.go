package mcp

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fttf/internal/backend"
	"github.com/Aman-CERP/fttf/internal/blacklist"
	"github.com/Aman-CERP/fttf/internal/embed"
	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/search"
	"github.com/Aman-CERP/fttf/internal/store"
)

// fakeBackend implements Backend with canned results.
type fakeBackend struct {
	status    backend.Status
	fullText  *search.FullTextResults
	scored    []search.ScoredResult
	page      backend.PageStatus
	stats     backend.Stats
	err       error
	lastOpts  search.FullTextOptions
	lastSem   search.SemanticOptions
	lastLimit int
}

func (f *fakeBackend) Status() backend.Status { return f.status }

func (f *fakeBackend) PeekPageStatus(_ context.Context, _ string) (backend.PageStatus, error) {
	return f.page, f.err
}

func (f *fakeBackend) Search(_ context.Context, opts search.FullTextOptions) (*search.FullTextResults, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.fullText, nil
}

func (f *fakeBackend) SearchTrigram(_ context.Context, _ string, limit int) ([]search.ScoredResult, error) {
	f.lastLimit = limit
	return f.scored, f.err
}

func (f *fakeBackend) SearchSemantic(_ context.Context, _ string, opts search.SemanticOptions) ([]search.ScoredResult, error) {
	f.lastSem = opts
	return f.scored, f.err
}

func (f *fakeBackend) GetStats(_ context.Context) (backend.Stats, error) {
	return f.stats, f.err
}

func newFake() *fakeBackend {
	doc := search.DocumentFields{DocumentID: 7, URL: "https://example.com/wal", Title: "SQLite WAL mode", LastVisitDate: "2024-03-01"}
	return &fakeBackend{
		status: backend.Status{OK: true, State: backend.StateReady},
		fullText: &search.FullTextResults{
			Results: []search.Result{{FragmentID: 3, Attribute: "content", Snippet: "the <mark>checkpoint</mark> runs", Rank: 2.5, DocumentFields: doc}},
			Count:   12,
			PerfMs:  1.5,
			Query:   `"checkp"*`,
		},
		scored: []search.ScoredResult{{FragmentID: 4, Attribute: "title", Value: "SQLite WAL mode", Score: 0.9, DocumentFields: doc}},
		page:   backend.PageStatus{ShouldIndex: false, IndexLevel: blacklist.LevelFull, NormalizedURL: "https://example.com/wal", DocumentID: 7},
		stats: backend.Stats{
			Stats:          store.Stats{Documents: 1, Fragments: 5, FragmentsWithVectors: 5},
			SchemaVersion:  3,
			EmbeddingModel: "static",
		},
	}
}

func session(t *testing.T, b Backend) *mcp.ClientSession {
	t.Helper()
	srv, err := NewServer(b)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	serverT, clientT := mcp.NewInMemoryTransports()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "fttf-test", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func structured[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var out T
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestNewServer_RequiresBackend(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestTools_Listed(t *testing.T) {
	cs := session(t, newFake())

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"search_history", "page_status", "index_stats"}, names)
}

func TestSearchHistory_FullText(t *testing.T) {
	// Given: a backend with one full-text hit
	fb := newFake()
	cs := session(t, fb)

	// When: searching without a mode
	res := callTool(t, cs, "search_history", map[string]any{"query": "checkp", "limit": 500, "order_by": "rank"})

	// Then: full-text is used with a clamped limit and the hit is rendered
	require.False(t, res.IsError, text(t, res))
	assert.Equal(t, maxToolLimit, fb.lastOpts.Limit)
	assert.Equal(t, search.OrderRank, fb.lastOpts.OrderBy)
	assert.Contains(t, text(t, res), "SQLite WAL mode")
	assert.Contains(t, text(t, res), "of 12")

	out := structured[SearchHistoryOutput](t, res)
	assert.Equal(t, ModeFullText, out.Mode)
	assert.Equal(t, 12, out.Total)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "content", out.Results[0].Attribute)
	assert.Equal(t, int64(7), out.Results[0].DocumentID)
}

func TestSearchHistory_Modes(t *testing.T) {
	fb := newFake()
	cs := session(t, fb)

	res := callTool(t, cs, "search_history", map[string]any{"query": "sqlte", "mode": "trigram"})
	require.False(t, res.IsError)
	assert.Equal(t, defaultToolLimit, fb.lastLimit)
	assert.Equal(t, ModeTrigram, structured[SearchHistoryOutput](t, res).Mode)

	res = callTool(t, cs, "search_history", map[string]any{"query": "database logs", "mode": "Semantic", "threshold": 0.3})
	require.False(t, res.IsError)
	assert.InDelta(t, 0.3, fb.lastSem.Threshold, 1e-9)
	assert.Equal(t, "SQLite WAL mode", structured[SearchHistoryOutput](t, res).Results[0].Text)
}

func TestSearchHistory_InvalidInput(t *testing.T) {
	cs := session(t, newFake())

	tests := []struct {
		name string
		args map[string]any
	}{
		{"blank query", map[string]any{"query": "   "}},
		{"bad mode", map[string]any{"query": "x", "mode": "regex"}},
		{"bad order", map[string]any{"query": "x", "order_by": "title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, cs, "search_history", tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, text(t, res), "-32602")
		})
	}
}

func TestSearchHistory_BackendErrorsAreCoded(t *testing.T) {
	fb := newFake()
	fb.err = apperrors.NotReadyError("database not ready", nil)
	cs := session(t, fb)

	res := callTool(t, cs, "search_history", map[string]any{"query": "x"})

	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "-32001")
	assert.Contains(t, text(t, res), "database not ready")
}

func TestPageStatus(t *testing.T) {
	cs := session(t, newFake())

	res := callTool(t, cs, "page_status", map[string]any{"url": "https://example.com/wal"})
	require.False(t, res.IsError)

	out := structured[PageStatusOutput](t, res)
	assert.True(t, out.Stored)
	assert.False(t, out.ShouldIndex)
	assert.Equal(t, blacklist.LevelFull, out.IndexLevel)
}

func TestPageStatus_LeavesVisitUnchanged(t *testing.T) {
	ctx := context.Background()
	var tick atomic.Int64
	b, err := backend.Open(ctx, backend.Config{
		DBPath:   store.MemoryPath,
		Embedder: embed.NewStaticEmbedder(store.EmbeddingDimensions),
		Clock: func() time.Time {
			return time.UnixMilli(1_700_000_000_000).Add(time.Duration(tick.Add(1)) * time.Second)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	// Given: a stored page
	_, err = b.IndexPage(ctx, backend.PagePayload{
		URL:       "https://example.com/wal",
		Title:     "SQLite WAL mode",
		MdContent: "Readers do not block the writer in write-ahead log mode.",
	})
	require.NoError(t, err)
	_, err = b.DrainTasks(ctx)
	require.NoError(t, err)

	lastVisit := func() int64 {
		t.Helper()
		res, err := b.Search(ctx, search.FullTextOptions{Query: "writer"})
		require.NoError(t, err)
		require.NotEmpty(t, res.Results)
		return res.Results[0].LastVisit
	}
	before := lastVisit()

	// When: an agent asks about it twice
	cs := session(t, b)
	for range 2 {
		res := callTool(t, cs, "page_status", map[string]any{"url": "https://example.com/wal"})
		require.False(t, res.IsError)
		assert.True(t, structured[PageStatusOutput](t, res).Stored)
	}

	// Then: no visit was recorded
	assert.Equal(t, before, lastVisit())
}

func TestIndexStats(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		cs := session(t, newFake())
		res := callTool(t, cs, "index_stats", map[string]any{})
		require.False(t, res.IsError)

		out := structured[IndexStatsOutput](t, res)
		assert.True(t, out.Ready)
		assert.Equal(t, int64(5), out.Stats.Fragments)
		assert.True(t, out.SemanticSearch)
		assert.Equal(t, 3, out.SchemaVersion)
	})

	t.Run("not ready", func(t *testing.T) {
		fb := newFake()
		fb.status = backend.Status{OK: false, State: backend.StateFailed, Error: "migration 2 failed"}
		fb.err = apperrors.NotReadyError("database not ready", nil)
		cs := session(t, fb)

		res := callTool(t, cs, "index_stats", map[string]any{})
		require.False(t, res.IsError)
		out := structured[IndexStatsOutput](t, res)
		assert.False(t, out.Ready)
		assert.Equal(t, "failed", out.State)
		assert.Equal(t, "migration 2 failed", out.Error)
	})
}
