package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fttf/internal/search"
)

func TestSearchCmd_FullText(t *testing.T) {
	// Given: an indexed article
	e := newEnv(t)
	e.indexWAL()

	// When: searching with a prefix of a body word
	out := e.mustRun("search", "checkpo")

	// Then: the article is listed with its URL
	assert.Contains(t, out, "result(s) for \"checkpo\"")
	assert.Contains(t, out, "Write-Ahead Logging")
	assert.Contains(t, out, "https://sqlite.org/wal.html")
	assert.NotContains(t, out, "<mark>")
}

func TestSearchCmd_FullTextJSON(t *testing.T) {
	e := newEnv(t)
	e.indexWAL()

	out := e.mustRun("search", "rollback journal", "--json", "--order-by", "rank", "--limit", "5")

	var res search.FullTextResults
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Positive(t, res.Count)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "https://sqlite.org/wal.html", res.Results[0].URL)
}

func TestSearchCmd_NoResults(t *testing.T) {
	e := newEnv(t)
	e.indexWAL()

	out := e.mustRun("search", "kubernetes")

	assert.Equal(t, "No pages found for \"kubernetes\"\n", out)
}

func TestSearchCmd_Semantic(t *testing.T) {
	e := newEnv(t)
	e.indexWAL()

	out := e.mustRun("search", "checkpoint operation moves the WAL file", "--mode", "semantic", "--threshold", "-1", "--json")

	var res []search.ScoredResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res)
	assert.Equal(t, "https://sqlite.org/wal.html", res[0].URL)
}

func TestSearchCmd_Trigram(t *testing.T) {
	e := newEnv(t)
	e.indexWAL()

	out := e.mustRun("search", "Write-Ahead Loging", "--mode", "trigram", "--json")

	var res []search.ScoredResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res)
	assert.Equal(t, "https://sqlite.org/wal.html", res[0].URL)
}

func TestSearchCmd_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown mode", []string{"search", "wal", "--mode", "fuzzy"}, "unknown search mode"},
		{"bad order", []string{"search", "wal", "--order-by", "title"}, "invalid --order-by"},
		{"no query", []string{"search"}, "requires at least 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, _, err := e.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
