package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fttf/internal/backend"
)

func TestIndexCmd_StoresAndDrains(t *testing.T) {
	// Given: an empty history
	e := newEnv(t)
	md := e.writeFile("wal.md", walArticle)

	// When: indexing a page with content and waiting for the queue
	out := e.mustRun("index", "https://sqlite.org/wal.html?utm_source=feed", "--title", "Write-Ahead Logging",
		"--file", md, "--wait")

	// Then: the document is stored and its tasks ran
	assert.Contains(t, out, "Document 1 stored (level full)")
	assert.Contains(t, out, "fragments and vectors generated")

	var st statusJSON
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("status", "--json")), &st))
	assert.Equal(t, int64(1), st.Documents)
	assert.Positive(t, st.Fragments)
	assert.Positive(t, st.FragmentsWithVectors)
	assert.Zero(t, st.PendingTasks)
}

func TestIndexCmd_WithoutWait_QueuesFragments(t *testing.T) {
	e := newEnv(t)
	md := e.writeFile("page.md", "# Title\n\nbody text")

	out := e.mustRun("index", "https://example.com/a", "--file", md)

	assert.Contains(t, out, "fragments queued")
	assert.Contains(t, e.mustRun("tasks", "list"), "generate_fragments")
}

func TestIndexCmd_Payload(t *testing.T) {
	// Given: a capture file in the inbox format, with the title overridden by a flag
	e := newEnv(t)
	capture := e.writeFile("capture.json",
		`{"url": "https://go.dev/doc/effective_go", "title": "Effective Go", "mdContent": "# Effective Go\n\nFormatting is handled by gofmt."}`)

	// When: indexing it as JSON output
	out := e.mustRun("index", "--payload", capture, "--title", "Effective Go (docs)", "--json")

	// Then: the result reports a new full document with a queued task
	var res backend.IndexResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Inserted)
	assert.True(t, res.Queued)
	assert.EqualValues(t, "full", res.Level)
}

func TestIndexCmd_Stdin(t *testing.T) {
	newEnv(t)
	cmd := NewRootCmd()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetIn(strings.NewReader("# From stdin\n\npiped content"))
	cmd.SetArgs([]string{"index", "https://example.com/piped", "--file", "-", "--json"})

	require.NoError(t, cmd.Execute())

	var res backend.IndexResult
	require.NoError(t, json.Unmarshal([]byte(stdout.String()), &res))
	assert.True(t, res.Queued)
}

func TestIndexCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no url", []string{"index"}, "a URL is required"},
		{"missing file", []string{"index", "https://example.com/", "--file", "/nonexistent.md"}, "failed to read"},
		{"both stdin", []string{"index", "https://example.com/", "--file", "-", "--payload", "-"}, "cannot both read stdin"},
		{"invalid url", []string{"index", "::"}, ""},
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

func TestIndexCmd_Blacklisted(t *testing.T) {
	// Given: a no_index rule
	e := newEnv(t)
	e.mustRun("blacklist", "add", "https://bank.example.com/%", "no_index")

	// When: indexing a page under it
	out := e.mustRun("index", "https://bank.example.com/accounts", "--title", "Accounts")

	// Then: nothing is stored
	assert.Contains(t, out, "page is blacklisted")
	var st statusJSON
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("status", "--json")), &st))
	assert.Zero(t, st.Documents)
}

func TestPageStatusCmd(t *testing.T) {
	e := newEnv(t)
	e.indexWAL()

	// A stored page with content does not need indexing.
	var st backend.PageStatus
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("page-status", "https://sqlite.org/wal.html#intro", "--json")), &st))
	assert.False(t, st.ShouldIndex)
	assert.Equal(t, "https://sqlite.org/wal.html", st.NormalizedURL)
	assert.Equal(t, int64(1), st.DocumentID)

	// An unknown page does.
	out := e.mustRun("page-status", "https://sqlite.org/lang.html")
	assert.Contains(t, out, "should index  true")
	assert.Contains(t, out, "stored        no")

	// An invalid URL is reported, not returned as an error.
	out = e.mustRun("page-status", "not a url")
	assert.Contains(t, out, "✗")
}

func TestVisitCmd(t *testing.T) {
	e := newEnv(t)
	e.indexWAL()

	assert.Contains(t, e.mustRun("visit", "https://sqlite.org/wal.html"), "Visit recorded")
	assert.Contains(t, e.mustRun("visit", "https://sqlite.org/other.html"), "nothing to update")
}

// statusJSON mirrors ui.StatusInfo for decoding.
type statusJSON struct {
	State                string `json:"state"`
	Error                string `json:"error"`
	SchemaVersion        int    `json:"schema_version"`
	Documents            int64  `json:"documents"`
	Fragments            int64  `json:"fragments"`
	FragmentsWithVectors int64  `json:"fragments_with_vectors"`
	PendingTasks         int64  `json:"pending_tasks"`
	FailedTasks          int64  `json:"failed_tasks"`
	EmbeddingModel       string `json:"embedding_model"`
	VectorIndex          string `json:"vector_index"`
}
