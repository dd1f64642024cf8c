package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fttf/internal/backend"
	"github.com/Aman-CERP/fttf/internal/search"
	"github.com/Aman-CERP/fttf/internal/store"
)

func TestRPCCmd_GetStatus(t *testing.T) {
	e := newEnv(t)

	var st backend.Status
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("rpc", "getStatus")), &st))

	assert.True(t, st.OK)
	assert.Equal(t, backend.StateReady, st.State)
}

func TestRPCCmd_GetStatus_LockedDatabase(t *testing.T) {
	// Given: another writer holding the database lock
	e := newEnv(t)
	e.mustRun("status")
	lock := store.NewWriterLock(filepath.Join(e.dataDir, "history.db"))
	require.NoError(t, lock.Acquire())
	defer func() { _ = lock.Release() }()

	// When: the status is requested over rpc
	var st backend.Status
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("rpc", "getStatus")), &st))

	// Then: the failure is the result
	assert.False(t, st.OK)
	assert.Equal(t, backend.StateFailed, st.State)

	// And: any other method fails
	_, _, err := e.run("rpc", "listRules")
	assert.Error(t, err)
}

func TestRPCCmd_Search(t *testing.T) {
	// Given: an indexed article
	e := newEnv(t)
	e.indexWAL()

	// When: searching with an inline payload
	out := e.mustRun("rpc", "search", "--data", `{"query":"checkpoint","limit":5}`)

	// Then: the article is found
	var res search.FullTextResults
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "https://sqlite.org/wal.html", res.Results[0].URL)
}

func TestRPCCmd_PayloadFromStdin(t *testing.T) {
	e := newEnv(t)
	e.indexWAL()

	cmd := NewRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetIn(strings.NewReader(`{"url":"https://sqlite.org/wal.html#checkpointing"}`))
	cmd.SetArgs([]string{"rpc", "getPageStatus", "--payload", "-"})
	require.NoError(t, cmd.Execute())

	var st backend.PageStatus
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &st))
	assert.Equal(t, "https://sqlite.org/wal.html", st.NormalizedURL)
	assert.NotZero(t, st.DocumentID)
	assert.False(t, st.ShouldIndex)
}

func TestRPCCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no method", []string{"rpc"}, "accepts 1 arg"},
		{"unknown method", []string{"rpc", "dropDatabase"}, "ERR_408_UNKNOWN_METHOD"},
		{"unknown field", []string{"rpc", "getPageStatus", "--data", `{"href":"https://example.com"}`}, "invalid getPageStatus payload"},
		{"both payloads", []string{"rpc", "search", "--data", "{}", "--payload", "-"}, "none of the others can be"},
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
