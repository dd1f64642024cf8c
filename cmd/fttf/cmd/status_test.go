package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fttf/internal/store"
)

func TestStatusCmd_Empty(t *testing.T) {
	// Given: no database yet
	e := newEnv(t)

	// When: asking for the status
	out := e.mustRun("status")

	// Then: the database is created and reported ready and empty
	assert.Contains(t, out, "History Index")
	assert.Contains(t, out, filepath.Join(e.dataDir, "history.db"))
	assert.Contains(t, out, "State:     ready")
	assert.Contains(t, out, "Documents: 0")
	assert.Contains(t, out, "Model:   static")
	assert.Contains(t, out, "Index:   hnsw")
}

func TestStatusCmd_StatsAlias(t *testing.T) {
	e := newEnv(t)
	e.indexWAL()

	var st statusJSON
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("stats", "--json")), &st))

	assert.Equal(t, "ready", st.State)
	assert.Positive(t, st.SchemaVersion)
	assert.Equal(t, int64(1), st.Documents)
	assert.Equal(t, "static", st.EmbeddingModel)
}

func TestStatusCmd_LockedDatabase(t *testing.T) {
	// Given: another writer holding the database lock
	e := newEnv(t)
	e.mustRun("status")
	lock := store.NewWriterLock(filepath.Join(e.dataDir, "history.db"))
	require.NoError(t, lock.Acquire())
	defer func() { _ = lock.Release() }()

	// When: asking for the status
	var st statusJSON
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("status", "--json")), &st))

	// Then: the failure is reported rather than returned
	assert.Equal(t, "failed", st.State)
	assert.Contains(t, st.Error, "in use")
}
