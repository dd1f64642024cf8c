package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_WritesProfiles(t *testing.T) {
	// Given: a session in a directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "profiles")
	s, err := Start(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	sum := 0
	for i := 0; i < 1_000_000; i++ {
		sum += i
	}
	_ = sum

	// When: stopping it
	require.NoError(t, s.Stop())

	// Then: all three profiles have content
	for _, name := range []string{CPUFile, HeapFile, GoroutineFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	// And a second Stop does nothing
	assert.NoError(t, s.Stop())
}

func TestStart_BadDirectory(t *testing.T) {
	// Given: a regular file where the directory should be
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := Start(file)

	assert.Error(t, err)
}
