package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/profiling"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	// When: executing with --help
	err := cmd.Execute()

	// Then: it should list the subcommands
	require.NoError(t, err)
	out := buf.String()
	for _, sub := range []string{"search", "index", "blacklist", "tasks", "serve", "watch", "export", "import"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_ConfigFlag_MissingFile(t *testing.T) {
	// Given: an explicit config path that does not exist
	e := newEnv(t)

	// When: running any command
	_, _, err := e.run("--config", "/nonexistent/fttf.yaml", "status")

	// Then: config loading fails before the command runs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestPrintError_FormatsAppError(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetErr(buf)

	printError(cmd, apperrors.ValidationError("a URL is required", nil).WithSuggestion("Pass the URL."))

	out := buf.String()
	assert.Contains(t, out, "Error: a URL is required")
	assert.Contains(t, out, "Hint: Pass the URL.")
	assert.Contains(t, out, apperrors.ErrCodeInvalidInput)
}

func TestRootCmd_ProfileFlag(t *testing.T) {
	// Given: a profile directory
	e := newEnv(t)
	dir := filepath.Join(t.TempDir(), "prof")

	// When: running a command with --profile
	e.mustRun("--profile", dir, "status")

	// Then: the profiles are written once the command returns
	for _, name := range []string{profiling.CPUFile, profiling.HeapFile, profiling.GoroutineFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}
