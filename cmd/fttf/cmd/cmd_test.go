package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const walArticle = `# Write-Ahead Logging

The default method by which SQLite implements atomic commit and rollback is
a rollback journal. Beginning with version 3.7.0, a new "Write-Ahead Log"
option is available.

## Checkpointing

A checkpoint operation moves the content of the WAL file back into the
original database file.
`

// env isolates config, data and log locations for one test.
type env struct {
	t       *testing.T
	dataDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("FTTF_DATA_DIR", filepath.Join(root, "data"))
	t.Setenv("FTTF_QUEUE_INTERVAL", "1ms")
	t.Setenv("FTTF_EMBEDDINGS_PROVIDER", "static")
	t.Setenv("NO_COLOR", "1")
	return &env{t: t, dataDir: filepath.Join(root, "data")}
}

// run executes the root command with args and returns stdout and stderr.
func (e *env) run(args ...string) (string, string, error) {
	e.t.Helper()
	cmd := NewRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (e *env) mustRun(args ...string) string {
	e.t.Helper()
	out, stderr, err := e.run(args...)
	require.NoError(e.t, err, "fttf %s\nstderr: %s", strings.Join(args, " "), stderr)
	return out
}

func (e *env) writeFile(name, content string) string {
	e.t.Helper()
	p := filepath.Join(e.t.TempDir(), name)
	require.NoError(e.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// indexWAL stores walArticle and drains the queue.
func (e *env) indexWAL() {
	e.t.Helper()
	md := e.writeFile("wal.md", walArticle)
	e.mustRun("index", "https://sqlite.org/wal.html", "--title", "Write-Ahead Logging", "--file", md, "--wait")
}
