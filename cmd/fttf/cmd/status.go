package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fttf/internal/backend"
	"github.com/Aman-CERP/fttf/internal/ui"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"stats"},
		Short:   "Show database health and counts",
		Long: `Display information about the history database:
  - Number of stored documents and fragments
  - Pending and failed background tasks
  - Schema version and file size
  - Embedding model and vector index mode

A database held by another fttf process is reported as failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, opts, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, opts *globalOptions, jsonOutput bool) error {
	info := collectStatus(ctx, opts)

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), !ui.UseColor(cmd.OutOrStdout(), opts.noColor))
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

// collectStatus never fails: open errors are reported inside the status.
func collectStatus(ctx context.Context, opts *globalOptions) ui.StatusInfo {
	var info ui.StatusInfo
	cfg, err := opts.config()
	if err != nil {
		info.State = string(backend.StateFailed)
		info.Error = err.Error()
		return info
	}
	info.DBPath = cfg.DatabasePath()
	if fi, err := os.Stat(info.DBPath); err == nil {
		info.LastModified = fi.ModTime()
	}

	b, err := opts.openBackend(ctx, false)
	if b != nil {
		defer func() { _ = b.Close() }()
	}
	if err != nil {
		info.State = string(backend.StateFailed)
		info.Error = err.Error()
		return info
	}

	st := b.Status()
	info.State = string(st.State)
	stats, err := b.GetStats(ctx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.SchemaVersion = stats.SchemaVersion
	info.Documents = stats.Documents
	info.Fragments = stats.Fragments
	info.FragmentsWithVectors = stats.FragmentsWithVectors
	info.PendingTasks = stats.PendingTasks
	info.FailedTasks = stats.FailedTasks
	info.DBBytes = stats.DBBytes
	info.EmbeddingModel = stats.EmbeddingModel
	info.QueueRunning = stats.QueueRunning
	info.VectorIndex = "exact"
	if stats.VectorIndex != nil {
		info.VectorIndex = "hnsw"
	}
	return info
}
