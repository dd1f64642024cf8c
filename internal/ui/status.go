package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo is the database summary shown by 'fttf status'.
type StatusInfo struct {
	DBPath        string `json:"db_path"`
	State         string `json:"state"`
	Error         string `json:"error,omitempty"`
	SchemaVersion int    `json:"schema_version"`

	Documents            int64 `json:"documents"`
	Fragments            int64 `json:"fragments"`
	FragmentsWithVectors int64 `json:"fragments_with_vectors"`
	PendingTasks         int64 `json:"pending_tasks"`
	FailedTasks          int64 `json:"failed_tasks"`
	DBBytes              int64 `json:"db_bytes"`

	EmbeddingModel string `json:"embedding_model,omitempty"`
	VectorIndex    string `json:"vector_index"` // "hnsw", "exact"
	QueueRunning   bool   `json:"queue_running"`

	// LastModified is the database file's mtime. Zero when unknown.
	LastModified time.Time `json:"last_modified,omitempty"`
}

// StatusRenderer displays database status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes info as aligned text.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("History Index"))
	_, _ = fmt.Fprintf(r.out, "  Database:  %s\n", info.DBPath)
	_, _ = fmt.Fprintf(r.out, "  State:     %s\n", r.renderState(info.State))
	if info.Error != "" {
		_, _ = fmt.Fprintf(r.out, "  Error:     %s\n", r.styles.Error.Render(info.Error))
		return nil
	}
	_, _ = fmt.Fprintf(r.out, "  Schema:    v%d\n", info.SchemaVersion)
	if !info.LastModified.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Modified:  %s\n", FormatAge(info.LastModified, time.Now()))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Documents: %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Fragments: %d (%d with vectors)\n", info.Fragments, info.FragmentsWithVectors)
	_, _ = fmt.Fprintf(r.out, "  Size:      %s\n", FormatBytes(info.DBBytes))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Tasks:")
	_, _ = fmt.Fprintf(r.out, "    Pending: %d\n", info.PendingTasks)
	failed := fmt.Sprintf("%d", info.FailedTasks)
	if info.FailedTasks > 0 {
		failed = r.styles.Warning.Render(failed)
	}
	_, _ = fmt.Fprintf(r.out, "    Failed:  %s\n", failed)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Embeddings:")
	model := info.EmbeddingModel
	if model == "" {
		model = "none"
	}
	_, _ = fmt.Fprintf(r.out, "    Model:   %s\n", model)
	_, _ = fmt.Fprintf(r.out, "    Index:   %s\n", info.VectorIndex)
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderState(state string) string {
	switch state {
	case "ready":
		return r.styles.Success.Render(state)
	case "failed":
		return r.styles.Error.Render(state)
	default:
		return r.styles.Warning.Render(state)
	}
}

// FormatAge describes how long before now t was.
func FormatAge(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
