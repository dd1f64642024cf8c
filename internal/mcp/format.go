package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/fttf/internal/search"
)

// FormatHistoryResults renders hits as markdown for clients that only read
// text content.
func FormatHistoryResults(out SearchHistoryOutput) string {
	if len(out.Results) == 0 {
		return fmt.Sprintf("No pages found for \"%s\"", out.Query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## History Results for \"%s\" (%s)\n\n", out.Query, out.Mode)
	fmt.Fprintf(&sb, "Showing %d", len(out.Results))
	if out.Total > len(out.Results) {
		fmt.Fprintf(&sb, " of %d", out.Total)
	}
	sb.WriteString(" result")
	if len(out.Results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, h := range out.Results {
		formatHit(&sb, i+1, h)
	}
	return sb.String()
}

func formatHit(sb *strings.Builder, num int, h HistoryHit) {
	title := h.Title
	if title == "" {
		title = h.URL
	}
	fmt.Fprintf(sb, "### %d. %s\n", num, title)
	fmt.Fprintf(sb, "<%s>", h.URL)
	if h.LastVisitDate != "" {
		fmt.Fprintf(sb, " · visited %s", h.LastVisitDate)
	}
	fmt.Fprintf(sb, " · %s match (score: %.2f)\n\n", h.Attribute, h.Score)
	if h.Text != "" {
		fmt.Fprintf(sb, "> %s\n\n", strings.ReplaceAll(strings.TrimSpace(h.Text), "\n", " "))
	}
}

func fullTextHits(res *search.FullTextResults) []HistoryHit {
	hits := make([]HistoryHit, 0, len(res.Results))
	for _, r := range res.Results {
		hits = append(hits, HistoryHit{
			URL:           r.URL,
			Title:         r.Title,
			Hostname:      r.Hostname,
			LastVisitDate: r.LastVisitDate,
			Attribute:     r.Attribute,
			Text:          r.Snippet,
			Score:         r.Rank,
			DocumentID:    r.DocumentID,
			FragmentID:    r.FragmentID,
		})
	}
	return hits
}

func scoredHits(results []search.ScoredResult) []HistoryHit {
	hits := make([]HistoryHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, HistoryHit{
			URL:           r.URL,
			Title:         r.Title,
			Hostname:      r.Hostname,
			LastVisitDate: r.LastVisitDate,
			Attribute:     r.Attribute,
			Text:          r.Value,
			Score:         r.Score,
			DocumentID:    r.DocumentID,
			FragmentID:    r.FragmentID,
		})
	}
	return hits
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit > max {
		return max
	}
	return limit
}
