package ui

import (
	"fmt"
	"io"
	"strings"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// Hit is one search result line group.
type Hit struct {
	Title         string
	URL           string
	LastVisitDate string
	Attribute     string
	// Text may contain <mark> highlights from the full-text snippet.
	Text string
	// Score is shown when HasScore is set.
	Score    float64
	HasScore bool
}

// ResultsRenderer prints search hits.
type ResultsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultsRenderer creates a renderer for search hits.
func NewResultsRenderer(out io.Writer, noColor bool) *ResultsRenderer {
	return &ResultsRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes a header line followed by one block per hit.
// total is the number of matches over all pages.
func (r *ResultsRenderer) Render(query string, hits []Hit, total int64) {
	if len(hits) == 0 {
		_, _ = fmt.Fprintf(r.out, "No pages found for %q\n", query)
		return
	}
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render(
		fmt.Sprintf("%d of %d result(s) for %q", len(hits), total, query)))

	for i, h := range hits {
		title := h.Title
		if title == "" {
			title = h.URL
		}
		line := fmt.Sprintf("%d. %s", i+1, r.styles.Title.Render(title))
		if h.HasScore {
			line += fmt.Sprintf(" (%.2f)", h.Score)
		}
		_, _ = fmt.Fprintln(r.out, line)
		meta := h.URL
		if h.LastVisitDate != "" {
			meta += "  " + h.LastVisitDate
		}
		_, _ = fmt.Fprintf(r.out, "   %s\n", r.styles.URL.Render(meta))
		if text := strings.TrimSpace(h.Text); text != "" {
			_, _ = fmt.Fprintf(r.out, "   %s%s\n", r.attribute(h.Attribute), r.Highlight(oneLine(text)))
		}
		_, _ = fmt.Fprintln(r.out)
	}
}

func (r *ResultsRenderer) attribute(attr string) string {
	if attr == "" || attr == "text" {
		return ""
	}
	return r.styles.Label.Render("["+attr+"]") + " "
}

// Highlight replaces <mark> spans with the match style. Unbalanced markers
// are dropped.
func (r *ResultsRenderer) Highlight(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, markOpen)
		if start < 0 {
			b.WriteString(strings.ReplaceAll(s, markClose, ""))
			return b.String()
		}
		b.WriteString(strings.ReplaceAll(s[:start], markClose, ""))
		rest := s[start+len(markOpen):]
		end := strings.Index(rest, markClose)
		if end < 0 {
			b.WriteString(strings.ReplaceAll(rest, markOpen, ""))
			return b.String()
		}
		b.WriteString(r.styles.Match.Render(rest[:end]))
		s = rest[end+len(markClose):]
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
