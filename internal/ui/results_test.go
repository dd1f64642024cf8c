package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultsRenderer_Render(t *testing.T) {
	// Given: two hits, one with a score and one without a title
	buf := &bytes.Buffer{}
	r := NewResultsRenderer(buf, true)
	hits := []Hit{
		{Title: "SQLite WAL", URL: "https://sqlite.org/wal.html", LastVisitDate: "2026-03-01",
			Attribute: "text", Text: "the <mark>checkpoint</mark>\n operation"},
		{URL: "https://example.com/", Attribute: "title", Text: "Example", Score: 0.42, HasScore: true},
	}

	// When: rendering
	r.Render("checkpoint", hits, 7)

	// Then: highlights are stripped in plain mode and the layout holds
	out := buf.String()
	assert.Contains(t, out, `2 of 7 result(s) for "checkpoint"`)
	assert.Contains(t, out, "1. SQLite WAL")
	assert.Contains(t, out, "https://sqlite.org/wal.html  2026-03-01")
	assert.Contains(t, out, "the checkpoint operation")
	assert.Contains(t, out, "2. https://example.com/ (0.42)")
	assert.Contains(t, out, "[title] Example")
	assert.NotContains(t, out, "<mark>")
}

func TestResultsRenderer_Render_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	NewResultsRenderer(buf, true).Render("nothing", nil, 0)
	assert.Equal(t, "No pages found for \"nothing\"\n", buf.String())
}

func TestResultsRenderer_Highlight(t *testing.T) {
	r := NewResultsRenderer(&bytes.Buffer{}, true)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"none", "plain text", "plain text"},
		{"two spans", "<mark>a</mark> and <mark>b</mark>", "a and b"},
		{"unclosed", "x <mark>y", "x y"},
		{"stray close", "x</mark> y", "x y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Highlight(tt.in))
		})
	}
}
