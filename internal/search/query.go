// Package search answers queries over indexed history: FTS5 full-text with
// host-based rank adjustment, pg_trgm style trigram similarity, and
// embedding similarity backed by the in-memory HNSW index.
package search

import (
	"strings"
	"unicode"
)

// PrepareQuery turns free text into an FTS5 query: every whitespace
// separated token becomes a quoted string, tokens are ANDed, and the last
// one matches as a prefix. Tokens without a letter or digit are dropped,
// since the tokenizer would leave an empty phrase that matches nothing.
// Blank input yields "".
//
//	PrepareQuery(`sqlite full te`) == `"sqlite" AND "full" AND "te"*`
func PrepareQuery(q string) string {
	var quoted []string
	for _, tok := range strings.Fields(q) {
		if strings.IndexFunc(tok, isWordRune) < 0 {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(tok, `"`, `""`)+`"`)
	}
	if len(quoted) == 0 {
		return ""
	}
	return strings.Join(quoted, " AND ") + "*"
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isSyntaxError reports FTS5 query parse failures. They can only come from
// raw queries; prepared ones are always well formed.
func isSyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "unterminated string") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "unknown special query")
}
