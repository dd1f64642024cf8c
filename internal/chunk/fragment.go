// Package chunk cuts page markdown into the fragments that make up the
// full-text and vector indexes.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinFragmentLength is the length, in characters, a fragment must
// reach before a blank line closes it. Fragments close unconditionally at
// twice this length.
const DefaultMinFragmentLength = 100

// Fragmenter splits text on markdown structure.
type Fragmenter struct {
	// MinLength overrides DefaultMinFragmentLength when positive.
	MinLength int
	// SkipSegmentation leaves fragments as written instead of running Segment.
	SkipSegmentation bool
}

// GetArticleFragments splits text with the default Fragmenter.
func GetArticleFragments(text string) []string {
	return Fragmenter{}.Split(text)
}

// Split walks text line by line:
//
//   - a blank line closes the current fragment once it is long enough;
//   - a heading closes the current fragment and opens a new one;
//   - any other line is appended with a single space;
//   - a fragment closes as soon as it reaches twice the minimum length.
//
// Lines are trimmed and empty fragments dropped.
func (f Fragmenter) Split(text string) []string {
	minLen := f.MinLength
	if minLen <= 0 {
		minLen = DefaultMinFragmentLength
	}

	var fragments []string
	var current strings.Builder
	push := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			fragments = append(fragments, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)

		if line == "" {
			if utf8.RuneCountInString(current.String()) >= minLen {
				push()
			}
			continue
		}

		if strings.HasPrefix(line, "#") {
			push()
			current.WriteString(line)
		} else {
			if current.Len() > 0 {
				current.WriteByte(' ')
			}
			current.WriteString(line)
		}

		if utf8.RuneCountInString(current.String()) >= minLen*2 {
			push()
		}
	}
	push()

	if f.SkipSegmentation {
		return fragments
	}
	for i, frag := range fragments {
		fragments[i] = Segment(frag)
	}
	return fragments
}
