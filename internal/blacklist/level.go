// Package blacklist decides how deeply a URL may be indexed.
//
// Rules are SQL LIKE patterns matched against the normalized URL. The most
// recently created matching rule wins. Without a match a page is indexed in
// full, except for local hosts which are never indexed.
package blacklist

import (
	"fmt"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

// IndexLevel is how much of a page is stored.
type IndexLevel string

const (
	// LevelFull stores the page with its content.
	LevelFull IndexLevel = "full"
	// LevelURLOnly stores the visit without content.
	LevelURLOnly IndexLevel = "url_only"
	// LevelNoIndex stores nothing.
	LevelNoIndex IndexLevel = "no_index"
)

// ParseLevel validates s as an IndexLevel.
func ParseLevel(s string) (IndexLevel, error) {
	switch l := IndexLevel(s); l {
	case LevelFull, LevelURLOnly, LevelNoIndex:
		return l, nil
	}
	return "", apperrors.New(apperrors.ErrCodeInvalidLevel, fmt.Sprintf("invalid index level %q", s), nil).
		WithSuggestion("Use one of: full, url_only, no_index.")
}

// RuleLevel validates s as a level a rule may carry. Rules only restrict,
// so full is rejected.
func RuleLevel(s string) (IndexLevel, error) {
	l, err := ParseLevel(s)
	if err != nil {
		return "", err
	}
	if l == LevelFull {
		return "", apperrors.New(apperrors.ErrCodeInvalidLevel, "rules must be no_index or url_only", nil).
			WithSuggestion("Remove the rule instead to allow full indexing.")
	}
	return l, nil
}

// StoresContent reports whether pages at this level keep their body.
func (l IndexLevel) StoresContent() bool {
	return l == LevelFull
}

// Indexable reports whether pages at this level are stored at all.
func (l IndexLevel) Indexable() bool {
	return l == LevelFull || l == LevelURLOnly
}
