package chunk

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/segment"
)

// Segment inserts spaces between the words of text so that scripts written
// without spaces (CJK and the like) tokenize into words. Pure ASCII text is
// returned unchanged. Word boundaries follow Unicode UAX #29; whitespace
// segments are dropped and the rest joined by single spaces.
func Segment(text string) string {
	if isASCII(text) {
		return text
	}

	seg := segment.NewWordSegmenterDirect([]byte(text))
	words := make([]string, 0, len(text)/4)
	for seg.Segment() {
		w := string(seg.Bytes())
		if strings.TrimFunc(w, unicode.IsSpace) == "" {
			continue
		}
		words = append(words, w)
	}
	if seg.Err() != nil {
		return text
	}
	return strings.Join(words, " ")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
