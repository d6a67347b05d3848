package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is the byte range of one token in the source text.
type Span struct {
	Start int
	End   int
}

// Tokenize splits text into maximal runs of non-whitespace.
func Tokenize(text string) []Span {
	spans := make([]Span, 0, len(text)/5+1)
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, Span{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

// CountTokens uses the same unit as Tokenize without allocating spans.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

const closers = "\"')]}»”’"

// endsSentence reports whether tok ends with . ! or ? optionally followed by closing quotes or brackets.
func endsSentence(tok string) bool {
	for tok != "" {
		r, size := utf8.DecodeLastRuneInString(tok)
		if strings.ContainsRune(closers, r) {
			tok = tok[:len(tok)-size]
			continue
		}
		return r == '.' || r == '!' || r == '?'
	}
	return false
}
