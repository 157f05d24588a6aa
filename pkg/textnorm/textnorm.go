// Package textnorm cleans question text before it is matched against the
// semantic cache.
//
// Normalization lower-cases the input, removes every character that is not a
// letter, digit, combining mark, underscore or whitespace, collapses runs of
// whitespace and finally drops Spanish stop words. The stop-word list is the
// Snowball Spanish list bundled with bleve's analysis/lang/es package.
package textnorm

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/registry"
)

// nonWord keeps whitespace in the broad sense, including \v, U+0085 and the
// U+001C..U+001F separators, so they split words instead of joining them.
var nonWord = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s\p{Z}\v\x{85}\x{1c}-\x{1f}]+`)

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

var stopWords = sync.OnceValue(func() analysis.TokenMap {
	tm, err := registry.NewCache().TokenMapNamed(es.StopName)
	if err != nil {
		panic(fmt.Sprintf("textnorm: load spanish stop words: %v", err))
	}
	return tm
})

// Normalize returns the cleaned, stop-word free form of text. It never fails;
// empty input yields the empty string.
func Normalize(text string) string {
	return strings.Join(Tokens(text), " ")
}

// Tokens returns the normalized tokens of text in order.
func Tokens(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ToLower(text)
	text = nonWord.ReplaceAllString(text, "")

	fields := strings.FieldsFunc(text, isSpace)
	kept := fields[:0]
	for _, f := range fields {
		if !IsStopWord(f) {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// IsStopWord reports whether the lower-cased word is a Spanish stop word.
func IsStopWord(word string) bool {
	return stopWords()[word]
}
