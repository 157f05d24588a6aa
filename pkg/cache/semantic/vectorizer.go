package semantic

import (
	"math"
	"slices"
	"unicode/utf8"

	"github.com/pario-ai/faqbot/pkg/textnorm"
)

// minTokenRunes drops one-character tokens; they carry no signal in a
// bag-of-words question match.
const minTokenRunes = 2

// termVector is a sparse term-count vector with terms sorted by id.
type termVector struct {
	terms  []int
	counts []float64
	norm   float64
}

// vocabulary maps a term to its column id.
type vocabulary map[string]int

// analyze turns raw question text into the tokens that are counted.
func analyze(text string) []string {
	tokens := textnorm.Tokens(text)
	kept := tokens[:0]
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) >= minTokenRunes {
			kept = append(kept, tok)
		}
	}
	return kept
}

// fitVocabulary assigns column ids in lexical order so that the same corpus
// always produces the same vocabulary.
func fitVocabulary(docs [][]string) vocabulary {
	seen := make(map[string]struct{})
	for _, doc := range docs {
		for _, tok := range doc {
			seen[tok] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for tok := range seen {
		terms = append(terms, tok)
	}
	slices.Sort(terms)

	v := make(vocabulary, len(terms))
	for i, tok := range terms {
		v[tok] = i
	}
	return v
}

// transform counts the in-vocabulary tokens. Unknown tokens are ignored.
func (v vocabulary) transform(tokens []string) termVector {
	counts := make(map[int]float64, len(tokens))
	for _, tok := range tokens {
		if id, ok := v[tok]; ok {
			counts[id]++
		}
	}

	vec := termVector{
		terms:  make([]int, 0, len(counts)),
		counts: make([]float64, 0, len(counts)),
	}
	for id := range counts {
		vec.terms = append(vec.terms, id)
	}
	slices.Sort(vec.terms)

	var sq float64
	for _, id := range vec.terms {
		c := counts[id]
		vec.counts = append(vec.counts, c)
		sq += c * c
	}
	vec.norm = math.Sqrt(sq)
	return vec
}

// cosineDistance returns 1 - cos(a, b), clamped to [0, 2]. A zero vector is
// treated as orthogonal to everything.
func cosineDistance(a, b termVector) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 1
	}

	var dot float64
	i, j := 0, 0
	for i < len(a.terms) && j < len(b.terms) {
		switch {
		case a.terms[i] == b.terms[j]:
			dot += a.counts[i] * b.counts[j]
			i++
			j++
		case a.terms[i] < b.terms[j]:
			i++
		default:
			j++
		}
	}

	d := 1 - dot/(a.norm*b.norm)
	if d < 1e-12 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}
