// Package vocab corrects misrecognised domain terms in a normalized
// transcript.
//
// Each configured term is split into tokens. A transcript word is compared
// against every token in two passes:
//
//  1. Phonetic: Double Metaphone codes of the word and the token must share
//     at least one code, and their Jaro-Winkler similarity must reach the
//     phonetic threshold.
//  2. Fuzzy: when no token matched phonetically, pure Jaro-Winkler similarity
//     must reach the (higher) fuzzy threshold.
//
// A replaced word keeps its surrounding punctuation and records the engine's
// spelling in [transcript.Word.OriginalWord].
package vocab

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/scribe/pkg/transcript"
)

// Default similarity thresholds.
const (
	DefaultPhoneticThreshold = 0.70
	DefaultFuzzyThreshold    = 0.85

	// minRunes keeps short function words out of matching on both sides.
	minRunes = 3
)

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching token. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when no token
// matched phonetically. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.fuzzyThreshold = threshold
	}
}

type candidate struct {
	text  string // canonical spelling
	lower string
	codes map[string]struct{}
}

// Corrector matches words against a fixed vocabulary. It is read-only after
// construction and safe for concurrent use.
type Corrector struct {
	candidates        []candidate
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New builds a Corrector for terms. Multi-word terms contribute each of
// their tokens; duplicate tokens are folded (first spelling wins).
func New(terms []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: DefaultPhoneticThreshold,
		fuzzyThreshold:    DefaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}

	seen := make(map[string]bool)
	for _, term := range terms {
		for _, tok := range strings.Fields(term) {
			tok = strings.TrimFunc(tok, unicode.IsPunct)
			lower := strings.ToLower(tok)
			if utf8.RuneCountInString(lower) < minRunes || seen[lower] {
				continue
			}
			seen[lower] = true
			c.candidates = append(c.candidates, candidate{
				text:  tok,
				lower: lower,
				codes: codes(lower),
			})
		}
	}
	return c
}

// Empty reports whether the vocabulary has no usable tokens.
func (c *Corrector) Empty() bool { return len(c.candidates) == 0 }

// Match returns the vocabulary token closest to word. When matched is false,
// corrected equals word and score is 0.
func (c *Corrector) Match(word string) (corrected string, score float64, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(word))
	if utf8.RuneCountInString(lower) < minRunes || len(c.candidates) == 0 {
		return word, 0, false
	}
	inputCodes := codes(lower)

	var (
		best         *candidate
		bestScore    float64
		bestPhonetic bool
	)
	for i := range c.candidates {
		cand := &c.candidates[i]
		jw := matchr.JaroWinkler(lower, cand.lower, false)
		if overlap(inputCodes, cand.codes) {
			if jw >= c.phoneticThreshold && (!bestPhonetic || jw > bestScore) {
				best, bestScore, bestPhonetic = cand, jw, true
			}
		} else if !bestPhonetic && jw >= c.fuzzyThreshold && jw > bestScore {
			best, bestScore = cand, jw
		}
	}
	if best == nil {
		return word, 0, false
	}
	return best.text, bestScore, true
}

// Apply corrects every word of doc in place and returns how many words were
// replaced. Words already spelled like their match are left alone. Segment
// sentences are not rewritten.
func (c *Corrector) Apply(doc *transcript.Document) int {
	if doc == nil || c.Empty() {
		return 0
	}
	n := 0
	for si := range doc.Transcription {
		words := doc.Transcription[si].Words
		for wi := range words {
			w := &words[wi]
			prefix, core, suffix := splitPunct(w.Word)
			corrected, _, ok := c.Match(core)
			if !ok || corrected == core {
				continue
			}
			if w.OriginalWord == "" {
				w.OriginalWord = w.Word
			}
			w.Word = prefix + corrected + suffix
			n++
		}
	}
	return n
}

// splitPunct separates leading and trailing punctuation and whitespace from
// the word body.
func splitPunct(s string) (prefix, core, suffix string) {
	isEdge := func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSpace(r) }
	start := strings.IndexFunc(s, func(r rune) bool { return !isEdge(r) })
	if start < 0 {
		return s, "", ""
	}
	end := strings.LastIndexFunc(s, func(r rune) bool { return !isEdge(r) })
	_, size := utf8.DecodeRuneInString(s[end:])
	end += size
	return s[:start], s[start:end], s[end:]
}

// codes returns the non-empty Double Metaphone codes of every token in s.
func codes(s string) map[string]struct{} {
	out := make(map[string]struct{}, 2)
	for _, tok := range strings.Fields(s) {
		p, alt := matchr.DoubleMetaphone(tok)
		if p != "" {
			out[p] = struct{}{}
		}
		if alt != "" {
			out[alt] = struct{}{}
		}
	}
	return out
}

func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
