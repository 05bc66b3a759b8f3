package whispernative

import "strings"

// token is a text token of a whisper.cpp segment with timings in seconds.
type token struct {
	Text       string
	P          float64
	Start, End float64
}

// mergeWords joins sub-word tokens into words. A token that starts with a
// space opens a new word; a word's probability is the mean over its tokens.
func mergeWords(tokens []token) []any {
	words := []any{}
	var (
		text   strings.Builder
		start  float64
		end    float64
		sumP   float64
		parts  int
		active bool
	)
	flush := func() {
		if !active {
			return
		}
		if w := strings.TrimSpace(text.String()); w != "" {
			words = append(words, map[string]any{
				"word":        w,
				"start":       start,
				"end":         end,
				"probability": sumP / float64(parts),
			})
		}
		text.Reset()
		sumP, parts, active = 0, 0, false
	}

	for _, t := range tokens {
		if t.Text == "" {
			continue
		}
		if strings.HasPrefix(t.Text, " ") {
			flush()
		}
		if !active {
			start = t.Start
			active = true
		}
		text.WriteString(t.Text)
		end = t.End
		sumP += t.P
		parts++
	}
	flush()
	return words
}
