// Package speech adapts speech recognition and synthesis collaborators to
// the animation loop.
package speech

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultFillerWords are stripped before wake-phrase matching.
var DefaultFillerWords = []string{"um", "uh", "umm", "uhh", "er", "ah", "hmm", "mm"}

// Result is one recognizer event.
type Result struct {
	Text  string  `json:"text"`
	Final bool    `json:"final"`
	Score float64 `json:"score,omitempty"`
}

// Gate passes final recognizer results that contain a wake phrase.
type Gate struct {
	phrases []string
	filler  *regexp.Regexp
}

// NewGate builds a gate. Phrases are normalized the same way as input
// text; empty phrases are dropped. A nil fillers list uses DefaultFillerWords.
func NewGate(phrases, fillers []string) *Gate {
	if fillers == nil {
		fillers = DefaultFillerWords
	}
	g := &Gate{filler: fillerPattern(fillers)}
	for _, p := range phrases {
		if n := g.Normalize(p); n != "" {
			g.phrases = append(g.phrases, n)
		}
	}
	return g
}

func fillerPattern(words []string) *regexp.Regexp {
	var parts []string
	for _, w := range words {
		w = strings.TrimSpace(strings.ToLower(w))
		if w != "" {
			parts = append(parts, regexp.QuoteMeta(w))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return regexp.MustCompile(`\b(` + strings.Join(parts, `|`) + `)\b`)
}

// Normalize lowercases text, drops punctuation and filler words, and
// collapses whitespace.
func (g *Gate) Normalize(text string) string {
	text = strings.ToLower(text)
	text = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return r
		}
		return ' '
	}, text)
	if g.filler != nil {
		text = g.filler.ReplaceAllString(text, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

// Accept returns the matched wake phrase. Interim results never match.
func (g *Gate) Accept(r Result) (string, bool) {
	if !r.Final || len(g.phrases) == 0 {
		return "", false
	}
	text := " " + g.Normalize(r.Text) + " "
	for _, p := range g.phrases {
		if strings.Contains(text, " "+p+" ") {
			return p, true
		}
	}
	return "", false
}

// Phrases returns the normalized wake phrases.
func (g *Gate) Phrases() []string {
	out := make([]string, len(g.phrases))
	copy(out, g.phrases)
	return out
}
