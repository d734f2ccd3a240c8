package tripchat

import (
	"strings"
	"unicode"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// AckMatcher detects pure-acknowledgement messages ("gracias", "thanks",
// "ok"...) so conversational filler never burns an itinerary regeneration.
// The token list is injectable configuration; the original list is a
// market-specific heuristic.
type AckMatcher struct {
	ac       ahocorasick.AhoCorasick
	hasWords bool
}

func NewAckMatcher(words []string) *AckMatcher {
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	return &AckMatcher{
		ac:       builder.Build(words),
		hasWords: len(words) > 0,
	}
}

// IsAcknowledgement reports whether the message starts with an acknowledgement
// token, case-insensitively, ending at a word boundary.
func (m *AckMatcher) IsAcknowledgement(message string) bool {
	if !m.hasWords {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return false
	}

	for _, match := range m.ac.FindAll(msg) {
		if match.Start() != 0 {
			continue
		}
		if match.End() == len(msg) {
			return true
		}
		next := rune(msg[match.End()])
		if !unicode.IsLetter(next) && !unicode.IsDigit(next) {
			return true
		}
	}
	return false
}
