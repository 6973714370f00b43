// Package sieve implements the free lexical pre-filter that runs before any
// gated or paid stage.
package sieve

import "strings"

// DefaultKeywords is the domain vocabulary used when none is configured.
var DefaultKeywords = []string{
	"safety", "security", "ics", "ot", "scada", "cyber-physical",
	"breach", "emergency", "override", "risk", "resilience", "hazard",
	"industrial", "infrastructure",
}

// Sieve matches lower-cased keywords as substrings of title and snippet.
type Sieve struct {
	keywords []string
}

// New builds a sieve. An empty keyword list falls back to DefaultKeywords.
func New(keywords []string) *Sieve {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return &Sieve{keywords: kw}
}

// Pass reports whether the candidate text mentions any keyword.
func (s *Sieve) Pass(title, snippet string) bool {
	_, ok := s.Match(title, snippet)
	return ok
}

// Match returns the first keyword found in the candidate text.
func (s *Sieve) Match(title, snippet string) (string, bool) {
	text := strings.ToLower(title + " " + snippet)
	for _, kw := range s.keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// Keywords returns a copy of the active vocabulary.
func (s *Sieve) Keywords() []string {
	return append([]string(nil), s.keywords...)
}
