package sieve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPass(t *testing.T) {
	s := New([]string{"infrastructure", "SCADA"})

	tests := []struct {
		name    string
		title   string
		snippet string
		want    bool
	}{
		{"title match", "Port Infrastructure Report", "...", true},
		{"snippet match case-insensitive", "Quarterly update", "New scada firmware", true},
		{"no match", "Cat Video", "funny cats", false},
		{"match spans title and snippet join only", "infra", "structure", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Pass(tt.title, tt.snippet))
		})
	}
}

func TestMatch_ReturnsKeyword(t *testing.T) {
	s := New([]string{"hazard", "risk"})

	kw, ok := s.Match("Hazard analysis", "")
	assert.True(t, ok)
	assert.Equal(t, "hazard", kw)

	_, ok = s.Match("Gardening tips", "tomatoes")
	assert.False(t, ok)
}

func TestNew_DefaultsAndNormalization(t *testing.T) {
	assert.Equal(t, DefaultKeywords, New(nil).Keywords())
	assert.Equal(t, []string{"ics", "ot"}, New([]string{" ICS ", "", "Ot"}).Keywords())
}

func TestDefaultKeywords_SubstringSemantics(t *testing.T) {
	// "ot" is a plain substring, so unrelated words containing it pass.
	assert.True(t, New(nil).Pass("Notes from the field", ""))
}
