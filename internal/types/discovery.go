// Package types provides type definitions for structured data used throughout the research scout.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// Item is a search hit produced by a source adapter. It lives for one run only.
type Item struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Enriched bool   `json:"enriched"`
	Source   string `json:"source,omitempty"`
}

// Relevance is the closed verdict vocabulary produced by the classifier stages.
type Relevance string

const (
	RelevanceHigh          Relevance = "HIGH"
	RelevanceMedium        Relevance = "MEDIUM"
	RelevanceLow           Relevance = "LOW"
	RelevanceSilentAnomaly Relevance = "SILENT_ANOMALY"
	// RelevanceIgnore marks items that are out of scope (e.g. non-English sources).
	RelevanceIgnore Relevance = "IGNORE"
)

// ParseRelevance normalizes a raw classifier token. The boolean is false for
// anything outside the vocabulary; the returned value is then the upper-cased input.
func ParseRelevance(raw string) (Relevance, bool) {
	r := Relevance(strings.ToUpper(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// Valid reports whether r belongs to the vocabulary.
func (r Relevance) Valid() bool {
	switch r {
	case RelevanceHigh, RelevanceMedium, RelevanceLow, RelevanceSilentAnomaly, RelevanceIgnore:
		return true
	}
	return false
}

// Badge returns the marker used in the markdown logs.
func (r Relevance) Badge() string {
	switch r {
	case RelevanceHigh:
		return "🟢"
	case RelevanceMedium:
		return "🟡"
	case RelevanceLow:
		return "🔴"
	case RelevanceSilentAnomaly:
		return "🔵"
	default:
		return ""
	}
}

// Stage identifies which part of the cascade produced a verdict.
type Stage string

const (
	StageBatch   Stage = "batch"
	StageConfirm Stage = "confirm"
)

// Verdict is an immutable classification result.
type Verdict struct {
	Relevance Relevance `json:"relevance"`
	Rationale string    `json:"rationale"`
	Stage     Stage     `json:"stage"`
}

// DiscoveryRecord is one row of the durable ledger.
type DiscoveryRecord struct {
	Title      string    `json:"title"`
	Link       string    `json:"link"`
	Date       string    `json:"date"`
	Relevance  Relevance `json:"relevance"`
	Rationale  string    `json:"rationale"`
	Correction bool      `json:"correction,omitempty"`
}

// QuerySet is the work list consumed by the source adapters.
type QuerySet struct {
	GeneratedOn    string   `json:"generated_on"`
	ScholarQueries []string `json:"scholar_queries"`
	GreyLitQueries []string `json:"grey_lit_queries"`
}

// Empty reports whether either list has no usable query.
func (q QuerySet) Empty() bool {
	return len(nonBlank(q.ScholarQueries)) == 0 || len(nonBlank(q.GreyLitQueries)) == 0
}

func nonBlank(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
