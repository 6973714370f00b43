package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/research-scout/internal/session"
	"github.com/jonathan/research-scout/internal/store"
	"github.com/jonathan/research-scout/internal/triage"
	"github.com/jonathan/research-scout/internal/types"
)

func TestPrintLifetimeTally(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintLifetimeTally(store.TallyCounts{High: 3, Medium: 4, Low: 20, SilentAnomaly: 1, LastUpdated: "2026-03-01 10:00:00"})
	output := buf.String()

	assert.Contains(t, output, "LIFETIME RESEARCH STATS")
	assert.Contains(t, output, "HIGH:            3")
	assert.Contains(t, output, "MEDIUM:          4")
	assert.Contains(t, output, "LOW:             20")
	assert.Contains(t, output, "TOTAL:           28")
	assert.Contains(t, output, "Last updated: 2026-03-01 10:00:00")
}

func TestPrintLifetimeTally_NeverUpdated(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintLifetimeTally(store.TallyCounts{})
	assert.Contains(t, buf.String(), "Last updated: never")
}

func TestPrintQuerySet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintQuerySet(types.QuerySet{
		GeneratedOn:    "2026-03-01",
		ScholarQueries: []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7"},
		GreyLitQueries: []string{"site:nist.gov ICS"},
	}, "cache")
	output := buf.String()

	assert.Contains(t, output, "SEARCH QUERIES")
	assert.Contains(t, output, "Source: cache (2026-03-01)")
	assert.Contains(t, output, "Academic (7):")
	assert.Contains(t, output, "q5")
	assert.NotContains(t, output, "q6")
	assert.Contains(t, output, "... and 2 more")
	assert.Contains(t, output, "site:nist.gov ICS")
}

func TestPrintSessionSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSessionSummary(session.Counters{Evaluated: 9, HighMedium: 2, Low: 4, Triage: 3, Sieve: 11})
	output := buf.String()

	assert.Contains(t, output, "SESSION SUMMARY")
	assert.Contains(t, output, "Evaluated:            9")
	assert.Contains(t, output, "Sieve drops:          11")
}

func TestPrintRecheckSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRecheckSummary(triage.RecheckSummary{
		Checked:  5,
		Upgraded: 2,
		StillLow: 3,
		Upgrades: []types.DiscoveryRecord{
			{Title: "Port Safety Override", Relevance: types.RelevanceHigh},
			{Title: "Grid Fail-Open Study", Relevance: types.RelevanceMedium},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "Upgraded:   2")
	assert.Contains(t, output, "Still LOW:  3")
	assert.Contains(t, output, "🟢 Port Safety Override")
	assert.Contains(t, output, "🟡 Grid Fail-Open Study")
}

func TestPrintRecheckSummary_Nothing(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRecheckSummary(triage.RecheckSummary{})
	assert.Contains(t, buf.String(), "No LOW entries to recheck")
}

func TestPrintEmergency(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintEmergency("GPU at 93.0°C for 3 consecutive checks", store.TallyCounts{Low: 1})
	output := buf.String()

	assert.Contains(t, output, "EMERGENCY SHUTDOWN")
	assert.Contains(t, output, "GPU at 93.0°C")
	assert.Contains(t, output, "LIFETIME RESEARCH STATS")
}

func TestPrintBox_ClipsLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.printBox("T", strings.Repeat("é", 100))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth, line)
	}
	assert.Contains(t, buf.String(), "...")
}
