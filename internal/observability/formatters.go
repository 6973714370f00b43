// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/research-scout/internal/session"
	"github.com/jonathan/research-scout/internal/store"
	"github.com/jonathan/research-scout/internal/triage"
	"github.com/jonathan/research-scout/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the terminal
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// PrintLifetimeTally outputs the all-time verdict counts.
func (p *Printer) PrintLifetimeTally(c store.TallyCounts) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s HIGH:            %d\n", types.RelevanceHigh.Badge(), c.High))
	sb.WriteString(fmt.Sprintf("%s MEDIUM:          %d\n", types.RelevanceMedium.Badge(), c.Medium))
	sb.WriteString(fmt.Sprintf("%s LOW:             %d\n", types.RelevanceLow.Badge(), c.Low))
	sb.WriteString(fmt.Sprintf("%s SILENT_ANOMALY:  %d\n", types.RelevanceSilentAnomaly.Badge(), c.SilentAnomaly))
	sb.WriteString(fmt.Sprintf("   TOTAL:           %d\n", c.Total()))

	updated := c.LastUpdated
	if updated == "" {
		updated = "never"
	}
	sb.WriteString(fmt.Sprintf("Last updated: %s", updated))

	p.printBox("LIFETIME RESEARCH STATS", sb.String())
}

// PrintQuerySet outputs the queries chosen for this run and where they came from.
func (p *Printer) PrintQuerySet(qs types.QuerySet, origin string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Source: %s", origin))
	if qs.GeneratedOn != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", qs.GeneratedOn))
	}
	sb.WriteString("\n\n")

	writeList := func(label string, queries []string) {
		sb.WriteString(fmt.Sprintf("%s (%d):\n", label, len(queries)))
		count := min(len(queries), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", queries[i]))
		}
		if len(queries) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(queries)-maxItemsToShow))
		}
	}
	writeList("Academic", qs.ScholarQueries)
	sb.WriteString("\n")
	writeList("Grey literature", qs.GreyLitQueries)

	p.printBox("SEARCH QUERIES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSessionSummary outputs the counters of a finished run.
func (p *Printer) PrintSessionSummary(c session.Counters) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Evaluated:            %d\n", c.Evaluated))
	sb.WriteString(fmt.Sprintf("High/Medium:          %d\n", c.HighMedium))
	sb.WriteString(fmt.Sprintf("Low:                  %d\n", c.Low))
	sb.WriteString(fmt.Sprintf("Triage rejects:       %d\n", c.Triage))
	sb.WriteString(fmt.Sprintf("Sieve drops:          %d", c.Sieve))

	p.printBox("SESSION SUMMARY", sb.String())
}

// PrintRecheckSummary outputs the result of a recheck pass.
func (p *Printer) PrintRecheckSummary(s triage.RecheckSummary) {
	if s.Checked == 0 {
		p.printBox("RECHECK", "No LOW entries to recheck")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Checked:    %d\n", s.Checked))
	sb.WriteString(fmt.Sprintf("Upgraded:   %d\n", s.Upgraded))
	sb.WriteString(fmt.Sprintf("Still LOW:  %d", s.StillLow))

	if len(s.Upgrades) > 0 {
		sb.WriteString("\n\n")
		count := min(len(s.Upgrades), maxItemsToShow)
		for i := 0; i < count; i++ {
			rec := s.Upgrades[i]
			sb.WriteString(fmt.Sprintf("%s %s", rec.Relevance.Badge(), rec.Title))
			if i < count-1 {
				sb.WriteString("\n")
			}
		}
		if len(s.Upgrades) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("\n... and %d more", len(s.Upgrades)-maxItemsToShow))
		}
	}

	p.printBox("RECHECK", sb.String())
}

// PrintEmergency outputs the safety shutdown notice with the final tally.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEmergency(reason string, c store.TallyCounts) {
	fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "🛑 EMERGENCY SHUTDOWN")
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(reason, boxWidth-4))
	fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
	p.PrintLifetimeTally(c)
}
