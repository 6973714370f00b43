package store

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/research-scout/internal/types"
)

const ledgerHeader = "# Scout Smart Memory Log\n" +
	"> Tracks every URL reviewed. Prevents duplicate evaluations across runs.\n\n" +
	"| Title | Date | Relevance | Rationale |\n" +
	"| :--- | :--- | :--- | :--- |\n"

const correctionTag = "(correction)"

// ledgerRow matches the first column up to its "](link) |" boundary. The
// title is non-greedy so a raw "|" inside it stays part of the title.
var ledgerRow = regexp.MustCompile(`^\|\s*\[(.*?)\]\((\S*?)\)\s*\|(.*)$`)

// Ledger is the append-only markdown table of every evaluated link.
// Membership is exact string equality against recorded links.
type Ledger struct {
	path  string
	now   func() time.Time
	mu    sync.Mutex
	links map[string]struct{}
}

// OpenLedger creates the ledger file if needed and indexes its links. Besides
// table rows, any bare URL on a non-table line is indexed, which covers
// entries carried over from a migrated seen_sources.txt.
func OpenLedger(path string) (*Ledger, error) {
	if err := writeIfMissing(path, ledgerHeader); err != nil {
		return nil, err
	}

	l := &Ledger{path: path, now: time.Now, links: make(map[string]struct{})}
	err := l.scan(func(line string) {
		if rec, ok := ParseLedgerRow(line); ok {
			l.links[rec.Link] = struct{}{}
			return
		}
		for _, link := range bareLinks(line) {
			l.links[link] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// IsNew reports whether link has never been recorded.
func (l *Ledger) IsNew(link string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, seen := l.links[cell(link)]
	return !seen
}

// Record appends a discovery row unless the link is already present, in which
// case it is a no-op and returns false. The Date is filled in when empty.
func (l *Ledger) Record(rec types.DiscoveryRecord) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.links[cell(rec.Link)]; seen {
		return false, nil
	}
	rec.Correction = false
	if err := l.appendRow(rec); err != nil {
		return false, err
	}
	l.links[cell(rec.Link)] = struct{}{}
	return true, nil
}

// RecordCorrection appends a correction row for an already recorded link.
// Earlier rows are left as they are.
func (l *Ledger) RecordCorrection(rec types.DiscoveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.Correction = true
	if err := l.appendRow(rec); err != nil {
		return err
	}
	l.links[cell(rec.Link)] = struct{}{}
	return nil
}

func (l *Ledger) appendRow(rec types.DiscoveryRecord) error {
	if rec.Date == "" {
		rec.Date = l.now().Format(time.DateOnly)
	}
	return appendFile(l.path, FormatLedgerRow(rec))
}

// Records parses every row of the ledger in file order.
func (l *Ledger) Records() ([]types.DiscoveryRecord, error) {
	var out []types.DiscoveryRecord
	err := l.scan(func(line string) {
		if rec, ok := ParseLedgerRow(line); ok {
			out = append(out, rec)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) scan(fn func(line string)) error {
	f, err := os.Open(l.path)
	if err != nil {
		return &Error{Path: l.path, Message: "failed to open ledger", Cause: err}
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return &Error{Path: l.path, Message: "failed to read ledger", Cause: err}
	}
	return nil
}

// LowRecords returns original LOW rows whose link has no later correction row.
func (l *Ledger) LowRecords() ([]types.DiscoveryRecord, error) {
	records, err := l.Records()
	if err != nil {
		return nil, err
	}

	corrected := make(map[string]bool)
	for _, r := range records {
		if r.Correction {
			corrected[r.Link] = true
		}
	}

	var lows []types.DiscoveryRecord
	for _, r := range records {
		if !r.Correction && r.Relevance == types.RelevanceLow && !corrected[r.Link] {
			lows = append(lows, r)
		}
	}
	return lows, nil
}

// FormatLedgerRow renders a record as one markdown table row.
func FormatLedgerRow(rec types.DiscoveryRecord) string {
	verdict := strings.TrimSpace(rec.Relevance.Badge() + " " + string(rec.Relevance))
	if rec.Correction {
		verdict += " " + correctionTag
	}
	return fmt.Sprintf("| [%s](%s) | %s | %s | %s |\n",
		cell(rec.Title), cell(rec.Link), cell(rec.Date), verdict, cell(rec.Rationale))
}

// ParseLedgerRow parses a row written by FormatLedgerRow, or by older writers
// that left "|" unescaped in the title. Header and separator lines, and
// anything else, return false.
func ParseLedgerRow(line string) (types.DiscoveryRecord, bool) {
	m := ledgerRow.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil || m[2] == "" {
		return types.DiscoveryRecord{}, false
	}

	rest := strings.TrimSuffix(strings.TrimSpace(m[3]), "|")
	parts := strings.SplitN(rest, "|", 3)
	if len(parts) < 3 {
		return types.DiscoveryRecord{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	rec := types.DiscoveryRecord{
		Title:     strings.TrimSpace(m[1]),
		Link:      m[2],
		Date:      parts[0],
		Rationale: parts[2],
		Relevance: types.RelevanceLow,
	}

	fields := strings.Fields(parts[1])
	if n := len(fields); n > 0 && fields[n-1] == correctionTag {
		rec.Correction = true
		fields = fields[:n-1]
	}
	if n := len(fields); n > 0 {
		if r, ok := types.ParseRelevance(fields[n-1]); ok {
			rec.Relevance = r
		} else {
			rec.Relevance = types.Relevance(fields[n-1])
		}
	}
	return rec, true
}

// bareLinks returns the http(s) URLs on a line that is not a table row.
func bareLinks(line string) []string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "|") {
		return nil
	}
	var out []string
	for _, f := range strings.Fields(line) {
		f = strings.Trim(f, "<>\"'")
		if strings.HasPrefix(f, "http://") || strings.HasPrefix(f, "https://") {
			out = append(out, f)
		}
	}
	return out
}

// cell keeps a value on one line and out of the column separators.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "/")
	return strings.TrimSpace(s)
}
