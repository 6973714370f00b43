package store

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonathan/research-scout/internal/types"
)

// SectionLog is a human-readable markdown log of grouped entries
// (rejections, bouncer triage, sieve drops).
type SectionLog struct {
	path   string
	header string
	now    func() time.Time
}

func newRejectedLog(path string) *SectionLog {
	return &SectionLog{path: path, now: time.Now, header: "# Rejected Sources Log\n" +
		"> Documents scored **LOW** by the confirmation classifier.\n\n"}
}

func newTriageLog(path string) *SectionLog {
	return &SectionLog{path: path, now: time.Now, header: "# Triage Log\n" +
		"> Documents filtered by the batch classifier before confirmation.\n\n"}
}

func newSieveLog(path string) *SectionLog {
	return &SectionLog{path: path, now: time.Now, header: "# Sieve Log\n" +
		"> Candidates dropped by the lexical sieve, kept for review.\n\n"}
}

// Path returns the log file location.
func (s *SectionLog) Path() string { return s.path }

// Init writes the header when the file does not exist.
func (s *SectionLog) Init() error {
	return writeIfMissing(s.path, s.header)
}

// AppendVerdict writes a "### <badge> <REL> — [title](link)" entry.
func (s *SectionLog) AppendVerdict(rel types.Relevance, title, link, rationale string) error {
	heading := strings.TrimSpace(rel.Badge()+" "+string(rel)) + " — " + markdownLink(title, link)
	return appendFile(s.path, formatEntry(heading, [][2]string{
		{"Date", s.now().Format(time.DateOnly)},
		{"Rationale", oneLine(rationale)},
	}))
}

// AppendSieveDrop records the full candidate so the drop can be reviewed later.
func (s *SectionLog) AppendSieveDrop(item types.Item) error {
	heading := "⚪ SIEVE — " + markdownLink(item.Title, item.Link)
	return appendFile(s.path, formatEntry(heading, [][2]string{
		{"Date", s.now().Format(time.DateOnly)},
		{"Source", item.Source},
		{"Snippet", oneLine(item.Snippet)},
	}))
}

// Headings returns the last n entry headings in file order. Legacy
// "- **[date]** [title](url)" bullet entries are included.
func (s *SectionLog) Headings(n int) ([]string, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Path: s.path, Message: "failed to open log", Cause: err}
	}
	defer func() { _ = f.Close() }()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if (strings.HasPrefix(line, "### ") && strings.Contains(line, "—")) || strings.HasPrefix(line, "- **[") {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &Error{Path: s.path, Message: "failed to read log", Cause: err}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func formatEntry(heading string, fields [][2]string) string {
	var sb strings.Builder
	sb.WriteString("### " + heading + "\n")
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("- **%s:** %s\n", f[0], f[1]))
	}
	sb.WriteString("\n")
	return sb.String()
}

func markdownLink(title, link string) string {
	return fmt.Sprintf("[%s](%s)", oneLine(title), strings.TrimSpace(link))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
