package session

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunLog appends the human-readable markdown record of a run. Every line is
// also sent to the process logger.
type RunLog struct {
	mu     sync.Mutex
	f      *os.File
	logger *zap.Logger
}

func openRunLog(path string, started time.Time, runID string, logger *zap.Logger) (*RunLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	r := &RunLog{f: f, logger: logger}
	r.write(fmt.Sprintf("\n---\n\n## 🚀 Run — %s\n\n_Run ID: %s_\n\n", started.Format("2006-01-02 15:04"), runID))
	return r, nil
}

// Log writes one line.
func (r *RunLog) Log(msg string) {
	r.logger.Info(msg)
	r.write(msg + "\n")
}

// Logf is Log with formatting.
func (r *RunLog) Logf(format string, args ...any) {
	r.Log(fmt.Sprintf(format, args...))
}

// Section writes a "### <icon> <title>" header.
func (r *RunLog) Section(icon, title string) {
	r.logger.Info("section", zap.String("title", title))
	r.write(fmt.Sprintf("\n### %s %s\n\n", icon, title))
}

func (r *RunLog) writeSummary(c Counters) {
	var sb strings.Builder
	sb.WriteString("\n#### 📊 Session Summary\n\n")
	sb.WriteString("| Metric | Count |\n| :--- | :--- |\n")
	fmt.Fprintf(&sb, "| Total evaluated | %d |\n", c.Evaluated)
	fmt.Fprintf(&sb, "| 🟢🟡 HIGH / MEDIUM | %d |\n", c.HighMedium)
	fmt.Fprintf(&sb, "| 🔴 LOW / Rejected | %d |\n", c.Low)
	fmt.Fprintf(&sb, "| 🔵 Triage (Bouncer) rejections | %d |\n", c.Triage)
	fmt.Fprintf(&sb, "| ⚪ Sieve rejections | %d |\n\n", c.Sieve)
	r.write(sb.String())
}

func (r *RunLog) write(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return
	}
	if _, err := r.f.WriteString(s); err != nil {
		r.logger.Warn("run log write failed", zap.Error(err))
	}
}

func (r *RunLog) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
