package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Layout names the files under the logs directory.
type Layout struct {
	LogsDir string
}

func (l Layout) LedgerPath() string     { return filepath.Join(l.LogsDir, "seen_sources.md") }
func (l Layout) RejectedPath() string   { return filepath.Join(l.LogsDir, "rejected_sources.md") }
func (l Layout) TriagePath() string     { return filepath.Join(l.LogsDir, "triage_log.md") }
func (l Layout) SievePath() string      { return filepath.Join(l.LogsDir, "sieve_log.md") }
func (l Layout) RunLogPath() string     { return filepath.Join(l.LogsDir, "run_log.md") }
func (l Layout) QueryCachePath() string { return filepath.Join(l.LogsDir, "query_cache.json") }
func (l Layout) legacyLedgerPath() string {
	return filepath.Join(l.LogsDir, "seen_sources.txt")
}

// Files is the set of opened persistence handles for one run.
type Files struct {
	Layout   Layout
	Ledger   *Ledger
	Rejected *SectionLog
	Triage   *SectionLog
	Sieve    *SectionLog
	Cache    *QueryCache
	// Migrated is true when a legacy seen_sources.txt was renamed on open.
	Migrated bool
}

// Init creates the logs directory, migrates a legacy ledger, writes missing
// headers and opens every store. It is called once at startup.
func Init(layout Layout) (*Files, error) {
	if err := os.MkdirAll(layout.LogsDir, 0o755); err != nil {
		return nil, &Error{Path: layout.LogsDir, Message: "failed to create logs directory", Cause: err}
	}

	migrated, err := migrateLegacyLedger(layout)
	if err != nil {
		return nil, err
	}

	files := &Files{
		Layout:   layout,
		Rejected: newRejectedLog(layout.RejectedPath()),
		Triage:   newTriageLog(layout.TriagePath()),
		Sieve:    newSieveLog(layout.SievePath()),
		Cache:    NewQueryCache(layout.QueryCachePath()),
		Migrated: migrated,
	}
	for _, log := range []*SectionLog{files.Rejected, files.Triage, files.Sieve} {
		if err := log.Init(); err != nil {
			return nil, err
		}
	}

	files.Ledger, err = OpenLedger(layout.LedgerPath())
	if err != nil {
		return nil, err
	}
	return files, nil
}

// MirrorPaths lists the markdown logs copied by Mirror.
func (l Layout) MirrorPaths() []string {
	return []string{l.LedgerPath(), l.RejectedPath(), l.TriagePath(), l.SievePath(), l.RunLogPath()}
}

func migrateLegacyLedger(layout Layout) (bool, error) {
	legacy := layout.legacyLedgerPath()
	if _, err := os.Stat(legacy); err != nil {
		return false, nil
	}
	if _, err := os.Stat(layout.LedgerPath()); err == nil {
		return false, nil
	}
	if err := os.Rename(legacy, layout.LedgerPath()); err != nil {
		return false, &Error{Path: legacy, Message: "failed to migrate legacy ledger", Cause: err}
	}
	return true, nil
}

// Mirror copies each existing file into dir. Missing sources are skipped; all
// copy errors are joined and returned for logging only.
func Mirror(dir string, paths ...string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Path: dir, Message: "mirror directory unavailable", Cause: err}
	}

	var errs []error
	for _, src := range paths {
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, &Error{Path: src, Message: "failed to mirror", Cause: err})
		}
	}
	return errors.Join(errs...)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
