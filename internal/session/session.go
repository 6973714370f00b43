// Package session holds the per-run state that is threaded through every
// pipeline component: persistence handles, session counters, the lifetime
// tally and the markdown run log. A Session is opened once at startup and
// closed exactly once, by normal completion or by the emergency path.
package session

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/store"
	"github.com/jonathan/research-scout/internal/types"
)

// Counters are the in-memory session counts reported in the run summary.
type Counters struct {
	Evaluated  int
	HighMedium int
	Low        int
	Triage     int
	Sieve      int
}

// Options configures Open.
type Options struct {
	Layout store.Layout
	// TallyPath is the lifetime tally file; it may live outside the logs directory.
	TallyPath string
	// MirrorDir receives copies of the markdown logs on close. Empty disables mirroring.
	MirrorDir string
	Now       func() time.Time
}

// Session is the explicit run context.
type Session struct {
	ID      uuid.UUID
	Started time.Time
	Files   *store.Files
	Tally   *store.Tally
	Log     *RunLog

	mirrorDir string
	logger    *zap.Logger

	mu       sync.Mutex
	counters Counters
	flushes  int

	closeOnce sync.Once
	closed    atomic.Bool
	final     store.TallyCounts
	closeErr  error
}

// Open initializes the persistence layout and starts the run log.
func Open(opts Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TallyPath == "" {
		opts.TallyPath = filepath.Join(opts.Layout.LogsDir, "research_verdicts.json")
	}

	files, err := store.Init(opts.Layout)
	if err != nil {
		return nil, err
	}
	if files.Migrated {
		logger.Info("migrated legacy ledger", zap.String("path", files.Layout.LedgerPath()))
	}

	id := uuid.New()
	started := opts.Now()
	logger = logger.With(zap.String("run_id", id.String()))

	runLog, err := openRunLog(opts.Layout.RunLogPath(), started, id.String(), logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id,
		Started:   started,
		Files:     files,
		Tally:     store.NewTally(opts.TallyPath),
		Log:       runLog,
		mirrorDir: opts.MirrorDir,
		logger:    logger,
	}
	if _, err := s.Tally.Load(); err != nil {
		logger.Warn("lifetime tally unreadable, it will be replaced on flush", zap.Error(err))
	}
	return s, nil
}

// Logger returns the run-scoped logger.
func (s *Session) Logger() *zap.Logger { return s.logger }

// Score counts a verdict written to the ledger.
func (s *Session) Score(rel types.Relevance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Evaluated++
	switch rel {
	case types.RelevanceHigh, types.RelevanceMedium:
		s.counters.HighMedium++
	case types.RelevanceLow:
		s.counters.Low++
	}
	s.Tally.Add(rel, 1)
}

// Reclassify moves one tally unit from a historical verdict to a new one.
func (s *Session) Reclassify(from, to types.Relevance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to == types.RelevanceHigh || to == types.RelevanceMedium {
		s.counters.HighMedium++
	}
	s.Tally.Add(from, -1)
	s.Tally.Add(to, 1)
}

// CountTriage counts a batch-stage rejection.
func (s *Session) CountTriage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Triage++
}

// CountSieve counts a sieve drop.
func (s *Session) CountSieve() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Sieve++
}

// Counters returns a copy of the session counters.
func (s *Session) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// FlushTally persists pending tally deltas. A failure is logged and the
// deltas stay pending for the next flush.
func (s *Session) FlushTally() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Session) flushLocked() store.TallyCounts {
	s.flushes++
	counts, err := s.Tally.Flush()
	if err != nil {
		s.logger.Error("tally flush failed", zap.String("path", s.Tally.Path()), zap.Error(err))
		return s.Tally.Snapshot()
	}
	return counts
}

// Flushes reports how many tally flushes were attempted.
func (s *Session) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Close performs the final tally flush, writes the session summary, closes
// the run log and mirrors the logs. Only the first call has any effect; later
// calls return the same result.
func (s *Session) Close() (store.TallyCounts, error) {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.mu.Lock()
		s.final = s.flushLocked()
		counters := s.counters
		s.mu.Unlock()

		s.Log.writeSummary(counters)
		s.closeErr = s.Log.close()

		paths := append(s.Files.Layout.MirrorPaths(), s.Tally.Path())
		if err := store.Mirror(s.mirrorDir, paths...); err != nil {
			s.logger.Warn("log mirroring incomplete", zap.Error(err))
		}
		s.logger.Info("session closed",
			zap.Int("evaluated", counters.Evaluated),
			zap.Int("high_medium", counters.HighMedium),
			zap.Int("lifetime_total", s.final.Total()))
	})
	return s.final, s.closeErr
}

// CloseEmergency records the reason in the run log before closing.
func (s *Session) CloseEmergency(reason string) (store.TallyCounts, error) {
	if !s.Closed() {
		s.Log.Section("🛑", "Emergency Shutdown")
		s.Log.Log(reason)
	}
	return s.Close()
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	return s.closed.Load()
}
