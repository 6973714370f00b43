package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/research-scout/internal/store"
	"github.com/jonathan/research-scout/internal/types"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func openTestSession(t *testing.T, mirror string) *Session {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Options{
		Layout:    store.Layout{LogsDir: filepath.Join(dir, "logs")},
		TallyPath: filepath.Join(dir, "stats", "research_verdicts.json"),
		MirrorDir: mirror,
		Now:       fixedNow,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = s.Close() })
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestOpen_InitializesLayoutAndRunLog(t *testing.T) {
	s := openTestSession(t, "")

	for _, path := range []string{
		s.Files.Layout.LedgerPath(),
		s.Files.Layout.RejectedPath(),
		s.Files.Layout.TriagePath(),
		s.Files.Layout.SievePath(),
	} {
		assert.FileExists(t, path)
	}

	log := readFile(t, s.Files.Layout.RunLogPath())
	assert.Contains(t, log, "## 🚀 Run — 2026-03-14 09:30")
	assert.Contains(t, log, s.ID.String())
}

func TestSession_CountersAndTally(t *testing.T) {
	s := openTestSession(t, "")

	s.Score(types.RelevanceHigh)
	s.Score(types.RelevanceMedium)
	s.Score(types.RelevanceLow)
	s.Score(types.RelevanceSilentAnomaly)
	s.CountTriage()
	s.CountSieve()
	s.CountSieve()

	assert.Equal(t, Counters{Evaluated: 4, HighMedium: 2, Low: 1, Triage: 1, Sieve: 2}, s.Counters())

	final, err := s.Close()
	require.NoError(t, err)
	assert.Equal(t, 1, final.High)
	assert.Equal(t, 1, final.Medium)
	assert.Equal(t, 1, final.Low)
	assert.Equal(t, 1, final.SilentAnomaly)
}

func TestSession_Reclassify(t *testing.T) {
	s := openTestSession(t, "")
	s.Score(types.RelevanceLow)
	s.FlushTally()

	s.Reclassify(types.RelevanceLow, types.RelevanceHigh)
	final, err := s.Close()
	require.NoError(t, err)

	assert.Equal(t, 0, final.Low)
	assert.Equal(t, 1, final.High)
	assert.Equal(t, 1, s.Counters().HighMedium)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s := openTestSession(t, "")
	s.Score(types.RelevanceHigh)

	first, err := s.Close()
	require.NoError(t, err)
	second, err := s.Close()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.Flushes(), "the final flush happens once")
	assert.True(t, s.Closed())

	log := readFile(t, s.Files.Layout.RunLogPath())
	assert.Equal(t, 1, strings.Count(log, "Session Summary"))
	assert.Contains(t, log, "| Total evaluated | 1 |")

	var persisted store.TallyCounts
	require.NoError(t, json.Unmarshal([]byte(readFile(t, s.Tally.Path())), &persisted))
	assert.Equal(t, 1, persisted.High)
}

func TestSession_CloseEmergency(t *testing.T) {
	s := openTestSession(t, "")
	s.Log.Section("📚", "Academic Search")

	_, err := s.CloseEmergency("temperature 93.0 >= 90.0 for 3 readings")
	require.NoError(t, err)
	_, err = s.CloseEmergency("again")
	require.NoError(t, err)

	log := readFile(t, s.Files.Layout.RunLogPath())
	assert.Equal(t, 1, strings.Count(log, "Emergency Shutdown"))
	assert.NotContains(t, log, "again")
	assert.Equal(t, 1, s.Flushes())

	// writes after close are dropped, not panics
	s.Log.Log("late line")
	assert.NotContains(t, readFile(t, s.Files.Layout.RunLogPath()), "late line")
}

func TestSession_MirrorsOnClose(t *testing.T) {
	mirror := filepath.Join(t.TempDir(), "mirror")
	s := openTestSession(t, mirror)
	s.Score(types.RelevanceLow)

	_, err := s.Close()
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(mirror, "seen_sources.md"))
	assert.FileExists(t, filepath.Join(mirror, "run_log.md"))
	assert.FileExists(t, filepath.Join(mirror, "research_verdicts.json"))
}
