package store

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/jonathan/research-scout/internal/types"
)

// TallyCounts is the persisted lifetime verdict tally.
type TallyCounts struct {
	High          int    `json:"HIGH"`
	Medium        int    `json:"MEDIUM"`
	Low           int    `json:"LOW"`
	SilentAnomaly int    `json:"SILENT_ANOMALY"`
	LastUpdated   string `json:"last_updated,omitempty"`
}

// Total is the number of tallied verdicts.
func (c TallyCounts) Total() int {
	return c.High + c.Medium + c.Low + c.SilentAnomaly
}

func (c *TallyCounts) field(rel types.Relevance) *int {
	switch rel {
	case types.RelevanceHigh:
		return &c.High
	case types.RelevanceMedium:
		return &c.Medium
	case types.RelevanceLow:
		return &c.Low
	case types.RelevanceSilentAnomaly:
		return &c.SilentAnomaly
	}
	return nil
}

// Tally accumulates session deltas and merges them into the file on Flush.
// Pending deltas survive a failed flush and are retried on the next one.
type Tally struct {
	path    string
	now     func() time.Time
	pending map[types.Relevance]int
}

// NewTally returns a tally backed by path. The file is created on first flush.
func NewTally(path string) *Tally {
	return &Tally{path: path, now: time.Now, pending: make(map[types.Relevance]int)}
}

// Path returns the tally file location.
func (t *Tally) Path() string { return t.path }

// Add records a delta for rel. Negative deltas are only produced by recheck
// reclassification. IGNORE and unknown values are not tallied.
func (t *Tally) Add(rel types.Relevance, delta int) {
	var probe TallyCounts
	if probe.field(rel) == nil || delta == 0 {
		return
	}
	t.pending[rel] += delta
}

// Pending returns the deltas not yet persisted.
func (t *Tally) Pending() map[types.Relevance]int {
	out := make(map[types.Relevance]int, len(t.pending))
	for k, v := range t.pending {
		out[k] = v
	}
	return out
}

// ErrMalformed marks a persisted file that exists but does not decode.
var ErrMalformed = errors.New("malformed file")

// Load reads the persisted counts. A missing file is all zeros. A malformed
// one also reads as zeros but is reported so the caller can log it; the next
// Flush replaces it.
func (t *Tally) Load() (TallyCounts, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return TallyCounts{}, nil
	}
	if err != nil {
		return TallyCounts{}, &Error{Path: t.path, Message: "failed to read tally", Cause: err}
	}
	var c TallyCounts
	if err := json.Unmarshal(data, &c); err != nil {
		return TallyCounts{}, &Error{Path: t.path, Message: "malformed tally", Cause: errors.Join(ErrMalformed, err)}
	}
	return c, nil
}

// Snapshot is the persisted counts plus pending deltas, without writing.
func (t *Tally) Snapshot() TallyCounts {
	c, _ := t.Load()
	t.merge(&c)
	return c
}

// Flush merges pending deltas into the file with an atomic replace.
func (t *Tally) Flush() (TallyCounts, error) {
	c, err := t.Load()
	if err != nil && !errors.Is(err, ErrMalformed) {
		// never overwrite a file that exists but could not be read
		return TallyCounts{}, err
	}

	t.merge(&c)
	c.LastUpdated = t.now().Format("2006-01-02 15:04")

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return TallyCounts{}, &Error{Path: t.path, Message: "failed to encode tally", Cause: err}
	}
	if err := WriteFileAtomic(t.path, data, 0o644); err != nil {
		return TallyCounts{}, err
	}

	t.pending = make(map[types.Relevance]int)
	return c, nil
}

func (t *Tally) merge(c *TallyCounts) {
	for rel, delta := range t.pending {
		if f := c.field(rel); f != nil {
			*f += delta
			if *f < 0 {
				*f = 0
			}
		}
	}
}
