// Package memory keeps the scout's vector memory: recent triage headings used
// as context for query generation, and every recorded discovery.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/types"
)

const (
	TriageCollection = "triage_memory"
	ScoutCollection  = "scout_memory"

	// DefaultContext is returned when memory holds nothing useful.
	DefaultContext = "No prior triage data available."
	// ContextProbe is the text embedded to find high-signal triage entries.
	ContextProbe = "high-signal safety security life-safety OT ICS silent anomaly"

	DefaultContextLimit = 5
	DefaultIngestLimit  = 50
	DefaultEmbedTimeout = 30 * time.Second
	DefaultStoreTimeout = 30 * time.Second
)

// Embedder turns text into a vector. langchaingo's embeddings.Embedder satisfies it.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Payload is the data stored next to a vector.
type Payload struct {
	Text      string `json:"text,omitempty"`
	Title     string `json:"title,omitempty"`
	Link      string `json:"link,omitempty"`
	Relevance string `json:"relevance,omitempty"`
	Rationale string `json:"rationale,omitempty"`
	Source    string `json:"source,omitempty"`
	Date      string `json:"date,omitempty"`
	RunID     string `json:"run_id,omitempty"`
}

// Point is one vector with its id and payload.
type Point struct {
	ID      uuid.UUID
	Vector  []float32
	Payload Payload
}

// Store is the vector database. Similarity search is its job, not ours.
type Store interface {
	Upsert(ctx context.Context, collection string, points []Point) error
	Query(ctx context.Context, collection string, vector []float32, limit int) ([]Payload, error)
	IDs(ctx context.Context, collection string) (map[uuid.UUID]struct{}, error)
}

// PointID is the stable id of a discovery: a v5 UUID of its link in the URL namespace.
func PointID(link string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link))
}

// Options configures Memory.
type Options struct {
	RunID        string
	EmbedTimeout time.Duration
	StoreTimeout time.Duration
	ContextLimit int
	IngestLimit  int
	Now          func() time.Time
}

// Memory combines an Embedder and a Store.
type Memory struct {
	store    Store
	embedder Embedder
	opts     Options
	logger   *zap.Logger
}

// New creates a Memory.
func New(store Store, embedder Embedder, opts Options, logger *zap.Logger) *Memory {
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = DefaultEmbedTimeout
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if opts.ContextLimit <= 0 {
		opts.ContextLimit = DefaultContextLimit
	}
	if opts.IngestLimit <= 0 {
		opts.IngestLimit = DefaultIngestLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{store: store, embedder: embedder, opts: opts, logger: logger}
}

func (m *Memory) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.EmbedTimeout)
	defer cancel()
	vec, err := m.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vec) == 0 {
		return nil, errors.New("embedding failed: empty vector")
	}
	return vec, nil
}

func (m *Memory) upsert(ctx context.Context, collection string, points []Point) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
	defer cancel()
	return m.store.Upsert(ctx, collection, points)
}

func (m *Memory) query(ctx context.Context, collection string, vec []float32, limit int) ([]Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
	defer cancel()
	return m.store.Query(ctx, collection, vec, limit)
}

func (m *Memory) ids(ctx context.Context, collection string) (map[uuid.UUID]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
	defer cancel()
	return m.store.IDs(ctx, collection)
}

// IngestTriageEntries embeds the most recent headings into the triage
// collection. Entries whose embedding fails are skipped.
func (m *Memory) IngestTriageEntries(ctx context.Context, headings []string) (int, error) {
	if len(headings) > m.opts.IngestLimit {
		headings = headings[len(headings)-m.opts.IngestLimit:]
	}

	points := make([]Point, 0, len(headings))
	for _, h := range headings {
		vec, err := m.embed(ctx, h)
		if err != nil {
			m.logger.Debug("triage entry not embedded", zap.Error(err))
			continue
		}
		points = append(points, Point{ID: uuid.New(), Vector: vec, Payload: Payload{Text: h}})
	}
	if len(points) == 0 {
		return 0, nil
	}
	if err := m.upsert(ctx, TriageCollection, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

// RecentContext returns the triage entries nearest to ContextProbe, one per
// line, or DefaultContext when there are none or the probe cannot be embedded.
// Store failures are returned.
func (m *Memory) RecentContext(ctx context.Context) (string, error) {
	vec, err := m.embed(ctx, ContextProbe)
	if err != nil {
		m.logger.Warn("context probe not embedded", zap.Error(err))
		return DefaultContext, nil
	}
	payloads, err := m.query(ctx, TriageCollection, vec, m.opts.ContextLimit)
	if err != nil {
		return "", err
	}

	var lines []string
	for _, p := range payloads {
		if t := strings.TrimSpace(p.Text); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) == 0 {
		return DefaultContext, nil
	}
	return strings.Join(lines, "\n"), nil
}

// RememberDiscovery upserts rec into the scout collection under PointID(link).
// Failures are logged only.
func (m *Memory) RememberDiscovery(ctx context.Context, rec types.DiscoveryRecord, source string) {
	if err := m.remember(ctx, rec, source, m.opts.RunID); err != nil {
		m.logger.Warn("discovery not remembered", zap.String("link", rec.Link), zap.Error(err))
	}
}

func (m *Memory) remember(ctx context.Context, rec types.DiscoveryRecord, source, runID string) error {
	vec, err := m.embed(ctx, rec.Title+" "+rec.Rationale)
	if err != nil {
		return err
	}
	date := rec.Date
	if date == "" {
		date = m.opts.Now().Format(time.DateOnly)
	}
	if source == "" {
		source = "unknown"
	}
	return m.upsert(ctx, ScoutCollection, []Point{{
		ID:     PointID(rec.Link),
		Vector: vec,
		Payload: Payload{
			Title:     rec.Title,
			Link:      rec.Link,
			Relevance: string(rec.Relevance),
			Rationale: rec.Rationale,
			Source:    source,
			Date:      date,
			RunID:     runID,
		},
	}})
}

// Backfill remembers historic ledger rows that are not in the scout
// collection yet and returns how many were added.
func (m *Memory) Backfill(ctx context.Context, records []types.DiscoveryRecord) (int, error) {
	existing, err := m.ids(ctx, ScoutCollection)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		id := PointID(rec.Link)
		if _, ok := existing[id]; ok {
			continue
		}
		if err := m.remember(ctx, rec, "backfill", "backfill"); err != nil {
			m.logger.Warn("backfill entry skipped", zap.String("link", rec.Link), zap.Error(err))
			continue
		}
		existing[id] = struct{}{}
		added++
	}
	return added, nil
}
