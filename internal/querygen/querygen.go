// Package querygen produces the run's search queries: the cached set when
// present, otherwise a fresh set brainstormed from triage memory, otherwise a
// fixed master set. Resolve always returns a usable set.
package querygen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/llm"
	"github.com/jonathan/research-scout/internal/prompts"
	"github.com/jonathan/research-scout/internal/schemas"
	"github.com/jonathan/research-scout/internal/store"
	"github.com/jonathan/research-scout/internal/types"
)

// DefaultTimeout bounds the brainstorm request.
const DefaultTimeout = 120 * time.Second

// defaultContext is used when no memory is configured.
const defaultContext = "No prior triage data available."

// Origin says where a resolved query set came from.
type Origin string

const (
	OriginCache     Origin = "cache"
	OriginGenerated Origin = "generated"
	OriginFallback  Origin = "fallback"
)

// MasterQueries returns the hardcoded fallback set.
func MasterQueries() types.QuerySet {
	return types.QuerySet{
		ScholarQueries: []string{
			`"critical infrastructure" AND ("safety over security" OR "life-safety") AND (ICS OR SCADA OR OT) AND cybersecurity`,
			`"break-glass" OR "emergency override" OR "fail-open" AND ("industrial control" OR "operational technology") AND (safety AND security)`,
			`(NIST OR ISO OR FEMA) AND "dynamic risk" AND ("cyber-physical" OR "resilience") AND ("emergency management" OR "disaster response")`,
		},
		GreyLitQueries: []string{
			`site:nist.gov "NIST 800-82" ("safety over security" OR "ICS cybersecurity guidance")`,
			`site:fema.gov "FEMA Lifelines" ("cyber dependency" OR "resilience planning") "critical infrastructure"`,
			`site:cisa.gov OR site:energy.gov ("OT security" OR "industrial control system safety") "risk management"`,
		},
	}
}

// Memory supplies brainstorm context. *memory.Memory satisfies it.
type Memory interface {
	IngestTriageEntries(ctx context.Context, headings []string) (int, error)
	RecentContext(ctx context.Context) (string, error)
}

// HeadingSource lists triage and rejection headings to ingest before asking
// memory for context.
type HeadingSource func() ([]string, error)

// Options configures a Generator.
type Options struct {
	Cache    *store.QueryCache
	Memory   Memory
	Headings HeadingSource
	Timeout  time.Duration
}

// Generator resolves the query set for one run.
type Generator struct {
	client   llm.Client
	cache    *store.QueryCache
	memory   Memory
	headings HeadingSource
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a Generator. client and Options.Memory may be nil.
func New(client llm.Client, opts Options, logger *zap.Logger) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:   client,
		cache:    opts.Cache,
		memory:   opts.Memory,
		headings: opts.Headings,
		timeout:  opts.Timeout,
		logger:   logger,
	}
}

// Resolve returns the cached set unless refresh is set or the cache is
// unusable, then tries to generate and cache a new set. Every failure falls
// through to MasterQueries, which is never cached.
func (g *Generator) Resolve(ctx context.Context, refresh bool) (types.QuerySet, Origin) {
	if !refresh && g.cache != nil {
		qs, err := g.cache.Load()
		if err == nil {
			g.logger.Info("using cached queries", zap.String("generated_on", qs.GeneratedOn))
			return qs, OriginCache
		}
		// a bare ErrNoCache means the file is simply absent
		if err != store.ErrNoCache { //nolint:errorlint
			g.logger.Warn("query cache unusable", zap.Error(err))
		}
	}

	qs, err := g.generate(ctx)
	if err != nil {
		g.logger.Warn("query generation failed, falling back to master queries", zap.Error(err))
		return MasterQueries(), OriginFallback
	}

	if g.cache != nil {
		saved, err := g.cache.Save(qs)
		if err != nil {
			g.logger.Error("query cache write failed", zap.Error(err))
		}
		qs = saved
	}
	return qs, OriginGenerated
}

func (g *Generator) generate(ctx context.Context) (types.QuerySet, error) {
	if g.client == nil {
		return types.QuerySet{}, errors.New("no brainstorm model configured")
	}

	brainstormContext, err := g.context(ctx)
	if err != nil {
		return types.QuerySet{}, fmt.Errorf("context retrieval: %w", err)
	}

	prompt := prompts.Format(prompts.MustGet(prompts.TriageFile, prompts.KeyGenerateQuery), map[string]string{
		"Context": brainstormContext,
	})

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	raw, err := g.client.GenerateJSON(callCtx, prompt, llm.TierAdvanced)
	if err != nil {
		return types.QuerySet{}, fmt.Errorf("brainstorm request: %w", err)
	}

	return ParseQuerySet(raw)
}

func (g *Generator) context(ctx context.Context) (string, error) {
	if g.memory == nil {
		return defaultContext, nil
	}
	if g.headings != nil {
		headings, err := g.headings()
		if err != nil {
			return "", err
		}
		n, err := g.memory.IngestTriageEntries(ctx, headings)
		if err != nil {
			return "", err
		}
		g.logger.Info("ingested triage entries", zap.Int("count", n))
	}
	return g.memory.RecentContext(ctx)
}

// ParseQuerySet validates a brainstorm response: JSON with two non-empty
// lists of non-blank queries. Reasoning blocks and code fences are removed first.
func ParseQuerySet(raw string) (types.QuerySet, error) {
	cleaned := llm.CleanJSONBlock(llm.StripThinking(raw))
	if err := schemas.ValidateQuerySet(cleaned); err != nil {
		return types.QuerySet{}, err
	}

	var qs types.QuerySet
	if err := json.Unmarshal([]byte(cleaned), &qs); err != nil {
		return types.QuerySet{}, fmt.Errorf("failed to decode query set: %w", err)
	}
	qs.GeneratedOn = ""
	qs.ScholarQueries = trimAll(qs.ScholarQueries)
	qs.GreyLitQueries = trimAll(qs.GreyLitQueries)
	if qs.Empty() {
		return types.QuerySet{}, errors.New("query set has an empty list")
	}
	return qs, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
