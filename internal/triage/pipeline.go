// Package triage runs candidates through the classification cascade:
// dedup gate, lexical sieve, enrichment, batch classifier, confirmation
// classifier and verdict routing. It also implements the recheck pass over
// historical LOW verdicts.
package triage

import (
	"context"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/classify"
	"github.com/jonathan/research-scout/internal/session"
	"github.com/jonathan/research-scout/internal/sieve"
	"github.com/jonathan/research-scout/internal/types"
)

// Enricher replaces an item's snippet with full text when it can.
type Enricher interface {
	Enrich(ctx context.Context, item *types.Item) bool
}

// BatchClassifier is the bulk first-pass stage.
type BatchClassifier interface {
	Classify(ctx context.Context, items []types.Item) ([]classify.BatchEntry, error)
}

// Confirmer is the authoritative per-item stage. It never fails.
type Confirmer interface {
	Confirm(ctx context.Context, title, content string) types.Verdict
}

// Notifier delivers accept events.
type Notifier interface {
	Send(ctx context.Context, message string) bool
}

// Memory remembers recorded discoveries. Implementations log their own failures.
type Memory interface {
	RememberDiscovery(ctx context.Context, rec types.DiscoveryRecord, source string)
}

// Options wires the stages. Sieve, Batch and Confirmer are required.
type Options struct {
	Sieve     *sieve.Sieve
	Enricher  Enricher
	Batch     BatchClassifier
	Confirmer Confirmer
	Notifier  Notifier
	Memory    Memory
}

// Pipeline is the per-run cascade.
type Pipeline struct {
	sess     *session.Session
	sieve    *sieve.Sieve
	enricher Enricher
	batch    BatchClassifier
	confirm  Confirmer
	notifier Notifier
	memory   Memory
	router   *Router
	logger   *zap.Logger

	// queued holds links screened in this run, so a link returned by two
	// queries is classified once even before its ledger row exists.
	queued map[string]struct{}
}

// New creates a Pipeline bound to sess.
func New(sess *session.Session, opts Options) *Pipeline {
	if opts.Sieve == nil {
		opts.Sieve = sieve.New(nil)
	}
	return &Pipeline{
		sess:     sess,
		sieve:    opts.Sieve,
		enricher: opts.Enricher,
		batch:    opts.Batch,
		confirm:  opts.Confirmer,
		notifier: opts.Notifier,
		memory:   opts.Memory,
		router:   NewRouter(sess, opts.Notifier, opts.Memory),
		logger:   sess.Logger(),
		queued:   make(map[string]struct{}),
	}
}

// Admit applies the free gates to one candidate: links already in the ledger
// or already queued this run are skipped silently, sieve failures are counted
// and written to the sieve log. It reports whether the item should be batched.
func (p *Pipeline) Admit(item types.Item) bool {
	if item.Link == "" {
		return false
	}
	if _, dup := p.queued[item.Link]; dup || !p.sess.Files.Ledger.IsNew(item.Link) {
		p.logger.Debug("already seen", zap.String("link", item.Link))
		return false
	}
	kw, ok := p.sieve.Match(item.Title, item.Snippet)
	if !ok {
		p.sess.Log.Logf("  -> ⚪ Sieve rejected: %s", truncate(item.Title, 50))
		p.sess.CountSieve()
		if err := p.sess.Files.Sieve.AppendSieveDrop(item); err != nil {
			p.logger.Error("sieve log write failed", zap.Error(err))
		}
		return false
	}
	p.logger.Debug("sieve passed", zap.String("keyword", kw), zap.String("link", item.Link))
	p.queued[item.Link] = struct{}{}
	return true
}

// Screen filters items through Admit.
func (p *Pipeline) Screen(items []types.Item) []types.Item {
	var out []types.Item
	for _, it := range items {
		if p.Admit(it) {
			out = append(out, it)
		}
	}
	return out
}

// ProcessBatch enriches and classifies admitted items. The lifetime tally is
// flushed exactly once per batch, whichever path the batch takes.
func (p *Pipeline) ProcessBatch(ctx context.Context, items []types.Item) {
	if len(items) == 0 {
		return
	}
	defer p.sess.FlushTally()

	p.sess.Log.Logf("[*] Processing batch of %d snippets through the batch classifier...", len(items))
	if p.enricher != nil {
		enriched := 0
		for i := range items {
			if p.enricher.Enrich(ctx, &items[i]) {
				enriched++
			}
		}
		p.sess.Log.Logf("[Hub] Enriched %d/%d items with full text (%d fallback to snippet).",
			enriched, len(items), len(items)-enriched)
	}

	entries, err := p.batch.Classify(ctx, items)
	if err != nil {
		p.sess.Log.Log("[!] Batch classifier unavailable. Falling back to individual confirmation...")
		p.logger.Warn("batch stage failed", zap.Int("items", len(items)), zap.Error(err))
		for _, item := range items {
			p.confirmAndRoute(ctx, item)
		}
		return
	}

	answered := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.Index < 0 || e.Index >= len(items) || answered[e.Index] {
			continue
		}
		answered[e.Index] = true
		item := items[e.Index]
		p.sess.Log.Logf("  -> [Bouncer] %s %s: %s", e.Verdict.Relevance.Badge(), e.Verdict.Relevance, truncate(item.Title, 50))

		switch e.Verdict.Relevance {
		case types.RelevanceLow, types.RelevanceSilentAnomaly:
			p.router.TriageReject(ctx, item, e.Verdict)
		default:
			p.confirmAndRoute(ctx, item)
		}
	}

	if missing := len(items) - len(answered); missing > 0 {
		p.logger.Info("batch response omitted items; they stay unevaluated", zap.Int("missing", missing))
	}
}

func (p *Pipeline) confirmAndRoute(ctx context.Context, item types.Item) Outcome {
	p.sess.Log.Logf("  -> [Confirming] %s...", truncate(item.Title, 50))
	v := p.confirm.Confirm(ctx, item.Title, item.Snippet)
	return p.router.Apply(ctx, item, v)
}
