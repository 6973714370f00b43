package triage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/notify"
	"github.com/jonathan/research-scout/internal/session"
	"github.com/jonathan/research-scout/internal/types"
)

// Outcome is one of the three disjoint results of routing a final verdict.
type Outcome string

const (
	OutcomeAccept Outcome = "accept"
	OutcomeReject Outcome = "reject"
	OutcomeIgnore Outcome = "ignore"
)

// Route maps a final verdict to its outcome. Anything that is not an explicit
// accept or ignore is rejected so it stays visible in the logs.
func Route(rel types.Relevance) Outcome {
	switch rel {
	case types.RelevanceHigh, types.RelevanceMedium:
		return OutcomeAccept
	case types.RelevanceIgnore:
		return OutcomeIgnore
	default:
		return OutcomeReject
	}
}

// Router applies outcomes: notification, ledger write, section log and memory.
type Router struct {
	sess     *session.Session
	notifier Notifier
	memory   Memory
	logger   *zap.Logger
}

// NewRouter creates a Router. notifier and memory may be nil.
func NewRouter(sess *session.Session, notifier Notifier, memory Memory) *Router {
	return &Router{sess: sess, notifier: notifier, memory: memory, logger: sess.Logger()}
}

// Apply routes item under v and returns the outcome taken.
func (r *Router) Apply(ctx context.Context, item types.Item, v types.Verdict) Outcome {
	outcome := Route(v.Relevance)
	r.sess.Log.Logf("  -> [Final] %s %s: %s", v.Relevance.Badge(), v.Relevance, truncate(item.Title, 50))

	switch outcome {
	case OutcomeIgnore:
		r.sess.Log.Logf("  -> Skipping out-of-scope source: %s", truncate(item.Title, 40))
	case OutcomeAccept:
		rec := record(item, v.Relevance, v.Rationale)
		if !r.sess.Files.Ledger.IsNew(item.Link) {
			r.logger.Debug("accept for already recorded link", zap.String("link", item.Link))
			return outcome
		}
		if r.notifier != nil && !r.notifier.Send(ctx, notify.FormatAlert(rec)) {
			r.logger.Warn("notification not delivered, discovery recorded anyway", zap.String("link", item.Link))
		}
		r.persist(ctx, rec, item.Source)
	case OutcomeReject:
		rel, rationale := v.Relevance, v.Rationale
		if !rel.Valid() {
			rationale = fmt.Sprintf("(unrecognized verdict %q) %s", string(rel), rationale)
			rel = types.RelevanceLow
		}
		if !r.sess.Files.Ledger.IsNew(item.Link) {
			return outcome
		}
		if err := r.sess.Files.Rejected.AppendVerdict(rel, item.Title, item.Link, rationale); err != nil {
			r.logger.Error("rejection log write failed", zap.Error(err))
		}
		r.persist(ctx, record(item, rel, rationale), item.Source)
	}
	return outcome
}

// TriageReject records a batch-stage LOW or SILENT_ANOMALY verdict.
func (r *Router) TriageReject(ctx context.Context, item types.Item, v types.Verdict) {
	if !r.sess.Files.Ledger.IsNew(item.Link) {
		return
	}
	if err := r.sess.Files.Triage.AppendVerdict(v.Relevance, item.Title, item.Link, v.Rationale); err != nil {
		r.logger.Error("triage log write failed", zap.Error(err))
	}
	if r.persist(ctx, record(item, v.Relevance, v.Rationale), item.Source) {
		r.sess.CountTriage()
	}
}

// persist appends the ledger row, counts it and remembers it. It reports
// whether a new row was written.
func (r *Router) persist(ctx context.Context, rec types.DiscoveryRecord, source string) bool {
	written, err := r.sess.Files.Ledger.Record(rec)
	if err != nil {
		r.logger.Error("ledger write failed", zap.String("link", rec.Link), zap.Error(err))
		return false
	}
	if !written {
		return false
	}
	r.sess.Score(rec.Relevance)
	if r.memory != nil {
		r.memory.RememberDiscovery(ctx, rec, source)
	}
	return true
}

func record(item types.Item, rel types.Relevance, rationale string) types.DiscoveryRecord {
	return types.DiscoveryRecord{
		Title:     item.Title,
		Link:      item.Link,
		Relevance: rel,
		Rationale: rationale,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
