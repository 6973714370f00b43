package triage

import (
	"context"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/notify"
	"github.com/jonathan/research-scout/internal/types"
)

// RecheckSummary reports a recheck pass.
type RecheckSummary struct {
	Checked  int
	Upgraded int
	StillLow int
	Upgrades []types.DiscoveryRecord
}

// Recheck re-evaluates every historical LOW row that has no correction yet
// under the current rules. Upgrades are appended as correction rows and
// notified even though the link is already in the ledger. Existing rows are
// never modified.
func (p *Pipeline) Recheck(ctx context.Context) (RecheckSummary, error) {
	var summary RecheckSummary

	lows, err := p.sess.Files.Ledger.LowRecords()
	if err != nil {
		return summary, err
	}

	p.sess.Log.Section("♻️", "Recheck of historical LOW verdicts")
	p.sess.Log.Logf("[*] Rechecking %d LOW entries...", len(lows))
	defer p.sess.FlushTally()

	for _, old := range lows {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Checked++

		item := types.Item{Title: old.Title, Link: old.Link, Snippet: old.Title, Source: "recheck"}
		if p.enricher != nil && !p.enricher.Enrich(ctx, &item) {
			p.logger.Debug("recheck without full text", zap.String("link", old.Link))
		}

		v := p.confirm.Confirm(ctx, item.Title, item.Snippet)
		if Route(v.Relevance) != OutcomeAccept {
			summary.StillLow++
			p.sess.Log.Logf("  -> still %s: %s", types.RelevanceLow, truncate(old.Title, 50))
			continue
		}

		rec := types.DiscoveryRecord{
			Title:      old.Title,
			Link:       old.Link,
			Relevance:  v.Relevance,
			Rationale:  v.Rationale,
			Correction: true,
		}
		if err := p.sess.Files.Ledger.RecordCorrection(rec); err != nil {
			p.logger.Error("correction write failed", zap.String("link", rec.Link), zap.Error(err))
			summary.StillLow++
			continue
		}
		summary.Upgraded++
		summary.Upgrades = append(summary.Upgrades, rec)
		p.sess.Reclassify(types.RelevanceLow, v.Relevance)
		p.sess.Log.Logf("  -> ⬆️ upgraded to %s %s: %s", v.Relevance.Badge(), v.Relevance, truncate(old.Title, 50))

		if p.notifier != nil && !p.notifier.Send(ctx, notify.FormatAlert(rec)) {
			p.logger.Warn("upgrade notification not delivered", zap.String("link", rec.Link))
		}
		if p.memory != nil {
			p.memory.RememberDiscovery(ctx, rec, "recheck")
		}
	}

	p.sess.Log.Logf("[+] Recheck complete: %d upgraded, %d still LOW.", summary.Upgraded, summary.StillLow)
	return summary, nil
}
