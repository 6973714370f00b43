// Package pipeline provides the high-level orchestration of one scout run:
// query resolution, the academic and grey-literature passes, the optional
// recheck pass and the guaranteed session close.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/observability"
	"github.com/jonathan/research-scout/internal/pacing"
	"github.com/jonathan/research-scout/internal/querygen"
	"github.com/jonathan/research-scout/internal/safety"
	"github.com/jonathan/research-scout/internal/session"
	"github.com/jonathan/research-scout/internal/sources"
	"github.com/jonathan/research-scout/internal/store"
	"github.com/jonathan/research-scout/internal/triage"
	"github.com/jonathan/research-scout/internal/types"
)

// Progress steps
const (
	StepRecheck  = "recheck"
	StepQueries  = "queries"
	StepAcademic = "academic"
	StepGreyLit  = "grey_literature"
	StepClose    = "close"
	StepShutdown = "shutdown"
)

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// QueryResolver supplies the run's query set. *querygen.Generator satisfies it.
type QueryResolver interface {
	Resolve(ctx context.Context, refresh bool) (types.QuerySet, querygen.Origin)
}

// SafetyCheck is sampled at every checkpoint. *safety.Monitor satisfies it.
type SafetyCheck interface {
	Check(ctx context.Context) error
}

// Searcher is one source with its per-query result limit and the pause taken
// after each admitted item.
type Searcher struct {
	Source sources.Source
	Limit  int
	Delay  time.Duration
}

// RunOptions holds everything a run needs. Session, Triage and Queries are required.
type RunOptions struct {
	Session *session.Session
	Triage  *triage.Pipeline
	Queries QueryResolver
	Safety  SafetyCheck

	Academic []Searcher
	GreyLit  []Searcher

	Refresh       bool
	Recheck       bool
	ShutdownAfter bool
	Shutdowner    safety.Shutdowner

	Sleep      pacing.SleepFunc
	Printer    *observability.Printer
	OnProgress ProgressCallback
}

// Result summarizes a finished run.
type Result struct {
	Queries     types.QuerySet
	Origin      querygen.Origin
	Recheck     *triage.RecheckSummary
	Counters    session.Counters
	Tally       store.TallyCounts
	Emergency   bool
	ShutdownErr error
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *RunOptions, step, message string) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{Step: step, Message: message, RunID: opts.Session.ID.String()})
	}
}

// Run executes one invocation. With Recheck set and ShutdownAfter unset only
// the recheck pass runs. The session is always closed before Run returns;
// after an emergency the returned error wraps safety.ErrEmergencyShutdown.
func Run(ctx context.Context, opts RunOptions) (Result, error) {
	if opts.Session == nil || opts.Triage == nil || opts.Queries == nil {
		return Result{}, errors.New("pipeline: session, triage and queries are required")
	}
	if opts.Sleep == nil {
		opts.Sleep = pacing.Sleep
	}

	r := &runner{opts: opts, sess: opts.Session, logger: opts.Session.Logger()}
	defer r.closeIfOpen()

	res, err := r.run(ctx)
	if errors.Is(err, safety.ErrEmergencyShutdown) {
		res.Emergency = true
		// the monitor has already closed the session; Close returns its final tally
		res.Tally, _ = r.sess.Close()
		res.Counters = r.sess.Counters()
		if opts.Printer != nil {
			opts.Printer.PrintEmergency(err.Error(), res.Tally)
		}
		return res, err
	}
	if err != nil {
		return res, err
	}

	tally, closeErr := r.sess.Close()
	res.Counters = r.sess.Counters()
	res.Tally = tally
	emitProgress(&opts, StepClose, fmt.Sprintf("%d evaluated this run", res.Counters.Evaluated))
	if opts.Printer != nil {
		opts.Printer.PrintSessionSummary(res.Counters)
		opts.Printer.PrintLifetimeTally(tally)
	}
	if closeErr != nil {
		r.logger.Error("session close incomplete", zap.Error(closeErr))
	}

	if opts.ShutdownAfter && opts.Shutdowner != nil {
		emitProgress(&opts, StepShutdown, "shutting down after run")
		r.logger.Info("shutting down after run")
		if err := opts.Shutdowner.Shutdown(ctx); err != nil {
			r.logger.Error("shutdown command failed", zap.Error(err))
			res.ShutdownErr = err
		}
	}
	return res, nil
}

type runner struct {
	opts   RunOptions
	sess   *session.Session
	logger *zap.Logger
}

func (r *runner) closeIfOpen() {
	if r.sess.Closed() {
		return
	}
	if _, err := r.sess.Close(); err != nil {
		r.logger.Error("session close incomplete", zap.Error(err))
	}
}

func (r *runner) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.opts.Safety == nil {
		return nil
	}
	return r.opts.Safety.Check(ctx)
}

func (r *runner) run(ctx context.Context) (Result, error) {
	var res Result

	if r.opts.Recheck {
		if err := r.checkpoint(ctx); err != nil {
			return res, err
		}
		emitProgress(&r.opts, StepRecheck, "rechecking LOW verdicts")
		summary, err := r.opts.Triage.Recheck(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("recheck failed", zap.Error(err))
		}
		res.Recheck = &summary
		if r.opts.Printer != nil {
			r.opts.Printer.PrintRecheckSummary(summary)
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !r.opts.ShutdownAfter {
			return res, nil
		}
	}

	if err := r.checkpoint(ctx); err != nil {
		return res, err
	}
	qs, origin := r.opts.Queries.Resolve(ctx, r.opts.Refresh)
	res.Queries, res.Origin = qs, origin
	r.sess.Log.Logf("[*] Using %d academic and %d grey-literature queries (%s).",
		len(qs.ScholarQueries), len(qs.GreyLitQueries), origin)
	emitProgress(&r.opts, StepQueries, fmt.Sprintf("queries from %s", origin))
	if r.opts.Printer != nil {
		r.opts.Printer.PrintQuerySet(qs, string(origin))
	}

	r.sess.Log.Section("🎓", "Academic Pass")
	emitProgress(&r.opts, StepAcademic, "academic pass")
	if err := r.pass(ctx, qs.ScholarQueries, r.opts.Academic); err != nil {
		return res, err
	}

	r.sess.Log.Section("🌐", "Grey Literature Pass")
	emitProgress(&r.opts, StepGreyLit, "grey-literature pass")
	if err := r.pass(ctx, qs.GreyLitQueries, r.opts.GreyLit); err != nil {
		return res, err
	}
	return res, nil
}

// pass runs every query against every searcher. Items admitted for a query
// are classified together once all searchers have answered it.
func (r *runner) pass(ctx context.Context, queries []string, searchers []Searcher) error {
	for _, query := range queries {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
		r.sess.Log.Logf("[*] Query: %s", query)

		var batch []types.Item
		for _, s := range searchers {
			items, err := s.Source.Search(ctx, query, s.Limit)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.sess.Log.Logf("[!] %s search failed: %v", s.Source.Name(), err)
				r.logger.Warn("source failed", zap.String("source", s.Source.Name()), zap.String("query", query), zap.Error(err))
				continue
			}
			for _, item := range items {
				if !r.opts.Triage.Admit(item) {
					continue
				}
				batch = append(batch, item)
				if err := r.opts.Sleep(ctx, s.Delay); err != nil {
					return err
				}
			}
		}

		r.opts.Triage.ProcessBatch(ctx, batch)
	}
	return nil
}
