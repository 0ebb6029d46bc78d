package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/mms/internal/condition"
	"github.com/roach88/mms/internal/events"
	"github.com/roach88/mms/internal/journal"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/sparql"
	"github.com/roach88/mms/internal/store"
)

// Phase names used for metrics and logs.
const (
	PhaseApply   = "apply"
	PhaseVerify  = "verify"
	PhaseCleanup = "cleanup"
	PhaseRead    = "read"
)

// DefaultCleanupTimeout bounds the detached cleanup round trip.
const DefaultCleanupTimeout = 10 * time.Second

// Recorder journals decided transactions. Implemented by *journal.Journal.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Observer receives executor metrics. Implemented by *metrics.Metrics.
type Observer interface {
	ObservePhase(operation, phase string, d time.Duration)
	ObserveOutcome(operation, outcome, category string)
	ObserveSideChannelFailure(channel string)
}

type nopObserver struct{}

func (nopObserver) ObservePhase(string, string, time.Duration) {}
func (nopObserver) ObserveOutcome(string, string, string) {}
func (nopObserver) ObserveSideChannelFailure(string) {}

// Executor runs plans against a store.
//
// Thread-safety: Executor holds no per-request state and is safe for
// concurrent use. Each Plan must be executed at most once.
type Executor struct {
	store          store.Store
	logger         *slog.Logger
	journal        Recorder
	publisher      events.Publisher
	metrics        Observer
	now            func() time.Time
	cleanupTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(x *Executor) {
		x.logger = l
	}
}

// WithJournal records every decided transaction.
func WithJournal(r Recorder) Option {
	return func(x *Executor) {
		x.journal = r
	}
}

// WithPublisher publishes committed transactions.
func WithPublisher(p events.Publisher) Option {
	return func(x *Executor) {
		x.publisher = p
	}
}

// WithMetrics reports phase durations and outcomes.
func WithMetrics(o Observer) Option {
	return func(x *Executor) {
		x.metrics = o
	}
}

// WithClock replaces time.Now for durations and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(x *Executor) {
		x.now = now
	}
}

// WithCleanupTimeout bounds the cleanup round trip.
func WithCleanupTimeout(d time.Duration) Option {
	return func(x *Executor) {
		x.cleanupTimeout = d
	}
}

// New creates an Executor over s.
func New(s store.Store, opts ...Option) *Executor {
	x := &Executor{
		store:          s,
		logger:         slog.Default(),
		publisher:      events.Nop{},
		metrics:        nopObserver{},
		now:            time.Now,
		cleanupTimeout: DefaultCleanupTimeout,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs plan through apply, verify and cleanup and returns the
// committed result or the error explaining why it did not commit.
//
// Errors are always *mms.Error. A Validation error means nothing was sent
// to the store. A StoreFault after apply was sent means the update may have
// taken effect; callers treat apply as at-least-once.
func (x *Executor) Execute(ctx context.Context, plan Plan) (*Result, error) {
	tx := plan.Txn
	started := x.now()
	logger := x.logger.With(
		"operation", plan.Operation,
		"transaction", tx.ID(),
		"actor", tx.Actor(),
		"scope", tx.Scope().String(),
	)

	update, err := tx.Render(plan.Update, plan.Params)
	if err != nil {
		x.finish(ctx, plan, started, nil, err, logger)
		return nil, err
	}
	verify, err := tx.Render(verifyQuery(plan), plan.Params)
	if err != nil {
		x.finish(ctx, plan, started, nil, err, logger)
		return nil, err
	}

	res, passed, err := x.applyAndVerify(ctx, plan, update, verify, logger)
	x.cleanup(ctx, plan, logger)
	x.finish(ctx, plan, started, passed, err, logger)
	return res, err
}

func (x *Executor) applyAndVerify(ctx context.Context, plan Plan, update, verify string, logger *slog.Logger) (*Result, []string, error) {
	tx := plan.Txn

	logger.Debug("apply", "update", update)
	start := x.now()
	err := x.store.Update(ctx, update)
	x.metrics.ObservePhase(plan.Operation, PhaseApply, x.now().Sub(start))
	if err != nil {
		logger.Error("apply failed", "error", err)
		return nil, nil, mms.NewStoreFault(fmt.Errorf("apply: %w", err))
	}

	logger.Debug("verify", "query", verify)
	start = x.now()
	g, err := x.store.Construct(ctx, verify)
	x.metrics.ObservePhase(plan.Operation, PhaseVerify, x.now().Sub(start))
	if err != nil {
		logger.Error("verify failed", "error", err)
		return nil, nil, mms.NewStoreFault(fmt.Errorf("verify: %w", err))
	}

	passed := passedKeys(g, plan.Conditions)
	mt := tx.IRI("mt:")
	committed := g.Has(mt, mms.RDFType, mms.ClassTransaction) &&
		(plan.Committed == nil || plan.Committed(g, tx))
	if committed {
		logger.Debug("committed", "triples", g.Len())
		return &Result{
			TransactionID: tx.ID(),
			CommitID:      tx.CommitID(),
			Graph:         g.WithoutSubjects(mt, mms.InspectSubject),
			Passed:        passed,
		}, passed, nil
	}

	err = plan.Conditions.Explain(keySet(passed), tx.Prefixes())
	if err == nil {
		err = mms.NewStateChanged("The target changed while the request was processed. Re-read it and retry.")
	}
	logger.Info("transaction failed", "error", err, "passed", passed)
	return nil, passed, err
}

// cleanup deletes this transaction's audit node. It runs even when the
// caller's context is done, because apply may already have taken effect.
func (x *Executor) cleanup(ctx context.Context, plan Plan, logger *slog.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), x.cleanupTimeout)
	defer cancel()

	text, err := plan.Txn.Render(cleanupUpdate(), nil)
	if err == nil {
		start := x.now()
		err = x.store.Update(cctx, text)
		x.metrics.ObservePhase(plan.Operation, PhaseCleanup, x.now().Sub(start))
	}
	if err != nil {
		logger.Warn("cleanup failed", "error", err)
		x.metrics.ObserveSideChannelFailure(PhaseCleanup)
	}
}

// finish reports a decided transaction to the side channels.
func (x *Executor) finish(ctx context.Context, plan Plan, started time.Time, passed []string, err error, logger *slog.Logger) {
	tx := plan.Txn
	outcome := journal.OutcomeCommitted
	if err != nil {
		outcome = journal.OutcomeFailed
	}
	category := mms.CategoryOf(err)
	x.metrics.ObserveOutcome(plan.Operation, string(outcome), string(category))

	// Side channels outlive the caller's context, like cleanup.
	sctx := context.WithoutCancel(ctx)

	if x.journal != nil {
		req := tx.Request()
		entry := journal.Entry{
			ID:        tx.ID(),
			Operation: plan.Operation,
			Actor:     tx.Actor(),
			Scope:     tx.Scope(),
			Method:    req.Method,
			Path:      req.Path,
			Outcome:   outcome,
			Category:  category,
			Reason:    mms.ReasonOf(err),
			Passed:    passed,
			StartedAt: started,
			Duration:  x.now().Sub(started),
		}
		if err != nil {
			entry.Message = mms.PublicMessage(err)
		}
		if jerr := x.journal.Record(sctx, entry); jerr != nil {
			logger.Warn("journal write failed", "error", jerr)
			x.metrics.ObserveSideChannelFailure("journal")
		}
	}

	if err == nil {
		e := events.Event{
			Operation:     plan.Operation,
			TransactionID: tx.ID(),
			CommitID:      tx.CommitID(),
			Actor:         tx.Actor(),
			Scope:         tx.Scope(),
			Time:          tx.Now(),
		}
		if perr := x.publisher.Publish(sctx, e); perr != nil {
			logger.Warn("event publish failed", "error", perr)
			x.metrics.ObserveSideChannelFailure("events")
		}
	}
}

// Read runs a single guarded CONSTRUCT. Nothing is written, so there is no
// audit node and no cleanup.
func (x *Executor) Read(ctx context.Context, plan ReadPlan) (*Result, error) {
	tx := plan.Txn
	logger := x.logger.With(
		"operation", plan.Operation,
		"transaction", tx.ID(),
		"actor", tx.Actor(),
		"scope", tx.Scope().String(),
	)

	text, err := tx.Render(readQuery(plan), plan.Params)
	if err != nil {
		return nil, err
	}

	start := x.now()
	g, err := x.store.Construct(ctx, text)
	x.metrics.ObservePhase(plan.Operation, PhaseRead, x.now().Sub(start))
	if err != nil {
		logger.Error("read failed", "error", err)
		err = mms.NewStoreFault(fmt.Errorf("read: %w", err))
		x.metrics.ObserveOutcome(plan.Operation, string(journal.OutcomeFailed), string(mms.CategoryStoreFault))
		return nil, err
	}

	passed := passedKeys(g, plan.Conditions)
	out := g.WithoutSubjects(mms.InspectSubject)

	err = plan.Conditions.Explain(keySet(passed), tx.Prefixes())
	if err == nil {
		found := out.Len() > 0
		if plan.Found != nil {
			found = plan.Found(out, tx)
		}
		if !found {
			err = mms.NewConditionError(mms.ReasonNotFound, "", "The requested resource was not found.")
		}
	}
	if err != nil {
		logger.Debug("read refused", "error", err)
		x.metrics.ObserveOutcome(plan.Operation, string(journal.OutcomeFailed), string(mms.CategoryOf(err)))
		return nil, err
	}

	x.metrics.ObserveOutcome(plan.Operation, string(journal.OutcomeCommitted), "")
	return &Result{
		TransactionID: tx.ID(),
		CommitID:      tx.CommitID(),
		Graph:         out,
		Passed:        passed,
	}, nil
}

// verifyQuery unions the audit node, the plan's reconstruction and one
// diagnostic branch per condition.
func verifyQuery(plan Plan) string {
	return sparql.NewQuery().
		Construct(func(p *sparql.Pattern) {
			p.Rawf("mt: %s %s .", txnPredicateVar, txnObjectVar)
			p.Rawf("<%s> <%s> %s .", mms.InspectSubject, mms.InspectPass, condition.PassVar)
			if plan.Construct != nil {
				plan.Construct(p)
			}
		}).
		Where(func(p *sparql.Pattern) {
			branches := []*sparql.Pattern{sparql.Build(func(b *sparql.Pattern) {
				b.Graph(auditGraph(), func(g *sparql.Pattern) {
					g.Rawf("mt: %s %s .", txnPredicateVar, txnObjectVar)
				})
			})}
			if plan.Where != nil {
				branches = append(branches, sparql.Build(plan.Where))
			}
			p.Union(append(branches, plan.Conditions.Inspect()...)...)
		}).
		String()
}

// readQuery unions the guarded selection with the diagnostic branches.
func readQuery(plan ReadPlan) string {
	return sparql.NewQuery().
		Construct(func(p *sparql.Pattern) {
			p.Rawf("<%s> <%s> %s .", mms.InspectSubject, mms.InspectPass, condition.PassVar)
			if plan.Construct != nil {
				plan.Construct(p)
			}
		}).
		Where(func(p *sparql.Pattern) {
			guarded := sparql.Build(func(b *sparql.Pattern) {
				plan.Conditions.Guard(b)
				if plan.Where != nil {
					plan.Where(b)
				}
			})
			p.Union(append([]*sparql.Pattern{guarded}, plan.Conditions.Inspect()...)...)
		}).
		String()
}

func cleanupUpdate() string {
	return sparql.NewUpdate(nil).
		DeleteWhere(func(p *sparql.Pattern) {
			p.Graph(auditGraph(), func(g *sparql.Pattern) {
				g.Raw("mt: ?__mms_p ?__mms_o .")
			})
		}).
		String()
}

// passedKeys returns the condition keys reported by the diagnostic
// branches, in declaration order.
func passedKeys(g *store.Graph, conds condition.Group) []string {
	reported := map[string]bool{}
	for _, o := range g.Objects(mms.InspectSubject, mms.InspectPass) {
		reported[o.String()] = true
	}
	passed := []string{}
	for _, key := range conds.Keys() {
		if reported[key] {
			passed = append(passed, key)
		}
	}
	return passed
}

func keySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
