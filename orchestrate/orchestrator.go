// Package orchestrate drives the decision cycle: monitor the business
// snapshot, classify the detected events, split them between autonomous
// execution and human escalation, execute the approved actions, and append
// the audit trail. It also owns the continuous-run loop.
package orchestrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/autonomos/orchestrator/classify"
	"github.com/autonomos/orchestrator/domain"
	"github.com/autonomos/orchestrator/executor"
	"github.com/autonomos/orchestrator/monitor"
	"github.com/autonomos/orchestrator/notify"
	"github.com/autonomos/orchestrator/policy"
	"github.com/autonomos/orchestrator/store"
	"github.com/autonomos/orchestrator/vendorapi"
)

// Options bundles the orchestrator's collaborators and loop settings.
type Options struct {
	Sources     []monitor.Source
	Classifier  classify.Classifier
	CanAct      policy.Predicate
	Executor    *executor.Executor
	Vendors     vendorapi.Directory
	Store       store.Store
	Notifier    notify.Notifier
	Logger      *zap.Logger
	Interval    time.Duration
	Backoff     time.Duration
	Concurrency int
	SpendLimit  float64
	Initial     *domain.BusinessSnapshot
}

// Orchestrator runs decision cycles over a business snapshot. The snapshot
// is replaced wholesale at the start of each cycle and committed back only
// after the cycle's record is appended, so a failed cycle leaves no partial
// mutations behind.
type Orchestrator struct {
	sources     []monitor.Source
	classifier  classify.Classifier
	canAct      policy.Predicate
	executor    *executor.Executor
	vendors     vendorapi.Directory
	store       store.Store
	notifier    notify.Notifier
	logger      *zap.Logger
	interval    time.Duration
	backoff     time.Duration
	concurrency int
	spendLimit  float64
	now         func() time.Time

	// runMu serializes whole cycles: the loop and the on-demand trigger
	// never run concurrently.
	runMu sync.Mutex

	mu    sync.Mutex
	state *domain.BusinessSnapshot
}

// New builds an orchestrator from opts, filling in defaults for anything
// left zero.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Minute
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Initial == nil {
		opts.Initial = &domain.BusinessSnapshot{
			InventoryLevels:   map[string]float64{},
			SalesVelocity:     map[string]float64{},
			VendorPerformance: map[string]float64{},
			StaffAvailability: map[string][]string{},
		}
	}
	return &Orchestrator{
		sources:     opts.Sources,
		classifier:  opts.Classifier,
		canAct:      opts.CanAct,
		executor:    opts.Executor,
		vendors:     opts.Vendors,
		store:       opts.Store,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		interval:    opts.Interval,
		backoff:     opts.Backoff,
		concurrency: opts.Concurrency,
		spendLimit:  opts.SpendLimit,
		now:         time.Now,
		state:       opts.Initial,
	}
}

// SetNow overrides the clock. Test hook.
func (o *Orchestrator) SetNow(now func() time.Time) { o.now = now }

// Snapshot returns a copy of the current business snapshot.
func (o *Orchestrator) Snapshot() *domain.BusinessSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// SetSnapshot replaces the current business snapshot. Used when seeding
// state from an external feed and by tests.
func (o *Orchestrator) SetSnapshot(snap *domain.BusinessSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = snap.Clone()
}

// RunCycle executes one monitor, analyze, decide, execute, log pass and
// returns the appended cycle record. Mutations from executed actions are
// applied to the working snapshot immediately, so later actions in the same
// cycle observe earlier ones; the working snapshot replaces the shared one
// only after the record is appended.
func (o *Orchestrator) RunCycle(ctx context.Context) (*domain.CycleRecord, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	seq, err := o.store.NextCycleSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("next cycle seq: %w", err)
	}
	snap := o.Snapshot()

	events, err := o.runMonitors(ctx, snap)
	if err != nil {
		return nil, err
	}
	classified, err := o.classifyAll(ctx, events, snap)
	if err != nil {
		return nil, err
	}

	autonomous, escalations, observed, err := o.decide(ctx, seq, classified, snap)
	if err != nil {
		return nil, err
	}

	if len(escalations) > 0 {
		if err := o.persistEscalations(ctx, escalations); err != nil {
			return nil, err
		}
		// Notify-and-continue: the cycle never waits on a human.
		go func() {
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if err := o.notifier.NotifyEscalations(nctx, escalations); err != nil {
				o.logger.Warn("escalation notification failed", zap.Error(err))
			}
		}()
	}

	executed, failed, err := o.execute(ctx, seq, autonomous, snap)
	if err != nil {
		return nil, err
	}

	rec := &domain.CycleRecord{
		Seq:             seq,
		Timestamp:       o.now().UTC(),
		EventCount:      len(events),
		AutonomousCount: executed,
		EscalationCount: len(escalations),
		ObservedCount:   observed,
		FailedCount:     failed,
		SnapshotDigest:  snap.Digest(),
	}
	if err := o.store.AppendCycle(ctx, rec); err != nil {
		return nil, fmt.Errorf("append cycle %d: %w", seq, err)
	}

	o.mu.Lock()
	o.state = snap
	o.mu.Unlock()

	o.logger.Info("cycle complete",
		zap.Int64("seq", seq),
		zap.Int("events", rec.EventCount),
		zap.Int("autonomous", rec.AutonomousCount),
		zap.Int("escalated", rec.EscalationCount),
		zap.Int("observed", rec.ObservedCount),
		zap.Int("failed", rec.FailedCount))
	return rec, nil
}

// runMonitors checks every source against the snapshot concurrently and
// aggregates the batches in the fixed source order.
func (o *Orchestrator) runMonitors(ctx context.Context, snap *domain.BusinessSnapshot) ([]domain.Event, error) {
	batches := make([][]domain.Event, len(o.sources))
	g, _ := errgroup.WithContext(ctx)
	for i, src := range o.sources {
		g.Go(func() error {
			batches[i] = src.Check(snap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}
	return monitor.Aggregate(batches), nil
}

// classifyAll classifies events with bounded concurrency and reassembles
// the results in the original event order. A classifier failure keeps the
// event in the pipeline with the default classification.
func (o *Orchestrator) classifyAll(ctx context.Context, events []domain.Event, snap *domain.BusinessSnapshot) ([]domain.ClassifiedEvent, error) {
	classified := make([]domain.ClassifiedEvent, len(events))
	sem := semaphore.NewWeighted(int64(o.concurrency))
	g, gctx := errgroup.WithContext(ctx)
	for i, ev := range events {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			c, err := o.classifier.Classify(gctx, ev, snap)
			if err != nil {
				o.logger.Warn("classification failed, using default",
					zap.String("event", ev.String()),
					zap.Error(err))
				classified[i] = domain.ClassifiedEvent{
					Event:          ev,
					Classification: classify.Default(),
					ClassifyError:  err.Error(),
				}
				return nil
			}
			classified[i] = domain.ClassifiedEvent{Event: ev, Classification: c}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing: %w", err)
	}
	return classified, nil
}

// decide applies the autonomy policy to every classified event, recording
// observed and escalated outcomes immediately and returning the autonomous
// set for sequential execution.
func (o *Orchestrator) decide(ctx context.Context, seq int64, classified []domain.ClassifiedEvent, snap *domain.BusinessSnapshot) ([]domain.Decision, []domain.Escalation, int, error) {
	approvalRate, err := o.store.ApprovalRate(ctx)
	if err != nil {
		o.logger.Warn("approval rate unavailable", zap.Error(err))
		approvalRate = 0
	}

	var autonomous []domain.Decision
	var escalations []domain.Escalation
	observed := 0
	for _, ev := range classified {
		in := policy.AutonomyInput{
			Kind:         ev.Event.Kind,
			Amount:       o.estimateAmount(ctx, ev, snap),
			ApprovalRate: approvalRate,
			SpendLimit:   o.spendLimit,
		}
		dec := policy.Decide(ctx, ev, in, o.canAct)
		switch {
		case dec == nil:
			observed++
			rec := &domain.DecisionRecord{
				DecisionID: uuid.NewString(),
				CycleSeq:   seq,
				Kind:       ev.Event.Kind,
				SubjectID:  ev.Event.SubjectID,
				Outcome:    domain.OutcomeObserved,
				Detail:     ev.Event.Detail,
				CreatedAt:  o.now().UTC(),
			}
			if err := o.store.CreateDecision(ctx, rec); err != nil {
				return nil, nil, 0, fmt.Errorf("record observed event: %w", err)
			}
		case dec.Type == domain.DecisionEscalate:
			escalations = append(escalations, domain.Escalation{
				EscalationID:      "esc_" + uuid.NewString(),
				CycleSeq:          seq,
				Event:             ev,
				RecommendedAction: dec.Action,
				Status:            domain.EscalationStatusPending,
				CreatedAt:         o.now().UTC(),
			})
		default:
			autonomous = append(autonomous, *dec)
		}
	}
	return autonomous, escalations, observed, nil
}

func (o *Orchestrator) persistEscalations(ctx context.Context, escalations []domain.Escalation) error {
	for i := range escalations {
		esc := &escalations[i]
		if err := o.store.CreateEscalation(ctx, esc); err != nil {
			return fmt.Errorf("persist escalation %s: %w", esc.EscalationID, err)
		}
		rec := &domain.DecisionRecord{
			DecisionID: uuid.NewString(),
			CycleSeq:   esc.CycleSeq,
			Kind:       esc.Event.Event.Kind,
			SubjectID:  esc.Event.Event.SubjectID,
			Outcome:    domain.OutcomeEscalated,
			Action:     esc.RecommendedAction,
			Detail:     esc.Event.Event.Detail,
			CreatedAt:  o.now().UTC(),
		}
		if err := o.store.CreateDecision(ctx, rec); err != nil {
			return fmt.Errorf("record escalation: %w", err)
		}
	}
	return nil
}

// execute runs the autonomous decisions in the order they were decided,
// applying each mutation before the next action runs. A recoverable action
// failure is recorded as a failed decision and the cycle continues.
func (o *Orchestrator) execute(ctx context.Context, seq int64, decisions []domain.Decision, snap *domain.BusinessSnapshot) (executed, failed int, err error) {
	for _, dec := range decisions {
		res, execErr := o.executor.Execute(ctx, dec, snap)
		if execErr != nil {
			if !domain.Recoverable(execErr) {
				return executed, failed, fmt.Errorf("executing %s: %w", dec.Action, execErr)
			}
			failed++
			o.logger.Warn("action failed",
				zap.String("action", dec.Action),
				zap.String("event", dec.Event.Event.String()),
				zap.Error(execErr))
			rec := &domain.DecisionRecord{
				DecisionID:    uuid.NewString(),
				CycleSeq:      seq,
				Kind:          dec.Event.Event.Kind,
				SubjectID:     dec.Event.Event.SubjectID,
				Outcome:       domain.OutcomeFailed,
				Action:        dec.Action,
				FailureReason: execErr.Error(),
				CreatedAt:     o.now().UTC(),
			}
			if err := o.store.CreateDecision(ctx, rec); err != nil {
				return executed, failed, fmt.Errorf("record failed action: %w", err)
			}
			continue
		}

		res.Mutation.Apply(snap)
		if res.PurchaseOrder != nil {
			if err := o.store.CreatePurchaseOrder(ctx, res.PurchaseOrder); err != nil {
				return executed, failed, fmt.Errorf("persist purchase order: %w", err)
			}
		}
		executed++
		rec := &domain.DecisionRecord{
			DecisionID: uuid.NewString(),
			CycleSeq:   seq,
			Kind:       dec.Event.Event.Kind,
			SubjectID:  dec.Event.Event.SubjectID,
			Outcome:    domain.OutcomeAutonomous,
			Action:     dec.Action,
			Detail:     res.Summary,
			CreatedAt:  o.now().UTC(),
		}
		if err := o.store.CreateDecision(ctx, rec); err != nil {
			return executed, failed, fmt.Errorf("record executed action: %w", err)
		}
	}
	return executed, failed, nil
}

// estimateAmount approximates the money a decision would commit, for the
// autonomy predicate. Payment events carry the amount directly; reorder
// events are estimated as a month of demand at the vendor cost. Unknown
// costs estimate to zero rather than blocking the decision.
func (o *Orchestrator) estimateAmount(ctx context.Context, ev domain.ClassifiedEvent, snap *domain.BusinessSnapshot) float64 {
	switch ev.Event.Kind {
	case domain.EventPaymentDue:
		return ev.Event.Measurement
	case domain.EventInventoryLow, domain.EventSalesSpike:
		cost, err := o.vendors.GetProductCost(ctx, ev.Event.SubjectID)
		if err != nil {
			return 0
		}
		return snap.SalesVelocity[ev.Event.SubjectID] * 30 * cost
	default:
		return 0
	}
}
