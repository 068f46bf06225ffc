package orchestrate_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/autonomos/orchestrator/classify"
	"github.com/autonomos/orchestrator/config"
	"github.com/autonomos/orchestrator/domain"
	"github.com/autonomos/orchestrator/executor"
	"github.com/autonomos/orchestrator/monitor"
	"github.com/autonomos/orchestrator/orchestrate"
	"github.com/autonomos/orchestrator/policy"
	"github.com/autonomos/orchestrator/store"
	"github.com/autonomos/orchestrator/tests/helpers"
	"github.com/autonomos/orchestrator/vendorapi"
)

type captureNotifier struct {
	mu          sync.Mutex
	alerts      []string
	alertCount  atomic.Int64
	escalations chan []domain.Escalation
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{escalations: make(chan []domain.Escalation, 8)}
}

func (n *captureNotifier) SendAlert(_ context.Context, message, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, message)
	n.alertCount.Add(1)
	return nil
}

func (n *captureNotifier) NotifyEscalations(_ context.Context, escalations []domain.Escalation) error {
	n.escalations <- escalations
	return nil
}

// blockingClassifier parks inside Classify until released, so a test can
// hold a cycle in the Analyzing stage.
type blockingClassifier struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingClassifier() *blockingClassifier {
	return &blockingClassifier{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *blockingClassifier) Classify(context.Context, domain.Event, *domain.BusinessSnapshot) (domain.Classification, error) {
	close(c.started)
	<-c.release
	return classify.Default(), nil
}

// panicOnceClassifier panics on its first call, then classifies normally.
type panicOnceClassifier struct {
	panicked atomic.Bool
}

func (c *panicOnceClassifier) Classify(ctx context.Context, ev domain.Event, snap *domain.BusinessSnapshot) (domain.Classification, error) {
	if c.panicked.CompareAndSwap(false, true) {
		panic("classifier blew up")
	}
	return classify.RuleClassifier{}.Classify(ctx, ev, snap)
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, domain.Event, *domain.BusinessSnapshot) (domain.Classification, error) {
	return domain.Classification{}, domain.ErrClassification
}

// flakyStore fails the first NextCycleSeq call, then behaves normally.
type flakyStore struct {
	store.Store
	failed atomic.Bool
}

func (s *flakyStore) NextCycleSeq(ctx context.Context) (int64, error) {
	if s.failed.CompareAndSwap(false, true) {
		return 0, errors.New("transient store outage")
	}
	return s.Store.NextCycleSeq(ctx)
}

func allowAll(context.Context, policy.AutonomyInput) bool { return true }
func denyAll(context.Context, policy.AutonomyInput) bool  { return false }

func testRules() *config.Rules {
	rules := config.DefaultRules()
	rules.Catalog = []config.Product{
		{ID: "P1", Name: "Widget", UnitCost: 10},
		{ID: "P2", Name: "Orphan", UnitCost: 10},
	}
	rules.Vendors = []config.Vendor{
		{
			ID:               "v1",
			Name:             "Acme Supplies",
			Price:            10,
			OnTimePercentage: 95,
			QualityRating:    8,
			PaymentTerms:     domain.TermsNet30,
			Products:         []string{"P1"},
		},
	}
	return rules
}

func newTestOrchestrator(t *testing.T, rules *config.Rules, classifier classify.Classifier, canAct policy.Predicate, snap *domain.BusinessSnapshot) (*orchestrate.Orchestrator, store.Store, *captureNotifier) {
	t.Helper()
	s := helpers.NewTestSQLiteStore(t)
	notifier := newCaptureNotifier()
	vendors := vendorapi.NewStatic(rules)
	exec := executor.New(vendors, rules.Inventory, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	exec.SetNow(func() time.Time { return fixed })

	o := orchestrate.New(orchestrate.Options{
		Sources:     monitor.Sources(rules),
		Classifier:  classifier,
		CanAct:      canAct,
		Executor:    exec,
		Vendors:     vendors,
		Store:       s,
		Notifier:    notifier,
		Interval:    5 * time.Millisecond,
		Backoff:     5 * time.Millisecond,
		Concurrency: 2,
		SpendLimit:  rules.Autonomy.SpendLimit,
		Initial:     snap,
	})
	o.SetNow(func() time.Time { return fixed })
	return o, s, notifier
}

func TestRunCycleEndToEndReorder(t *testing.T) {
	rules := testRules()
	snap := &domain.BusinessSnapshot{
		InventoryLevels: map[string]float64{"P1": 2},
		SalesVelocity:   map[string]float64{"P1": 5},
		CashBalance:     100000,
	}
	o, s, _ := newTestOrchestrator(t, rules, classify.RuleClassifier{}, denyAll, snap)

	rec, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, 1, rec.EventCount)
	assert.Equal(t, 1, rec.AutonomousCount)
	assert.Zero(t, rec.EscalationCount)
	assert.Zero(t, rec.ObservedCount)
	assert.Zero(t, rec.FailedCount)
	assert.NotEmpty(t, rec.SnapshotDigest)

	orders, err := s.ListPurchaseOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	po := orders[0]
	assert.Equal(t, "PO-20260301-001", po.PONumber)
	assert.Equal(t, "v1", po.VendorID)
	require.Len(t, po.Items, 1)
	// EOQ = sqrt(2*1825*50/(0.2*10)) ~ 302.08, above safety stock 52.5.
	assert.Equal(t, 302.0, po.Items[0].Quantity)
	assert.Equal(t, 3020.0, po.TotalAmount)

	after := o.Snapshot()
	require.Len(t, after.PendingOrders, 1)
	assert.Equal(t, 100000.0-3020.0, after.CashBalance)

	decisions, err := s.ListDecisions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.OutcomeAutonomous, decisions[0].Outcome)
	assert.Equal(t, classify.ActionReorder, decisions[0].Action)
	assert.Equal(t, "P1", decisions[0].SubjectID)

	cycles, err := s.ListCycles(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)
}

func TestRunCycleEscalation(t *testing.T) {
	rules := testRules()
	// An unreliable vendor is high impact but not immediate, and the
	// predicate denies autonomy, so the event must escalate.
	snap := &domain.BusinessSnapshot{
		InventoryLevels:   map[string]float64{},
		SalesVelocity:     map[string]float64{},
		VendorPerformance: map[string]float64{"v9": 50},
		CashBalance:       100000,
	}
	o, s, notifier := newTestOrchestrator(t, rules, classify.RuleClassifier{}, denyAll, snap)

	rec, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.EventCount)
	assert.Equal(t, 1, rec.EscalationCount)
	assert.Zero(t, rec.AutonomousCount)

	select {
	case escs := <-notifier.escalations:
		require.Len(t, escs, 1)
		assert.Equal(t, domain.EventVendorDelay, escs[0].Event.Event.Kind)
	case <-time.After(time.Second):
		t.Fatal("escalation notification never sent")
	}

	pending, err := s.ListEscalations(context.Background(), domain.EscalationStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "v9", pending[0].Event.Event.SubjectID)

	decisions, err := s.ListDecisions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.OutcomeEscalated, decisions[0].Outcome)
}

func TestRunCycleObservedOnly(t *testing.T) {
	rules := testRules()
	// 5 days of supply is medium severity, medium impact: recorded, not
	// actioned.
	snap := &domain.BusinessSnapshot{
		InventoryLevels: map[string]float64{"P1": 5},
		SalesVelocity:   map[string]float64{"P1": 5},
		CashBalance:     100000,
	}
	o, s, _ := newTestOrchestrator(t, rules, classify.RuleClassifier{}, allowAll, snap)

	rec, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.EventCount)
	assert.Equal(t, 1, rec.ObservedCount)
	assert.Zero(t, rec.AutonomousCount)
	assert.Zero(t, rec.EscalationCount)

	decisions, err := s.ListDecisions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.OutcomeObserved, decisions[0].Outcome)
}

func TestRunCycleClassifierFailureDefaults(t *testing.T) {
	rules := testRules()
	snap := &domain.BusinessSnapshot{
		InventoryLevels: map[string]float64{"P1": 2},
		SalesVelocity:   map[string]float64{"P1": 5},
		CashBalance:     100000,
	}
	o, s, _ := newTestOrchestrator(t, rules, failingClassifier{}, allowAll, snap)

	rec, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	// The event survives classification failure at the lowest priority.
	assert.Equal(t, 1, rec.EventCount)
	assert.Equal(t, 1, rec.ObservedCount)
	assert.Zero(t, rec.AutonomousCount)

	decisions, err := s.ListDecisions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.OutcomeObserved, decisions[0].Outcome)
}

func TestRunCycleFailedActionRecorded(t *testing.T) {
	rules := testRules()
	// P2 is in the catalog but no vendor carries it: the reorder fails and
	// is recorded, the cycle still completes.
	snap := &domain.BusinessSnapshot{
		InventoryLevels: map[string]float64{"P2": 2},
		SalesVelocity:   map[string]float64{"P2": 5},
		CashBalance:     100000,
	}
	o, s, _ := newTestOrchestrator(t, rules, classify.RuleClassifier{}, allowAll, snap)

	rec, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.EventCount)
	assert.Equal(t, 1, rec.FailedCount)
	assert.Zero(t, rec.AutonomousCount)

	decisions, err := s.ListDecisions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.OutcomeFailed, decisions[0].Outcome)
	assert.NotEmpty(t, decisions[0].FailureReason)

	after := o.Snapshot()
	assert.Empty(t, after.PendingOrders)
	assert.Equal(t, 100000.0, after.CashBalance)
}

func TestRunCycleEmptySnapshot(t *testing.T) {
	rules := testRules()
	snap := &domain.BusinessSnapshot{CashBalance: 100000}
	o, s, _ := newTestOrchestrator(t, rules, classify.RuleClassifier{}, allowAll, snap)

	rec, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rec.EventCount)

	cycles, err := s.ListCycles(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
}

func TestResolveEscalation(t *testing.T) {
	rules := testRules()
	snap := &domain.BusinessSnapshot{
		InventoryLevels: map[string]float64{},
		SalesVelocity:   map[string]float64{"P1": 5},
		CashBalance:     100000,
	}
	o, s, _ := newTestOrchestrator(t, rules, classify.RuleClassifier{}, denyAll, snap)

	esc := &domain.Escalation{
		EscalationID: "esc_approve_me",
		CycleSeq:     1,
		Event: domain.ClassifiedEvent{
			Event: domain.Event{Kind: domain.EventInventoryLow, SubjectID: "P1", Severity: domain.SeverityHigh},
			Classification: domain.Classification{
				BusinessImpact:     domain.ImpactHigh,
				Urgency:            domain.Urgency24h,
				RecommendedActions: []string{classify.ActionReorder},
			},
		},
		RecommendedAction: classify.ActionReorder,
		Status:            domain.EscalationStatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, s.CreateEscalation(context.Background(), esc))

	got, err := o.ResolveEscalation(context.Background(), "esc_approve_me", domain.EscalationStatusApproved, "owner", "restock now")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.EscalationStatusApproved, got.Status)
	assert.Equal(t, "owner", got.DecidedBy)
	require.NotNil(t, got.DecidedAt)

	// Approval executed the recommended action.
	orders, err := s.ListPurchaseOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	after := o.Snapshot()
	assert.Len(t, after.PendingOrders, 1)

	// Idempotent: a second verdict does not re-execute.
	got, err = o.ResolveEscalation(context.Background(), "esc_approve_me", domain.EscalationStatusRejected, "owner", "changed mind")
	require.NoError(t, err)
	assert.Equal(t, domain.EscalationStatusApproved, got.Status)
	orders, err = s.ListPurchaseOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestResolveEscalationUnknown(t *testing.T) {
	rules := testRules()
	o, _, _ := newTestOrchestrator(t, rules, classify.RuleClassifier{}, denyAll, &domain.BusinessSnapshot{})

	got, err := o.ResolveEscalation(context.Background(), "esc_missing", domain.EscalationStatusApproved, "owner", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = o.ResolveEscalation(context.Background(), "esc_missing", domain.EscalationStatus("MAYBE"), "owner", "")
	assert.Error(t, err)
}

func TestApprovalDuringCycleIsNotLost(t *testing.T) {
	rules := testRules()
	// 5 days of supply emits an event, so the cycle parks inside the
	// classifier while still holding the cycle lock.
	snap := &domain.BusinessSnapshot{
		InventoryLevels: map[string]float64{"P1": 5},
		SalesVelocity:   map[string]float64{"P1": 5},
		CashBalance:     100000,
	}
	bc := newBlockingClassifier()
	o, s, _ := newTestOrchestrator(t, rules, bc, denyAll, snap)

	createReorderEscalation(t, s, "esc_midcycle")

	cycleErr := make(chan error, 1)
	go func() {
		_, err := o.RunCycle(context.Background())
		cycleErr <- err
	}()
	<-bc.started

	// Approve while the cycle is in Analyzing. The approval must wait for
	// the cycle's commit instead of being overwritten by it.
	resolveErr := make(chan error, 1)
	go func() {
		esc, err := o.ResolveEscalation(context.Background(), "esc_midcycle", domain.EscalationStatusApproved, "owner", "restock now")
		if err == nil && esc.Status != domain.EscalationStatusApproved {
			err = errors.New("escalation not approved")
		}
		resolveErr <- err
	}()

	close(bc.release)
	require.NoError(t, <-cycleErr)
	require.NoError(t, <-resolveErr)

	after := o.Snapshot()
	require.Len(t, after.PendingOrders, 1)
	assert.Less(t, after.CashBalance, 100000.0)

	orders, err := s.ListPurchaseOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func createReorderEscalation(t *testing.T, s store.Store, id string) {
	t.Helper()
	require.NoError(t, s.CreateEscalation(context.Background(), &domain.Escalation{
		EscalationID: id,
		CycleSeq:     1,
		Event: domain.ClassifiedEvent{
			Event: domain.Event{Kind: domain.EventInventoryLow, SubjectID: "P1", Severity: domain.SeverityHigh},
			Classification: domain.Classification{
				BusinessImpact:     domain.ImpactHigh,
				Urgency:            domain.Urgency24h,
				RecommendedActions: []string{classify.ActionReorder},
			},
		},
		RecommendedAction: classify.ActionReorder,
		Status:            domain.EscalationStatusPending,
		CreatedAt:         time.Now().UTC(),
	}))
}

func TestRunRecoversFromCycleFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	rules := testRules()
	base := helpers.NewTestSQLiteStore(t)
	flaky := &flakyStore{Store: base}
	notifier := newCaptureNotifier()
	vendors := vendorapi.NewStatic(rules)
	exec := executor.New(vendors, rules.Inventory, zap.NewNop())

	o := orchestrate.New(orchestrate.Options{
		Sources:    monitor.Sources(rules),
		Classifier: classify.RuleClassifier{},
		CanAct:     allowAll,
		Executor:   exec,
		Vendors:    vendors,
		Store:      flaky,
		Notifier:   notifier,
		Interval:   5 * time.Millisecond,
		Backoff:    5 * time.Millisecond,
		SpendLimit: rules.Autonomy.SpendLimit,
		Initial:    &domain.BusinessSnapshot{CashBalance: 100000},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	// The first cycle fails and alerts once; the loop must keep going and
	// complete later cycles.
	require.Eventually(t, func() bool {
		cycles, err := base.ListCycles(context.Background(), 10)
		return err == nil && len(cycles) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on cancellation")
	}

	assert.Equal(t, int64(1), notifier.alertCount.Load())
}

func TestRunRecoversFromCyclePanic(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	rules := testRules()
	base := helpers.NewTestSQLiteStore(t)
	notifier := newCaptureNotifier()
	vendors := vendorapi.NewStatic(rules)
	exec := executor.New(vendors, rules.Inventory, zap.NewNop())

	// The snapshot emits one observed-only event so the classifier runs
	// every cycle; it panics on the first call.
	o := orchestrate.New(orchestrate.Options{
		Sources:    monitor.Sources(rules),
		Classifier: &panicOnceClassifier{},
		CanAct:     denyAll,
		Executor:   exec,
		Vendors:    vendors,
		Store:      base,
		Notifier:   notifier,
		Interval:   5 * time.Millisecond,
		Backoff:    5 * time.Millisecond,
		SpendLimit: rules.Autonomy.SpendLimit,
		Initial: &domain.BusinessSnapshot{
			InventoryLevels: map[string]float64{"P1": 5},
			SalesVelocity:   map[string]float64{"P1": 5},
			CashBalance:     100000,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	// The panicking cycle alerts once; the loop survives it and completes
	// later cycles.
	require.Eventually(t, func() bool {
		cycles, err := base.ListCycles(context.Background(), 10)
		return err == nil && len(cycles) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after panic recovery")
	}

	assert.Equal(t, int64(1), notifier.alertCount.Load())
}
