package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonomos/orchestrator/domain"
	"github.com/autonomos/orchestrator/tests/helpers"
)

func TestCycleRoundTrip(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()

	seq, err := s.NextCycleSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	rec := &domain.CycleRecord{
		Seq:             seq,
		Timestamp:       time.Now().UTC(),
		EventCount:      3,
		AutonomousCount: 1,
		EscalationCount: 1,
		ObservedCount:   1,
		SnapshotDigest:  "abcd1234",
	}
	require.NoError(t, s.AppendCycle(ctx, rec))

	seq, err = s.NextCycleSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	cycles, err := s.ListCycles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, int64(1), cycles[0].Seq)
	assert.Equal(t, 3, cycles[0].EventCount)
	assert.Equal(t, "abcd1234", cycles[0].SnapshotDigest)
}

func TestDecisionsByCycle(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()

	records := []*domain.DecisionRecord{
		{DecisionID: "d1", CycleSeq: 1, Kind: domain.EventInventoryLow, SubjectID: "P1", Outcome: domain.OutcomeAutonomous, Action: "create_purchase_order", CreatedAt: time.Now()},
		{DecisionID: "d2", CycleSeq: 1, Kind: domain.EventVendorDelay, SubjectID: "V1", Outcome: domain.OutcomeObserved, CreatedAt: time.Now()},
		{DecisionID: "d3", CycleSeq: 2, Kind: domain.EventPaymentDue, SubjectID: "b1", Outcome: domain.OutcomeFailed, FailureReason: "missing cost data", CreatedAt: time.Now()},
	}
	for _, rec := range records {
		require.NoError(t, s.CreateDecision(ctx, rec))
	}

	decisions, err := s.ListDecisions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, "d1", decisions[0].DecisionID)
	assert.Equal(t, "d2", decisions[1].DecisionID)

	decisions, err = s.ListDecisions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "missing cost data", decisions[0].FailureReason)
}

func TestEscalationLifecycle(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()

	esc := &domain.Escalation{
		EscalationID: "esc_1",
		CycleSeq:     1,
		Event: domain.ClassifiedEvent{
			Event: domain.Event{Kind: domain.EventInventoryLow, SubjectID: "P1", Severity: domain.SeverityHigh},
			Classification: domain.Classification{
				BusinessImpact: domain.ImpactHigh,
				Urgency:        domain.Urgency24h,
			},
		},
		RecommendedAction: "create_purchase_order",
		Status:            domain.EscalationStatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, s.CreateEscalation(ctx, esc))

	got, err := s.GetEscalation(ctx, "esc_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.EscalationStatusPending, got.Status)
	assert.Equal(t, domain.EventInventoryLow, got.Event.Event.Kind)
	assert.Nil(t, got.DecidedAt)

	pending, err := s.ListEscalations(ctx, domain.EscalationStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, s.UpdateEscalationStatus(ctx, "esc_1", domain.EscalationStatusApproved, "owner", "go ahead"))

	got, err = s.GetEscalation(ctx, "esc_1")
	require.NoError(t, err)
	assert.Equal(t, domain.EscalationStatusApproved, got.Status)
	assert.Equal(t, "owner", got.DecidedBy)
	assert.NotNil(t, got.DecidedAt)

	pending, err = s.ListEscalations(ctx, domain.EscalationStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGetEscalationNotFound(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	got, err := s.GetEscalation(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestApprovalRate(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()

	rate, err := s.ApprovalRate(ctx)
	require.NoError(t, err)
	assert.Zero(t, rate)

	for i, status := range []domain.EscalationStatus{
		domain.EscalationStatusApproved,
		domain.EscalationStatusApproved,
		domain.EscalationStatusRejected,
		domain.EscalationStatusPending,
	} {
		esc := &domain.Escalation{
			EscalationID:      string(rune('a' + i)),
			CycleSeq:          1,
			RecommendedAction: "review_event",
			Status:            status,
			CreatedAt:         time.Now(),
		}
		require.NoError(t, s.CreateEscalation(ctx, esc))
	}

	rate, err = s.ApprovalRate(ctx)
	require.NoError(t, err)
	// Pending escalations are not counted: 2 of 3 decided were approved.
	assert.InDelta(t, 2.0/3.0, rate, 1e-9)
}

func TestPurchaseOrderRoundTrip(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()

	po := &domain.PurchaseOrder{
		PONumber:   "PO-20260301-001",
		Date:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		VendorID:   "v1",
		VendorName: "Acme Supplies",
		Items: []domain.LineItem{
			{ProductID: "P1", Description: "Widget", Quantity: 427, UnitPrice: 10, Total: 4270},
		},
		TotalAmount: 4270,
		Terms:       "Net 30",
		Status:      domain.PurchaseOrderStatusPending,
	}
	require.NoError(t, s.CreatePurchaseOrder(ctx, po))

	orders, err := s.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "PO-20260301-001", orders[0].PONumber)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, "Widget", orders[0].Items[0].Description)
	assert.Equal(t, 4270.0, orders[0].TotalAmount)
}
