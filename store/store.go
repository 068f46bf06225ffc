// Package store defines the decision-log storage interface and
// implementations.
package store

import (
	"context"

	"github.com/autonomos/orchestrator/domain"
)

// Store is the append-only audit trail of cycles, decisions, escalations
// and purchase orders.
type Store interface {
	// Cycle operations
	NextCycleSeq(ctx context.Context) (int64, error)
	AppendCycle(ctx context.Context, rec *domain.CycleRecord) error
	ListCycles(ctx context.Context, limit int) ([]domain.CycleRecord, error)

	// Decision operations
	CreateDecision(ctx context.Context, rec *domain.DecisionRecord) error
	ListDecisions(ctx context.Context, cycleSeq int64) ([]domain.DecisionRecord, error)

	// Escalation operations
	CreateEscalation(ctx context.Context, esc *domain.Escalation) error
	GetEscalation(ctx context.Context, escalationID string) (*domain.Escalation, error)
	ListEscalations(ctx context.Context, status domain.EscalationStatus) ([]domain.Escalation, error)
	UpdateEscalationStatus(ctx context.Context, escalationID string, status domain.EscalationStatus, decidedBy, reason string) error
	ApprovalRate(ctx context.Context) (float64, error)

	// Purchase order operations
	CreatePurchaseOrder(ctx context.Context, po *domain.PurchaseOrder) error
	ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error)

	// Lifecycle
	Close() error
}
