package orchestrate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autonomos/orchestrator/domain"
)

// ResolveEscalation applies a human verdict to a pending escalation. The
// call is idempotent: an already-decided escalation is returned unchanged.
// Approval executes the recommended action against the current snapshot;
// an execution failure is recorded on the decision trail but does not undo
// the approval. A nil escalation return means the id is unknown.
func (o *Orchestrator) ResolveEscalation(ctx context.Context, escalationID string, status domain.EscalationStatus, decidedBy, reason string) (*domain.Escalation, error) {
	if status != domain.EscalationStatusApproved && status != domain.EscalationStatusRejected {
		return nil, fmt.Errorf("invalid escalation status %q", status)
	}

	esc, err := o.store.GetEscalation(ctx, escalationID)
	if err != nil {
		return nil, fmt.Errorf("load escalation: %w", err)
	}
	if esc == nil {
		return nil, nil
	}
	if esc.Status != domain.EscalationStatusPending {
		return esc, nil
	}

	if err := o.store.UpdateEscalationStatus(ctx, escalationID, status, decidedBy, reason); err != nil {
		return nil, fmt.Errorf("update escalation: %w", err)
	}
	esc.Status = status
	esc.DecidedBy = decidedBy
	esc.Reason = reason
	now := o.now().UTC()
	esc.DecidedAt = &now

	if status == domain.EscalationStatusApproved {
		o.executeApproved(ctx, esc)
	}
	return esc, nil
}

// executeApproved runs the escalation's recommended action as an autonomous
// decision and commits the resulting mutation to the shared snapshot. It
// serializes with whole cycles: committing against a snapshot captured
// mid-cycle would be overwritten by that cycle's own commit.
func (o *Orchestrator) executeApproved(ctx context.Context, esc *domain.Escalation) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	dec := domain.Decision{
		Type:   domain.DecisionAutonomous,
		Event:  esc.Event,
		Action: esc.RecommendedAction,
	}

	snap := o.Snapshot()

	rec := &domain.DecisionRecord{
		DecisionID: uuid.NewString(),
		CycleSeq:   esc.CycleSeq,
		Kind:       esc.Event.Event.Kind,
		SubjectID:  esc.Event.Event.SubjectID,
		Action:     esc.RecommendedAction,
		CreatedAt:  o.now().UTC(),
	}

	res, err := o.executor.Execute(ctx, dec, snap)
	if err != nil {
		o.logger.Warn("approved action failed",
			zap.String("escalation_id", esc.EscalationID),
			zap.Error(err))
		rec.Outcome = domain.OutcomeFailed
		rec.FailureReason = err.Error()
	} else {
		res.Mutation.Apply(snap)
		o.mu.Lock()
		o.state = snap
		o.mu.Unlock()
		if res.PurchaseOrder != nil {
			if err := o.store.CreatePurchaseOrder(ctx, res.PurchaseOrder); err != nil {
				o.logger.Error("persist purchase order failed", zap.Error(err))
			}
		}
		rec.Outcome = domain.OutcomeAutonomous
		rec.Detail = res.Summary
	}

	if err := o.store.CreateDecision(ctx, rec); err != nil {
		o.logger.Error("record approved action failed", zap.Error(err))
	}
}
