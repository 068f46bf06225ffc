// Package policy implements the autonomy policy: the pure decision split
// between autonomous execution and human escalation, with the
// can-act-autonomously predicate supplied by configuration.
package policy

import (
	"context"

	"github.com/autonomos/orchestrator/classify"
	"github.com/autonomos/orchestrator/domain"
)

// AutonomyInput is the predicate's view of one classified event.
type AutonomyInput struct {
	Kind         domain.EventKind `json:"kind"`
	Amount       float64          `json:"amount"`
	ApprovalRate float64          `json:"approval_rate"`
	SpendLimit   float64          `json:"spend_limit"`
}

// Predicate reports whether the system may act on the event without human
// sign-off. Implementations must degrade to false on internal failure.
type Predicate func(ctx context.Context, in AutonomyInput) bool

// Decide applies the autonomy rules in order, first match wins:
//
//  1. immediate urgency: act now, regardless of impact
//  2. high impact and the predicate allows it: act
//  3. high impact otherwise: escalate with the primary recommended action
//  4. anything else: observed only, no decision
//
// A nil return means the event is recorded but not actioned this cycle.
func Decide(ctx context.Context, ev domain.ClassifiedEvent, in AutonomyInput, canAct Predicate) *domain.Decision {
	action := ev.PrimaryAction()
	if action == "" {
		action = classify.ActionReview
	}

	if ev.Classification.Urgency == domain.UrgencyImmediate {
		return &domain.Decision{Type: domain.DecisionAutonomous, Event: ev, Action: action}
	}
	if ev.Classification.BusinessImpact == domain.ImpactHigh {
		if canAct(ctx, in) {
			return &domain.Decision{Type: domain.DecisionAutonomous, Event: ev, Action: action}
		}
		return &domain.Decision{Type: domain.DecisionEscalate, Event: ev, Action: action}
	}
	return nil
}
