// Package classify defines the classifier boundary: given one event and a
// read-only snapshot, produce an impact/urgency/recommendation triple or
// fail with a classification error. Any implementation satisfies the
// pipeline as long as it returns the documented fields or fails explicitly.
package classify

import (
	"context"

	"github.com/autonomos/orchestrator/domain"
)

// Classifier classifies one event against the current snapshot.
type Classifier interface {
	Classify(ctx context.Context, event domain.Event, snap *domain.BusinessSnapshot) (domain.Classification, error)
}

// Default is the classification applied when the classifier fails: the
// event is kept in the pipeline at the lowest priority rather than dropped.
func Default() domain.Classification {
	return domain.Classification{
		BusinessImpact:     domain.ImpactLow,
		Urgency:            domain.UrgencyWeek,
		RecommendedActions: []string{ActionReview},
	}
}

// Recommended action identifiers shared between the classifiers and the
// action executor.
const (
	ActionReorder     = "create_purchase_order"
	ActionReduceStock = "reduce_stock"
	ActionNotifyOwner = "notify_owner"
	ActionFindBackup  = "find_backup_vendor"
	ActionAdjustShift = "adjust_shift_schedule"
	ActionPayBill     = "schedule_payment"
	ActionReview      = "review_event"
)

// RuleClassifier is a deterministic classifier mapping monitor severity to
// impact and urgency. It is the default when no remote classifier is
// configured and the reference implementation for tests.
type RuleClassifier struct{}

func (RuleClassifier) Classify(_ context.Context, event domain.Event, _ *domain.BusinessSnapshot) (domain.Classification, error) {
	c := domain.Classification{
		BusinessImpact:     impactFor(event.Severity),
		Urgency:            urgencyFor(event),
		CascadingEffects:   cascadingFor(event.Kind),
		RecommendedActions: actionsFor(event.Kind),
	}
	return c, nil
}

func impactFor(sev domain.Severity) domain.Impact {
	switch sev {
	case domain.SeverityHigh:
		return domain.ImpactHigh
	case domain.SeverityMedium:
		return domain.ImpactMedium
	default:
		return domain.ImpactLow
	}
}

func urgencyFor(event domain.Event) domain.Urgency {
	if event.Severity == domain.SeverityHigh {
		switch event.Kind {
		case domain.EventInventoryLow, domain.EventStaffShortage,
			domain.EventPaymentDue, domain.EventCashFlowWarning:
			return domain.UrgencyImmediate
		}
		return domain.Urgency24h
	}
	if event.Severity == domain.SeverityMedium {
		return domain.Urgency48h
	}
	return domain.UrgencyWeek
}

func actionsFor(kind domain.EventKind) []string {
	switch kind {
	case domain.EventInventoryLow, domain.EventSalesSpike:
		return []string{ActionReorder, ActionNotifyOwner}
	case domain.EventInventoryHigh:
		return []string{ActionReduceStock, ActionNotifyOwner}
	case domain.EventVendorDelay:
		return []string{ActionFindBackup, ActionNotifyOwner}
	case domain.EventStaffShortage:
		return []string{ActionAdjustShift, ActionNotifyOwner}
	case domain.EventPaymentDue:
		return []string{ActionPayBill, ActionNotifyOwner}
	case domain.EventCashFlowWarning:
		return []string{ActionNotifyOwner, ActionReview}
	default:
		return []string{ActionReview}
	}
}

func cascadingFor(kind domain.EventKind) []string {
	switch kind {
	case domain.EventInventoryLow:
		return []string{"stockout risk", "lost sales"}
	case domain.EventSalesSpike:
		return []string{"accelerated inventory depletion"}
	case domain.EventVendorDelay:
		return []string{"delayed replenishment"}
	case domain.EventStaffShortage:
		return []string{"reduced service capacity"}
	case domain.EventPaymentDue, domain.EventCashFlowWarning:
		return []string{"cash position pressure"}
	default:
		return nil
	}
}
