// Package domain defines the core domain models for the autonomous
// operations orchestrator.
package domain

// EventKind identifies the operational condition an event reports.
type EventKind string

const (
	EventInventoryLow    EventKind = "inventory_low"
	EventInventoryHigh   EventKind = "inventory_high"
	EventSalesSpike      EventKind = "sales_spike"
	EventVendorDelay     EventKind = "vendor_delay"
	EventStaffShortage   EventKind = "staff_shortage"
	EventPaymentDue      EventKind = "payment_due"
	EventCashFlowWarning EventKind = "cash_flow_warning"
	EventSeasonalTrend   EventKind = "seasonal_trend"
)

// Severity is assigned by the monitor that emitted the event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Impact is the classifier's assessment of business impact.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Urgency is the classifier's assessment of how soon action is needed.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	Urgency24h       Urgency = "24h"
	Urgency48h       Urgency = "48h"
	UrgencyWeek      Urgency = "week"
)

// ValidImpact reports whether s is a recognized impact level.
func ValidImpact(s Impact) bool {
	switch s {
	case ImpactLow, ImpactMedium, ImpactHigh:
		return true
	}
	return false
}

// ValidUrgency reports whether s is a recognized urgency level.
func ValidUrgency(s Urgency) bool {
	switch s {
	case UrgencyImmediate, Urgency24h, Urgency48h, UrgencyWeek:
		return true
	}
	return false
}

// DecisionType tags the two variants of a Decision.
type DecisionType string

const (
	DecisionAutonomous DecisionType = "AUTONOMOUS"
	DecisionEscalate   DecisionType = "ESCALATE"
)

// DecisionOutcome records how an event was ultimately handled in a cycle.
type DecisionOutcome string

const (
	OutcomeAutonomous DecisionOutcome = "autonomous"
	OutcomeEscalated  DecisionOutcome = "escalated"
	OutcomeObserved   DecisionOutcome = "observed"
	OutcomeFailed     DecisionOutcome = "failed"
)

// EscalationStatus represents the status of a human escalation.
type EscalationStatus string

const (
	EscalationStatusPending  EscalationStatus = "PENDING"
	EscalationStatusApproved EscalationStatus = "APPROVED"
	EscalationStatusRejected EscalationStatus = "REJECTED"
)

// PurchaseOrderStatus represents the status of a purchase order.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusPending PurchaseOrderStatus = "pending"
	PurchaseOrderStatusSent    PurchaseOrderStatus = "sent"
)

// PaymentTerms are the payment terms offered by a vendor.
type PaymentTerms string

const (
	TermsNet30 PaymentTerms = "net_30"
	TermsNet60 PaymentTerms = "net_60"
)
