package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// BusinessSnapshot is the per-cycle view of operational state. It is
// replaced wholesale at the start of each cycle and mutated only while
// executing approved actions, via SnapshotMutation.
type BusinessSnapshot struct {
	InventoryLevels   map[string]float64  `json:"inventory_levels"`   // product_id -> days of supply
	SalesVelocity     map[string]float64  `json:"sales_velocity"`     // product_id -> units/day
	VendorPerformance map[string]float64  `json:"vendor_performance"` // vendor_id -> on-time %
	StaffAvailability map[string][]string `json:"staff_availability"` // role -> available employees
	PendingOrders     []PurchaseOrder     `json:"pending_orders"`
	CashBalance       float64             `json:"cash_balance"`
	UpcomingBills     []Bill              `json:"upcoming_bills"`
}

// Bill is an upcoming payable.
type Bill struct {
	BillID  string    `json:"bill_id"`
	Vendor  string    `json:"vendor"`
	Amount  float64   `json:"amount"`
	DueDate time.Time `json:"due_date"`
}

// Clone returns a deep copy of the snapshot.
func (s *BusinessSnapshot) Clone() *BusinessSnapshot {
	out := &BusinessSnapshot{
		InventoryLevels:   make(map[string]float64, len(s.InventoryLevels)),
		SalesVelocity:     make(map[string]float64, len(s.SalesVelocity)),
		VendorPerformance: make(map[string]float64, len(s.VendorPerformance)),
		StaffAvailability: make(map[string][]string, len(s.StaffAvailability)),
		PendingOrders:     append([]PurchaseOrder(nil), s.PendingOrders...),
		CashBalance:       s.CashBalance,
		UpcomingBills:     append([]Bill(nil), s.UpcomingBills...),
	}
	for k, v := range s.InventoryLevels {
		out.InventoryLevels[k] = v
	}
	for k, v := range s.SalesVelocity {
		out.SalesVelocity[k] = v
	}
	for k, v := range s.VendorPerformance {
		out.VendorPerformance[k] = v
	}
	for k, v := range s.StaffAvailability {
		out.StaffAvailability[k] = append([]string(nil), v...)
	}
	return out
}

// Digest returns a short stable digest of the snapshot for the cycle record.
func (s *BusinessSnapshot) Digest() string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Event is a detected operational condition before classification.
// Created by a monitor; read-only afterward.
type Event struct {
	Kind        EventKind `json:"kind"`
	SubjectID   string    `json:"subject_id"`
	Measurement float64   `json:"measurement"`
	Detail      string    `json:"detail"`
	Severity    Severity  `json:"severity"`
}

// Classification is the classifier's verdict on one event.
type Classification struct {
	BusinessImpact     Impact   `json:"business_impact"`
	Urgency            Urgency  `json:"urgency"`
	CascadingEffects   []string `json:"cascading_effects,omitempty"`
	RecommendedActions []string `json:"recommended_actions"`
}

// ClassifiedEvent is an Event enriched with its classification. When the
// classifier failed, Classification holds the configured default and
// ClassifyError carries the failure reason.
type ClassifiedEvent struct {
	Event          Event          `json:"event"`
	Classification Classification `json:"classification"`
	ClassifyError  string         `json:"classify_error,omitempty"`
}

// PrimaryAction returns the first recommended action, or empty.
func (c ClassifiedEvent) PrimaryAction() string {
	if len(c.Classification.RecommendedActions) == 0 {
		return ""
	}
	return c.Classification.RecommendedActions[0]
}

// Decision is the autonomy-policy outcome for one classified event.
// Exactly one variant applies, selected by Type: AUTONOMOUS carries the
// chosen action, ESCALATE the action recommended to the human.
type Decision struct {
	Type   DecisionType    `json:"type"`
	Event  ClassifiedEvent `json:"event"`
	Action string          `json:"action"`
}

// SnapshotMutation is the explicit state patch an executed action applies.
type SnapshotMutation struct {
	AppendOrder *PurchaseOrder `json:"append_order,omitempty"`
	CashDelta   float64        `json:"cash_delta,omitempty"`
}

// Apply applies the mutation to the snapshot.
func (m *SnapshotMutation) Apply(s *BusinessSnapshot) {
	if m == nil {
		return
	}
	if m.AppendOrder != nil {
		s.PendingOrders = append(s.PendingOrders, *m.AppendOrder)
	}
	s.CashBalance += m.CashDelta
}

// ActionResult is the terminal outcome of executing an autonomous action.
type ActionResult struct {
	Decision      Decision          `json:"decision"`
	Summary       string            `json:"summary"`
	PurchaseOrder *PurchaseOrder    `json:"purchase_order,omitempty"`
	ReorderPlan   *ReorderPlan      `json:"reorder_plan,omitempty"`
	Mutation      *SnapshotMutation `json:"mutation,omitempty"`
}

// ReorderPlan is the output of the EOQ computation for one product.
type ReorderPlan struct {
	ProductID        string    `json:"product_id"`
	EOQ              float64   `json:"economic_order_quantity"`
	SafetyStock      float64   `json:"safety_stock"`
	RecommendedOrder int       `json:"recommended_order"`
	ExpectedDelivery time.Time `json:"expected_delivery"`
}

// VendorCandidate is a supplier considered for one procurement decision.
// Transient; fetched from the vendor-data boundary and never persisted.
type VendorCandidate struct {
	VendorID         string       `json:"vendor_id"`
	Name             string       `json:"name"`
	Price            float64      `json:"price"`
	OnTimePercentage float64      `json:"on_time_percentage"`
	QualityRating    float64      `json:"quality_rating"` // 0-10
	PaymentTerms     PaymentTerms `json:"payment_terms,omitempty"`
}

// ProductDetails is returned by the vendor-data boundary.
type ProductDetails struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

// LineItem is one line of a purchase order.
type LineItem struct {
	ProductID   string  `json:"product_id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// PurchaseOrder is the structured record emitted by a procurement action.
type PurchaseOrder struct {
	PONumber    string              `json:"po_number"`
	Date        time.Time           `json:"date"`
	VendorID    string              `json:"vendor_id"`
	VendorName  string              `json:"vendor_name"`
	Items       []LineItem          `json:"items"`
	TotalAmount float64             `json:"total_amount"`
	Terms       string              `json:"terms"`
	Status      PurchaseOrderStatus `json:"status"`
}

// CycleRecord summarizes one completed cycle. Immutable once written.
type CycleRecord struct {
	Seq             int64     `json:"seq"`
	Timestamp       time.Time `json:"timestamp"`
	EventCount      int       `json:"event_count"`
	AutonomousCount int       `json:"autonomous_count"`
	EscalationCount int       `json:"escalation_count"`
	ObservedCount   int       `json:"observed_count"`
	FailedCount     int       `json:"failed_count"`
	SnapshotDigest  string    `json:"snapshot_digest"`
}

// DecisionRecord is the audit entry for one event's outcome in a cycle.
type DecisionRecord struct {
	DecisionID    string          `json:"decision_id"`
	CycleSeq      int64           `json:"cycle_seq"`
	Kind          EventKind       `json:"kind"`
	SubjectID     string          `json:"subject_id"`
	Outcome       DecisionOutcome `json:"outcome"`
	Action        string          `json:"action,omitempty"`
	Detail        string          `json:"detail,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Escalation is a decision routed to a human instead of auto-executed.
type Escalation struct {
	EscalationID      string           `json:"escalation_id"`
	CycleSeq          int64            `json:"cycle_seq"`
	Event             ClassifiedEvent  `json:"event"`
	RecommendedAction string           `json:"recommended_action"`
	Status            EscalationStatus `json:"status"`
	DecidedBy         string           `json:"decided_by,omitempty"`
	Reason            string           `json:"reason,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	DecidedAt         *time.Time       `json:"decided_at,omitempty"`
}

// String implements fmt.Stringer for log output.
func (e Event) String() string {
	return fmt.Sprintf("%s[%s]=%.2f (%s)", e.Kind, e.SubjectID, e.Measurement, e.Severity)
}
