// Package monitor implements the event sources that inspect slices of the
// business snapshot. Each source is stateless and reads only its own slice;
// map iteration is over sorted keys so a source's output order is stable.
package monitor

import (
	"fmt"
	"sort"
	"time"

	"github.com/autonomos/orchestrator/config"
	"github.com/autonomos/orchestrator/domain"
)

// Source inspects one slice of the snapshot and emits zero or more events.
type Source interface {
	Name() string
	Check(snap *domain.BusinessSnapshot) []domain.Event
}

// Sources returns the full monitor set in aggregation order:
// inventory, sales, vendor, staffing, finance.
func Sources(rules *config.Rules) []Source {
	return []Source{
		&InventorySource{Rules: rules.Inventory},
		&SalesSource{Rules: rules.Sales},
		&VendorSource{Rules: rules.Vendor},
		&StaffingSource{Rules: rules.Staffing},
		&FinanceSource{Rules: rules.Finance},
	}
}

// InventorySource watches days-of-supply per product.
type InventorySource struct {
	Rules config.InventoryRules
}

func (s *InventorySource) Name() string { return "inventory" }

func (s *InventorySource) Check(snap *domain.BusinessSnapshot) []domain.Event {
	var events []domain.Event
	for _, productID := range sortedKeys(snap.InventoryLevels) {
		days := snap.InventoryLevels[productID]
		switch {
		case days <= s.Rules.ReorderPoint:
			severity := domain.SeverityMedium
			if days <= s.Rules.CriticalDays {
				severity = domain.SeverityHigh
			}
			events = append(events, domain.Event{
				Kind:        domain.EventInventoryLow,
				SubjectID:   productID,
				Measurement: days,
				Detail:      fmt.Sprintf("only %.1f days of supply left", days),
				Severity:    severity,
			})
		case days >= s.Rules.MaxStockDays:
			events = append(events, domain.Event{
				Kind:        domain.EventInventoryHigh,
				SubjectID:   productID,
				Measurement: days,
				Detail:      fmt.Sprintf("excess inventory: %.1f days of supply", days),
				Severity:    domain.SeverityMedium,
			})
		}
	}
	return events
}

// SalesSource watches per-product sales velocity for spikes.
type SalesSource struct {
	Rules config.SalesRules
}

func (s *SalesSource) Name() string { return "sales" }

func (s *SalesSource) Check(snap *domain.BusinessSnapshot) []domain.Event {
	var events []domain.Event
	for _, productID := range sortedKeys(snap.SalesVelocity) {
		velocity := snap.SalesVelocity[productID]
		if velocity < s.Rules.FastMovingThreshold {
			continue
		}
		severity := domain.SeverityMedium
		if velocity >= 2*s.Rules.FastMovingThreshold {
			severity = domain.SeverityHigh
		}
		events = append(events, domain.Event{
			Kind:        domain.EventSalesSpike,
			SubjectID:   productID,
			Measurement: velocity,
			Detail:      fmt.Sprintf("selling %.1f units/day", velocity),
			Severity:    severity,
		})
	}
	return events
}

// VendorSource watches vendor on-time delivery performance.
type VendorSource struct {
	Rules config.VendorRules
}

func (s *VendorSource) Name() string { return "vendor" }

func (s *VendorSource) Check(snap *domain.BusinessSnapshot) []domain.Event {
	var events []domain.Event
	for _, vendorID := range sortedKeys(snap.VendorPerformance) {
		onTime := snap.VendorPerformance[vendorID]
		if onTime >= s.Rules.MinOnTimePercent {
			continue
		}
		severity := domain.SeverityMedium
		if onTime < s.Rules.CriticalOnTimePercent {
			severity = domain.SeverityHigh
		}
		events = append(events, domain.Event{
			Kind:        domain.EventVendorDelay,
			SubjectID:   vendorID,
			Measurement: onTime,
			Detail:      fmt.Sprintf("on-time delivery at %.0f%%", onTime),
			Severity:    severity,
		})
	}
	return events
}

// StaffingSource watches shift coverage per role.
type StaffingSource struct {
	Rules config.StaffingRules
}

func (s *StaffingSource) Name() string { return "staffing" }

func (s *StaffingSource) Check(snap *domain.BusinessSnapshot) []domain.Event {
	var events []domain.Event
	for _, role := range sortedStaffKeys(snap.StaffAvailability) {
		available := len(snap.StaffAvailability[role])
		if available >= s.Rules.MinShiftCoverage {
			continue
		}
		severity := domain.SeverityMedium
		if available == 0 {
			severity = domain.SeverityHigh
		}
		events = append(events, domain.Event{
			Kind:        domain.EventStaffShortage,
			SubjectID:   role,
			Measurement: float64(available),
			Detail:      fmt.Sprintf("%d of %d required staff available", available, s.Rules.MinShiftCoverage),
			Severity:    severity,
		})
	}
	return events
}

// FinanceSource watches upcoming bills and the projected cash position.
// Now is injectable for tests; nil means time.Now.
type FinanceSource struct {
	Rules config.FinanceRules
	Now   func() time.Time
}

func (s *FinanceSource) Name() string { return "finance" }

func (s *FinanceSource) Check(snap *domain.BusinessSnapshot) []domain.Event {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	var events []domain.Event
	var dueSoon float64
	for _, bill := range snap.UpcomingBills {
		daysUntil := int(bill.DueDate.Sub(now).Hours() / 24)
		if daysUntil > s.Rules.PaymentDueWindowDays {
			continue
		}
		dueSoon += bill.Amount
		severity := domain.SeverityMedium
		if daysUntil <= s.Rules.PaymentUrgentDays {
			severity = domain.SeverityHigh
		}
		events = append(events, domain.Event{
			Kind:        domain.EventPaymentDue,
			SubjectID:   bill.BillID,
			Measurement: bill.Amount,
			Detail:      fmt.Sprintf("%s: $%.2f due in %d days", bill.Vendor, bill.Amount, daysUntil),
			Severity:    severity,
		})
	}

	projected := snap.CashBalance - dueSoon
	if projected < s.Rules.CashFloor {
		events = append(events, domain.Event{
			Kind:        domain.EventCashFlowWarning,
			SubjectID:   "cash",
			Measurement: projected,
			Detail:      fmt.Sprintf("projected balance $%.2f below floor $%.2f", projected, s.Rules.CashFloor),
			Severity:    domain.SeverityHigh,
		})
	} else if projected < 2*s.Rules.CashFloor {
		events = append(events, domain.Event{
			Kind:        domain.EventCashFlowWarning,
			SubjectID:   "cash",
			Measurement: projected,
			Detail:      fmt.Sprintf("projected balance $%.2f within 2x of floor $%.2f", projected, s.Rules.CashFloor),
			Severity:    domain.SeverityMedium,
		})
	}
	return events
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStaffKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
