package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonomos/orchestrator/config"
	"github.com/autonomos/orchestrator/domain"
)

func TestInventorySourceThresholds(t *testing.T) {
	src := &InventorySource{Rules: config.DefaultRules().Inventory}

	tests := []struct {
		name     string
		days     float64
		kind     domain.EventKind
		severity domain.Severity
		none     bool
	}{
		{name: "critical", days: 2, kind: domain.EventInventoryLow, severity: domain.SeverityHigh},
		{name: "critical boundary", days: 3, kind: domain.EventInventoryLow, severity: domain.SeverityHigh},
		{name: "low", days: 5, kind: domain.EventInventoryLow, severity: domain.SeverityMedium},
		{name: "reorder boundary", days: 7, kind: domain.EventInventoryLow, severity: domain.SeverityMedium},
		{name: "healthy low end", days: 7.5, none: true},
		{name: "healthy high end", days: 59, none: true},
		{name: "excess boundary", days: 60, kind: domain.EventInventoryHigh, severity: domain.SeverityMedium},
		{name: "excess", days: 90, kind: domain.EventInventoryHigh, severity: domain.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &domain.BusinessSnapshot{
				InventoryLevels: map[string]float64{"P1": tt.days},
			}
			events := src.Check(snap)
			if tt.none {
				assert.Empty(t, events)
				return
			}
			require.Len(t, events, 1)
			assert.Equal(t, tt.kind, events[0].Kind)
			assert.Equal(t, tt.severity, events[0].Severity)
			assert.Equal(t, "P1", events[0].SubjectID)
			assert.Equal(t, tt.days, events[0].Measurement)
		})
	}
}

func TestInventorySourceStableOrder(t *testing.T) {
	src := &InventorySource{Rules: config.DefaultRules().Inventory}
	snap := &domain.BusinessSnapshot{
		InventoryLevels: map[string]float64{"P3": 1, "P1": 2, "P2": 3},
	}

	for range 5 {
		events := src.Check(snap)
		require.Len(t, events, 3)
		assert.Equal(t, "P1", events[0].SubjectID)
		assert.Equal(t, "P2", events[1].SubjectID)
		assert.Equal(t, "P3", events[2].SubjectID)
	}
}

func TestSalesSourceSpike(t *testing.T) {
	src := &SalesSource{Rules: config.SalesRules{FastMovingThreshold: 20}}
	snap := &domain.BusinessSnapshot{
		SalesVelocity: map[string]float64{"fast": 25, "hot": 45, "slow": 5},
	}

	events := src.Check(snap)
	require.Len(t, events, 2)
	assert.Equal(t, "fast", events[0].SubjectID)
	assert.Equal(t, domain.SeverityMedium, events[0].Severity)
	assert.Equal(t, "hot", events[1].SubjectID)
	assert.Equal(t, domain.SeverityHigh, events[1].Severity)
}

func TestVendorSourceDelay(t *testing.T) {
	src := &VendorSource{Rules: config.VendorRules{MinOnTimePercent: 80, CriticalOnTimePercent: 60}}
	snap := &domain.BusinessSnapshot{
		VendorPerformance: map[string]float64{"good": 95, "late": 70, "bad": 50},
	}

	events := src.Check(snap)
	require.Len(t, events, 2)
	assert.Equal(t, "bad", events[0].SubjectID)
	assert.Equal(t, domain.SeverityHigh, events[0].Severity)
	assert.Equal(t, "late", events[1].SubjectID)
	assert.Equal(t, domain.SeverityMedium, events[1].Severity)
}

func TestStaffingSourceShortage(t *testing.T) {
	src := &StaffingSource{Rules: config.StaffingRules{MinShiftCoverage: 2}}
	snap := &domain.BusinessSnapshot{
		StaffAvailability: map[string][]string{
			"cashier":   {"alice", "bob"},
			"warehouse": {"carol"},
			"delivery":  {},
		},
	}

	events := src.Check(snap)
	require.Len(t, events, 2)
	assert.Equal(t, "delivery", events[0].SubjectID)
	assert.Equal(t, domain.SeverityHigh, events[0].Severity)
	assert.Equal(t, "warehouse", events[1].SubjectID)
	assert.Equal(t, domain.SeverityMedium, events[1].Severity)
}

func TestFinanceSourceBillsAndCash(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	src := &FinanceSource{
		Rules: config.FinanceRules{CashFloor: 5000, PaymentDueWindowDays: 7, PaymentUrgentDays: 2},
		Now:   func() time.Time { return now },
	}

	snap := &domain.BusinessSnapshot{
		CashBalance: 9000,
		UpcomingBills: []domain.Bill{
			{BillID: "b1", Vendor: "Acme", Amount: 3000, DueDate: now.AddDate(0, 0, 1)},
			{BillID: "b2", Vendor: "Globex", Amount: 2000, DueDate: now.AddDate(0, 0, 5)},
			{BillID: "b3", Vendor: "Initech", Amount: 500, DueDate: now.AddDate(0, 0, 30)},
		},
	}

	events := src.Check(snap)
	require.Len(t, events, 3)

	assert.Equal(t, domain.EventPaymentDue, events[0].Kind)
	assert.Equal(t, "b1", events[0].SubjectID)
	assert.Equal(t, domain.SeverityHigh, events[0].Severity)

	assert.Equal(t, domain.EventPaymentDue, events[1].Kind)
	assert.Equal(t, "b2", events[1].SubjectID)
	assert.Equal(t, domain.SeverityMedium, events[1].Severity)

	// 9000 - 5000 due soon = 4000 projected, below the floor.
	assert.Equal(t, domain.EventCashFlowWarning, events[2].Kind)
	assert.Equal(t, domain.SeverityHigh, events[2].Severity)
	assert.Equal(t, 4000.0, events[2].Measurement)
}

func TestFinanceSourceHealthy(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	src := &FinanceSource{
		Rules: config.FinanceRules{CashFloor: 5000, PaymentDueWindowDays: 7, PaymentUrgentDays: 2},
		Now:   func() time.Time { return now },
	}

	snap := &domain.BusinessSnapshot{CashBalance: 50000}
	assert.Empty(t, src.Check(snap))
}

func TestSourcesOrder(t *testing.T) {
	sources := Sources(config.DefaultRules())
	require.Len(t, sources, 5)

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"inventory", "sales", "vendor", "staffing", "finance"}, names)
}
