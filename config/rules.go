package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/autonomos/orchestrator/domain"
)

// Rules holds the business rules that drive the monitors, the EOQ model and
// the autonomy boundary. Loaded from a YAML file; zero-valued fields fall
// back to the defaults below.
type Rules struct {
	Inventory InventoryRules `yaml:"inventory"`
	Sales     SalesRules     `yaml:"sales"`
	Vendor    VendorRules    `yaml:"vendor"`
	Staffing  StaffingRules  `yaml:"staffing"`
	Finance   FinanceRules   `yaml:"finance"`
	Autonomy  AutonomyRules  `yaml:"autonomy"`
	Catalog   []Product      `yaml:"catalog,omitempty"`
	Vendors   []Vendor       `yaml:"vendors,omitempty"`
}

// InventoryRules control the inventory monitor and the reorder computation.
type InventoryRules struct {
	CriticalDays    float64 `yaml:"critical_days"`     // at or below: severity high
	ReorderPoint    float64 `yaml:"reorder_point"`     // at or below: reorder needed
	MaxStockDays    float64 `yaml:"max_stock_days"`    // at or above: excess inventory
	OrderingCost    float64 `yaml:"ordering_cost"`     // fixed cost per order
	HoldingCostRate float64 `yaml:"holding_cost_rate"` // fraction of unit cost
	LeadTimeDays    float64 `yaml:"lead_time_days"`
}

// SalesRules control the sales monitor.
type SalesRules struct {
	FastMovingThreshold float64 `yaml:"fast_moving_threshold"` // units/day
}

// VendorRules control the vendor performance monitor.
type VendorRules struct {
	MinOnTimePercent      float64 `yaml:"min_on_time_percent"`
	CriticalOnTimePercent float64 `yaml:"critical_on_time_percent"`
}

// StaffingRules control the staffing monitor.
type StaffingRules struct {
	MinShiftCoverage int `yaml:"min_shift_coverage"`
}

// FinanceRules control the finance monitor.
type FinanceRules struct {
	CashFloor            float64 `yaml:"cash_floor"`
	PaymentDueWindowDays int     `yaml:"payment_due_window_days"`
	PaymentUrgentDays    int     `yaml:"payment_urgent_days"`
}

// AutonomyRules feed the autonomy policy engine.
type AutonomyRules struct {
	SpendLimit float64 `yaml:"spend_limit"`
	PolicyPath string  `yaml:"policy_path,omitempty"` // optional rego override
}

// Product is a catalog entry for the static vendor directory.
type Product struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	UnitCost float64 `yaml:"unit_cost"`
}

// Vendor is a supplier entry for the static vendor directory.
type Vendor struct {
	ID               string              `yaml:"id"`
	Name             string              `yaml:"name"`
	Price            float64             `yaml:"price"`
	OnTimePercentage float64             `yaml:"on_time_percentage"`
	QualityRating    float64             `yaml:"quality_rating"`
	PaymentTerms     domain.PaymentTerms `yaml:"payment_terms"`
	Products         []string            `yaml:"products"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *Rules {
	return &Rules{
		Inventory: InventoryRules{
			CriticalDays:    3,
			ReorderPoint:    7,
			MaxStockDays:    60,
			OrderingCost:    50,
			HoldingCostRate: 0.20,
			LeadTimeDays:    7,
		},
		Sales: SalesRules{
			FastMovingThreshold: 20,
		},
		Vendor: VendorRules{
			MinOnTimePercent:      80,
			CriticalOnTimePercent: 60,
		},
		Staffing: StaffingRules{
			MinShiftCoverage: 2,
		},
		Finance: FinanceRules{
			CashFloor:            5000,
			PaymentDueWindowDays: 7,
			PaymentUrgentDays:    2,
		},
		Autonomy: AutonomyRules{
			SpendLimit: 500,
		},
	}
}

// LoadRules reads a rules file, filling unset fields from the defaults.
// An empty path returns the defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	applyRuleDefaults(rules)
	return rules, nil
}

func applyRuleDefaults(r *Rules) {
	d := DefaultRules()
	if r.Inventory.CriticalDays == 0 {
		r.Inventory.CriticalDays = d.Inventory.CriticalDays
	}
	if r.Inventory.ReorderPoint == 0 {
		r.Inventory.ReorderPoint = d.Inventory.ReorderPoint
	}
	if r.Inventory.MaxStockDays == 0 {
		r.Inventory.MaxStockDays = d.Inventory.MaxStockDays
	}
	if r.Inventory.OrderingCost == 0 {
		r.Inventory.OrderingCost = d.Inventory.OrderingCost
	}
	if r.Inventory.HoldingCostRate == 0 {
		r.Inventory.HoldingCostRate = d.Inventory.HoldingCostRate
	}
	if r.Inventory.LeadTimeDays == 0 {
		r.Inventory.LeadTimeDays = d.Inventory.LeadTimeDays
	}
	if r.Sales.FastMovingThreshold == 0 {
		r.Sales.FastMovingThreshold = d.Sales.FastMovingThreshold
	}
	if r.Vendor.MinOnTimePercent == 0 {
		r.Vendor.MinOnTimePercent = d.Vendor.MinOnTimePercent
	}
	if r.Vendor.CriticalOnTimePercent == 0 {
		r.Vendor.CriticalOnTimePercent = d.Vendor.CriticalOnTimePercent
	}
	if r.Staffing.MinShiftCoverage == 0 {
		r.Staffing.MinShiftCoverage = d.Staffing.MinShiftCoverage
	}
	if r.Finance.CashFloor == 0 {
		r.Finance.CashFloor = d.Finance.CashFloor
	}
	if r.Finance.PaymentDueWindowDays == 0 {
		r.Finance.PaymentDueWindowDays = d.Finance.PaymentDueWindowDays
	}
	if r.Finance.PaymentUrgentDays == 0 {
		r.Finance.PaymentUrgentDays = d.Finance.PaymentUrgentDays
	}
	if r.Autonomy.SpendLimit == 0 {
		r.Autonomy.SpendLimit = d.Autonomy.SpendLimit
	}
}
