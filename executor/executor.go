// Package executor carries out approved autonomous actions: reorder
// quantity computation, vendor selection, purchase-order synthesis and the
// narrower acknowledge handlers. Every successful result carries the exact
// snapshot mutation to apply.
package executor

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/autonomos/orchestrator/config"
	"github.com/autonomos/orchestrator/domain"
	"github.com/autonomos/orchestrator/vendorapi"
)

// Executor executes autonomous decisions against the vendor-data boundary.
type Executor struct {
	vendors vendorapi.Directory
	rules   config.InventoryRules
	logger  *zap.Logger
	poSeq   atomic.Int64
	now     func() time.Time
}

// New creates an executor.
func New(vendors vendorapi.Directory, rules config.InventoryRules, logger *zap.Logger) *Executor {
	return &Executor{
		vendors: vendors,
		rules:   rules,
		logger:  logger,
		now:     time.Now,
	}
}

// SetNow overrides the clock. Test hook.
func (e *Executor) SetNow(now func() time.Time) { e.now = now }

// Execute carries out one autonomous decision. The returned result is
// terminal: the orchestrator applies its mutation and logs it, nothing
// re-enters the pipeline within the same cycle.
func (e *Executor) Execute(ctx context.Context, dec domain.Decision, snap *domain.BusinessSnapshot) (*domain.ActionResult, error) {
	if dec.Type != domain.DecisionAutonomous {
		return nil, fmt.Errorf("executor received non-autonomous decision %s", dec.Type)
	}

	switch dec.Event.Event.Kind {
	case domain.EventInventoryLow, domain.EventSalesSpike:
		return e.executeReorder(ctx, dec, snap)
	case domain.EventInventoryHigh:
		return e.executeExcessStock(ctx, dec, snap)
	default:
		return e.executeAcknowledge(dec), nil
	}
}

// executeReorder computes the reorder quantity and issues a purchase order.
func (e *Executor) executeReorder(ctx context.Context, dec domain.Decision, snap *domain.BusinessSnapshot) (*domain.ActionResult, error) {
	productID := dec.Event.Event.SubjectID
	velocity := snap.SalesVelocity[productID]

	plan, err := e.ReorderPlan(ctx, productID, velocity)
	if err != nil {
		return nil, err
	}

	po, err := e.createPurchaseOrder(ctx, productID, float64(plan.RecommendedOrder))
	if err != nil {
		return nil, err
	}

	e.logger.Info("purchase order issued",
		zap.String("po_number", po.PONumber),
		zap.String("product_id", productID),
		zap.Int("quantity", plan.RecommendedOrder),
		zap.Float64("total", po.TotalAmount))

	return &domain.ActionResult{
		Decision:      dec,
		Summary:       fmt.Sprintf("ordered %d units of %s from %s (%s)", plan.RecommendedOrder, productID, po.VendorName, po.PONumber),
		PurchaseOrder: po,
		ReorderPlan:   plan,
		Mutation: &domain.SnapshotMutation{
			AppendOrder: po,
			CashDelta:   -po.TotalAmount,
		},
	}, nil
}

// executeExcessStock analyzes an overstocked product. No order is placed;
// the reorder plan is attached so the owner can see the target level.
func (e *Executor) executeExcessStock(ctx context.Context, dec domain.Decision, snap *domain.BusinessSnapshot) (*domain.ActionResult, error) {
	productID := dec.Event.Event.SubjectID
	plan, err := e.ReorderPlan(ctx, productID, snap.SalesVelocity[productID])
	if err != nil {
		return nil, err
	}

	return &domain.ActionResult{
		Decision:    dec,
		Summary:     fmt.Sprintf("holding replenishment of %s at %.1f days of supply", productID, dec.Event.Event.Measurement),
		ReorderPlan: plan,
	}, nil
}

// executeAcknowledge handles the non-procurement kinds: the action is
// recorded for the decision trail, no state changes.
func (e *Executor) executeAcknowledge(dec domain.Decision) *domain.ActionResult {
	e.logger.Info("action acknowledged",
		zap.String("kind", string(dec.Event.Event.Kind)),
		zap.String("subject", dec.Event.Event.SubjectID),
		zap.String("action", dec.Action))

	return &domain.ActionResult{
		Decision: dec,
		Summary:  fmt.Sprintf("%s applied to %s", dec.Action, dec.Event.Event.SubjectID),
	}
}

// ReorderPlan computes the Economic Order Quantity for a product:
//
//	EOQ = sqrt(2 * annualDemand * orderingCost / (holdingCostRate * unitCost))
//
// with safety stock at 1.5x lead-time demand. The recommended order is the
// larger of the two, rounded to whole units.
func (e *Executor) ReorderPlan(ctx context.Context, productID string, velocity float64) (*domain.ReorderPlan, error) {
	unitCost, err := e.vendors.GetProductCost(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingCostData, productID)
	}
	if unitCost <= 0 {
		return nil, fmt.Errorf("%w: %s has no unit cost", domain.ErrMissingCostData, productID)
	}

	annualDemand := velocity * 365
	eoq := math.Sqrt((2 * annualDemand * e.rules.OrderingCost) / (e.rules.HoldingCostRate * unitCost))
	safetyStock := velocity * e.rules.LeadTimeDays * 1.5

	return &domain.ReorderPlan{
		ProductID:        productID,
		EOQ:              eoq,
		SafetyStock:      safetyStock,
		RecommendedOrder: int(math.Round(math.Max(eoq, safetyStock))),
		ExpectedDelivery: e.now().AddDate(0, 0, int(e.rules.LeadTimeDays)),
	}, nil
}

// createPurchaseOrder picks a vendor and synthesizes the order record.
// PO numbers are PO-YYYYMMDD-NNN with a process-lifetime running count.
func (e *Executor) createPurchaseOrder(ctx context.Context, productID string, quantity float64) (*domain.PurchaseOrder, error) {
	candidates, err := e.vendors.GetAvailableVendors(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vendors for %s: %w", productID, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoVendorAvailable, productID)
	}

	vendor, err := SelectVendor(candidates)
	if err != nil {
		return nil, err
	}

	details, err := e.vendors.GetProductDetails(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingCostData, productID)
	}

	now := e.now()
	poNumber := fmt.Sprintf("PO-%s-%03d", now.Format("20060102"), e.poSeq.Add(1))
	total := quantity * vendor.Price

	return &domain.PurchaseOrder{
		PONumber:   poNumber,
		Date:       now,
		VendorID:   vendor.VendorID,
		VendorName: vendor.Name,
		Items: []domain.LineItem{{
			ProductID:   productID,
			Description: details.Name,
			Quantity:    quantity,
			UnitPrice:   vendor.Price,
			Total:       total,
		}},
		TotalAmount: total,
		Terms:       "Net 30",
		Status:      domain.PurchaseOrderStatusPending,
	}, nil
}
