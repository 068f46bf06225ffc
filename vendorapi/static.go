package vendorapi

import (
	"context"
	"fmt"

	"github.com/autonomos/orchestrator/config"
	"github.com/autonomos/orchestrator/domain"
)

// Static serves vendor and cost data from the rules file. Used when no
// vendor-data service is configured and by tests.
type Static struct {
	products map[string]config.Product
	vendors  map[string][]domain.VendorCandidate
}

// NewStatic builds a static directory from the rules catalog.
func NewStatic(rules *config.Rules) *Static {
	s := &Static{
		products: make(map[string]config.Product, len(rules.Catalog)),
		vendors:  make(map[string][]domain.VendorCandidate),
	}
	for _, p := range rules.Catalog {
		s.products[p.ID] = p
	}
	for _, v := range rules.Vendors {
		candidate := domain.VendorCandidate{
			VendorID:         v.ID,
			Name:             v.Name,
			Price:            v.Price,
			OnTimePercentage: v.OnTimePercentage,
			QualityRating:    v.QualityRating,
			PaymentTerms:     v.PaymentTerms,
		}
		for _, productID := range v.Products {
			s.vendors[productID] = append(s.vendors[productID], candidate)
		}
	}
	return s
}

func (s *Static) GetAvailableVendors(_ context.Context, productID string) ([]domain.VendorCandidate, error) {
	return s.vendors[productID], nil
}

func (s *Static) GetProductCost(_ context.Context, productID string) (float64, error) {
	p, ok := s.products[productID]
	if !ok {
		return 0, fmt.Errorf("%w: product %s not in catalog", domain.ErrMissingCostData, productID)
	}
	return p.UnitCost, nil
}

func (s *Static) GetProductDetails(_ context.Context, productID string) (domain.ProductDetails, error) {
	p, ok := s.products[productID]
	if !ok {
		return domain.ProductDetails{}, fmt.Errorf("%w: product %s not in catalog", domain.ErrMissingCostData, productID)
	}
	return domain.ProductDetails{Name: p.Name, Cost: p.UnitCost}, nil
}
