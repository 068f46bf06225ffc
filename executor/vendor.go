package executor

import (
	"github.com/autonomos/orchestrator/domain"
)

// Scoring weights for vendor selection.
const (
	weightOnTime  = 0.4
	weightPrice   = 0.3
	weightQuality = 0.2
)

// SelectVendor scores the candidates and returns the best one. Score is a
// weighted sum of on-time percentage, price competitiveness relative to the
// cheapest candidate in the pool, quality rating scaled to 0-100, and a
// payment-terms bonus. Ties keep the earlier-listed candidate.
func SelectVendor(candidates []domain.VendorCandidate) (domain.VendorCandidate, error) {
	if len(candidates) == 0 {
		return domain.VendorCandidate{}, domain.ErrNoVendorsFound
	}

	minPrice := candidates[0].Price
	for _, c := range candidates[1:] {
		if c.Price < minPrice {
			minPrice = c.Price
		}
	}

	best := candidates[0]
	bestScore := scoreVendor(candidates[0], minPrice)
	for _, c := range candidates[1:] {
		if s := scoreVendor(c, minPrice); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, nil
}

func scoreVendor(c domain.VendorCandidate, minPrice float64) float64 {
	score := c.OnTimePercentage * weightOnTime

	if c.Price > 0 {
		score += (minPrice / c.Price) * 100 * weightPrice
	}

	score += c.QualityRating * 20 * weightQuality

	switch c.PaymentTerms {
	case domain.TermsNet60:
		score += 10
	case domain.TermsNet30:
		score += 8
	default:
		score += 5
	}
	return score
}
