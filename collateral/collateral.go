// Package collateral computes the per-bidder deposit that makes deviation
// from the deferred-revelation protocol unprofitable.
package collateral

import (
	"fmt"
	"math"

	"github.com/credra/credra/distribution"
)

// Requirement is the collateral function f(n, D, α) of Theorem 21: for an
// α-strongly regular distribution and n buyers, posting this deposit per bid
// bounds the auctioneer's gain from withholding reveals. For α >= 1 the
// reserve price itself suffices; below that the requirement grows as
// r(D) · (n/α)^((1-α)/α) · (1/(1-α))^(1/α).
func Requirement(n int, d distribution.Distribution, alpha float64) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: number of buyers must be positive, got %d", distribution.ErrInvalidParams, n)
	}
	if alpha <= 0 || math.IsNaN(alpha) {
		return 0, fmt.Errorf("%w: alpha must be positive, got %v", distribution.ErrInvalidParams, alpha)
	}
	reserve := d.ReservePrice()
	if alpha >= 1 {
		return reserve, nil
	}
	nTerm := math.Pow(float64(n)/alpha, (1-alpha)/alpha)
	hazardTerm := math.Pow(1/(1-alpha), 1/alpha)
	return reserve * nTerm * hazardTerm, nil
}

// ValidateAlpha rejects an α exceeding the distribution's strong-regularity
// bound. Families without a known bound accept any positive α; the
// collateral then carries no credibility guarantee, which is the
// equal-revenue caveat of Theorem 25.
func ValidateAlpha(d distribution.Distribution, alpha float64) error {
	if alpha <= 0 || math.IsNaN(alpha) {
		return fmt.Errorf("%w: alpha must be positive, got %v", distribution.ErrInvalidParams, alpha)
	}
	bound, ok := d.StrongRegularityAlpha()
	if !ok {
		return nil
	}
	if alpha > bound+2.220446049250313e-16 {
		return fmt.Errorf("%w: alpha %v exceeds the strong-regularity bound %v of %s",
			distribution.ErrInvalidParams, alpha, bound, d)
	}
	return nil
}
