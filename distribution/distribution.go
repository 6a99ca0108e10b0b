// Package distribution provides the bidder value distributions used to
// derive reserve prices and collateral requirements. Every family exposes
// the Myerson virtual value φ(x) = x - (1-F(x))/f(x) and the monopoly
// reserve price r solving φ(r) = 0.
package distribution

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrInvalidParams is the category for rejected distribution, collateral or
// auction parameters. Callers match it with errors.Is.
var ErrInvalidParams = errors.New("invalid parameters")

// Distribution is a bidder value distribution over non-negative reals.
type Distribution interface {
	// CDF is the cumulative distribution function.
	CDF(x float64) float64
	// PDF is the probability density function.
	PDF(x float64) float64
	// VirtualValue is φ(x) = x - (1-F(x))/f(x). It is -Inf wherever the
	// density vanishes.
	VirtualValue(x float64) float64
	// ReservePrice is the Myerson monopoly price, the root of φ.
	ReservePrice() float64
	// StrongRegularityAlpha reports the tight α for which the family is
	// α-strongly regular, when known.
	StrongRegularityAlpha() (float64, bool)
	// Sample draws one valuation.
	Sample(rng *rand.Rand) float64

	fmt.Stringer
}

// epsilon is the IEEE 754 double machine epsilon, below which a density is
// treated as zero.
const epsilon = 2.220446049250313e-16

// VirtualValueFrom derives φ from a family's CDF and PDF. Families with a
// closed form override it to avoid the density quotient near the support
// edges.
func VirtualValueFrom(d Distribution, x float64) float64 {
	f := d.PDF(x)
	if f <= epsilon {
		return math.Inf(-1)
	}
	return x - (1.0-d.CDF(x))/f
}

// NumericReservePrice solves φ(r) = 0 by doubling until a non-negative
// virtual value is bracketed, then bisecting. If 64 doublings never produce
// φ(hi) >= 0 the last hi is returned as a best effort; that happens only for
// families without a finite monopoly price.
func NumericReservePrice(d Distribution) float64 {
	lo := 0.0
	hi := 1.0
	for i := 0; i < 64; i++ {
		if d.VirtualValue(hi) >= 0 {
			break
		}
		hi *= 2
	}
	if d.VirtualValue(hi) < 0 {
		return hi
	}
	for i := 0; i < 96; i++ {
		mid := 0.5 * (lo + hi)
		if d.VirtualValue(mid) >= 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}

const (
	TypeExponential  = "exponential"
	TypeUniform      = "uniform"
	TypePareto       = "pareto"
	TypeLogNormal    = "lognormal"
	TypeEqualRevenue = "equal_revenue"
)

// Config selects and parameterizes a distribution family. Only the fields of
// the selected family are read.
type Config struct {
	Type  string  `json:"type" toml:"type"`
	Rate  float64 `json:"rate,omitempty" toml:"rate,omitempty"`
	Low   float64 `json:"low,omitempty" toml:"low,omitempty"`
	High  float64 `json:"high,omitempty" toml:"high,omitempty"`
	Scale float64 `json:"scale,omitempty" toml:"scale,omitempty"`
	Shape float64 `json:"shape,omitempty" toml:"shape,omitempty"`
	Mu    float64 `json:"mu,omitempty" toml:"mu,omitempty"`
	Sigma float64 `json:"sigma,omitempty" toml:"sigma,omitempty"`
}

// New builds the distribution described by c.
func New(c Config) (Distribution, error) {
	switch c.Type {
	case TypeExponential:
		return NewExponential(c.Rate)
	case TypeUniform:
		return NewUniform(c.Low, c.High)
	case TypePareto:
		return NewPareto(c.Scale, c.Shape)
	case TypeLogNormal:
		return NewLogNormal(c.Mu, c.Sigma)
	case TypeEqualRevenue:
		return NewEqualRevenue(c.Scale)
	default:
		return nil, fmt.Errorf("%w: unknown distribution type %q", ErrInvalidParams, c.Type)
	}
}

// ListTypes returns the supported family names.
func ListTypes() []string {
	return []string{TypeExponential, TypeUniform, TypePareto, TypeLogNormal, TypeEqualRevenue}
}
