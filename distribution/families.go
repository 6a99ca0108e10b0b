package distribution

import (
	"fmt"
	"math"
	"math/rand"
)

// Exponential is the exponential family with rate λ. It is 1-strongly
// regular and its monopoly price is 1/λ.
type Exponential struct {
	Rate float64
}

// NewExponential returns the exponential distribution with the given rate.
func NewExponential(rate float64) (*Exponential, error) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("%w: exponential rate must be positive, got %v", ErrInvalidParams, rate)
	}
	return &Exponential{Rate: rate}, nil
}

func (e *Exponential) CDF(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return 1 - math.Exp(-e.Rate*x)
}

func (e *Exponential) PDF(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return e.Rate * math.Exp(-e.Rate*x)
}

func (e *Exponential) VirtualValue(x float64) float64 {
	return x - 1/e.Rate
}

func (e *Exponential) ReservePrice() float64 {
	return 1 / e.Rate
}

func (e *Exponential) StrongRegularityAlpha() (float64, bool) {
	return 1, true
}

func (e *Exponential) Sample(rng *rand.Rand) float64 {
	return rng.ExpFloat64() / e.Rate
}

func (e *Exponential) String() string {
	return fmt.Sprintf("exponential(rate=%g)", e.Rate)
}

// Uniform is the uniform family on [Low, High]. It is 2-strongly regular.
type Uniform struct {
	Low  float64
	High float64
}

// NewUniform returns the uniform distribution on [low, high].
func NewUniform(low, high float64) (*Uniform, error) {
	if low < 0 || !(low < high) || math.IsNaN(high) || math.IsInf(high, 0) {
		return nil, fmt.Errorf("%w: uniform requires 0 <= low < high, got [%v, %v]", ErrInvalidParams, low, high)
	}
	return &Uniform{Low: low, High: high}, nil
}

func (u *Uniform) CDF(x float64) float64 {
	switch {
	case x <= u.Low:
		return 0
	case x >= u.High:
		return 1
	default:
		return (x - u.Low) / (u.High - u.Low)
	}
}

func (u *Uniform) PDF(x float64) float64 {
	if x < u.Low || x > u.High {
		return 0
	}
	return 1 / (u.High - u.Low)
}

func (u *Uniform) VirtualValue(x float64) float64 {
	return VirtualValueFrom(u, x)
}

func (u *Uniform) ReservePrice() float64 {
	// φ(x) = 2x - high has its root at high/2. A price below the support
	// floor cannot bind.
	return math.Max(u.Low, 0.5*u.High)
}

func (u *Uniform) StrongRegularityAlpha() (float64, bool) {
	// φ'(x) = 2 everywhere on the support.
	return 2, true
}

func (u *Uniform) Sample(rng *rand.Rand) float64 {
	return u.Low + rng.Float64()*(u.High-u.Low)
}

func (u *Uniform) String() string {
	return fmt.Sprintf("uniform(%g, %g)", u.Low, u.High)
}

// Pareto is the Pareto family with minimum Scale and tail index Shape.
// For Shape > 1 the monopoly price sits at the bottom of the support; at
// Shape = 1 the family degenerates into the equal-revenue distribution and
// below that no finite monopoly price exists.
type Pareto struct {
	Scale float64
	Shape float64
}

// NewPareto returns the Pareto distribution with minimum scale and tail
// index shape.
func NewPareto(scale, shape float64) (*Pareto, error) {
	if scale <= 0 || shape <= 0 || math.IsNaN(scale) || math.IsNaN(shape) {
		return nil, fmt.Errorf("%w: pareto requires scale > 0 and shape > 0, got scale=%v shape=%v",
			ErrInvalidParams, scale, shape)
	}
	return &Pareto{Scale: scale, Shape: shape}, nil
}

func (p *Pareto) CDF(x float64) float64 {
	if x < p.Scale {
		return 0
	}
	return 1 - math.Pow(p.Scale/x, p.Shape)
}

func (p *Pareto) PDF(x float64) float64 {
	if x < p.Scale {
		return 0
	}
	return p.Shape * math.Pow(p.Scale, p.Shape) / math.Pow(x, p.Shape+1)
}

func (p *Pareto) VirtualValue(x float64) float64 {
	if x < p.Scale {
		return math.Inf(-1)
	}
	// (1-F)/f = x/shape, so φ(x) = x(1 - 1/shape).
	return x * (1 - 1/p.Shape)
}

func (p *Pareto) ReservePrice() float64 {
	if p.Shape > 1 {
		return p.Scale
	}
	return NumericReservePrice(p)
}

func (p *Pareto) StrongRegularityAlpha() (float64, bool) {
	if p.Shape > 1 {
		return 1 - 1/p.Shape, true
	}
	return 0, false
}

func (p *Pareto) Sample(rng *rand.Rand) float64 {
	return p.Scale * math.Pow(1-rng.Float64(), -1/p.Shape)
}

func (p *Pareto) String() string {
	return fmt.Sprintf("pareto(scale=%g, shape=%g)", p.Scale, p.Shape)
}

// LogNormal is the log-normal family: ln X ~ N(Mu, Sigma²). Its monopoly
// price has no closed form and is found numerically.
type LogNormal struct {
	Mu    float64
	Sigma float64
}

// NewLogNormal returns the log-normal distribution with location mu and
// shape sigma.
func NewLogNormal(mu, sigma float64) (*LogNormal, error) {
	if sigma <= 0 || math.IsNaN(mu) || math.IsNaN(sigma) {
		return nil, fmt.Errorf("%w: lognormal requires sigma > 0, got mu=%v sigma=%v", ErrInvalidParams, mu, sigma)
	}
	return &LogNormal{Mu: mu, Sigma: sigma}, nil
}

func (l *LogNormal) CDF(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return 0.5 * math.Erfc(-(math.Log(x)-l.Mu)/(l.Sigma*math.Sqrt2))
}

func (l *LogNormal) PDF(x float64) float64 {
	if x <= 0 {
		return 0
	}
	d := (math.Log(x) - l.Mu) / l.Sigma
	return math.Exp(-0.5*d*d) / (x * l.Sigma * math.Sqrt(2*math.Pi))
}

func (l *LogNormal) VirtualValue(x float64) float64 {
	return VirtualValueFrom(l, x)
}

func (l *LogNormal) ReservePrice() float64 {
	return NumericReservePrice(l)
}

func (l *LogNormal) StrongRegularityAlpha() (float64, bool) {
	return 0, false
}

func (l *LogNormal) Sample(rng *rand.Rand) float64 {
	return math.Exp(l.Mu + l.Sigma*rng.NormFloat64())
}

func (l *LogNormal) String() string {
	return fmt.Sprintf("lognormal(mu=%g, sigma=%g)", l.Mu, l.Sigma)
}

// EqualRevenue is the equal-revenue distribution F(x) = 1 - scale/x on
// [scale, ∞): every posted price on the support yields the same revenue, the
// virtual value is identically zero there and the expectation is unbounded.
// No strong-regularity certificate exists for it.
type EqualRevenue struct {
	Scale float64
}

// NewEqualRevenue returns the equal-revenue distribution with support
// starting at scale.
func NewEqualRevenue(scale float64) (*EqualRevenue, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: equal_revenue scale must be positive, got %v", ErrInvalidParams, scale)
	}
	return &EqualRevenue{Scale: scale}, nil
}

func (e *EqualRevenue) CDF(x float64) float64 {
	if x < e.Scale {
		return 0
	}
	return 1 - e.Scale/x
}

func (e *EqualRevenue) PDF(x float64) float64 {
	if x < e.Scale {
		return 0
	}
	return e.Scale / (x * x)
}

func (e *EqualRevenue) VirtualValue(x float64) float64 {
	if x < e.Scale {
		return math.Inf(-1)
	}
	// (1-F)/f = x on the support.
	return 0
}

func (e *EqualRevenue) ReservePrice() float64 {
	return NumericReservePrice(e)
}

func (e *EqualRevenue) StrongRegularityAlpha() (float64, bool) {
	return 0, false
}

func (e *EqualRevenue) Sample(rng *rand.Rand) float64 {
	return e.Scale / (1 - rng.Float64())
}

func (e *EqualRevenue) String() string {
	return fmt.Sprintf("equal_revenue(scale=%g)", e.Scale)
}
