package distribution_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/credra/credra/distribution"
)

func TestExponentialClosedForms(t *testing.T) {
	d, err := distribution.NewExponential(2)
	require.NoError(t, err)

	require.InDelta(t, 0.5, d.ReservePrice(), 1e-12)
	require.InDelta(t, 0.0, d.VirtualValue(0.5), 1e-12)
	require.InDelta(t, 0.5, d.VirtualValue(1.0), 1e-12)

	alpha, ok := d.StrongRegularityAlpha()
	require.True(t, ok)
	require.Equal(t, 1.0, alpha)

	require.Equal(t, 0.0, d.CDF(0))
	require.InDelta(t, 1-math.Exp(-2), d.CDF(1), 1e-12)
}

func TestUniformClosedForms(t *testing.T) {
	d, err := distribution.NewUniform(0, 10)
	require.NoError(t, err)

	require.InDelta(t, 5.0, d.ReservePrice(), 1e-12)
	require.InDelta(t, 4.0, d.VirtualValue(7), 1e-9)
	require.True(t, math.IsInf(d.VirtualValue(-1), -1))

	alpha, ok := d.StrongRegularityAlpha()
	require.True(t, ok)
	require.Equal(t, 2.0, alpha)
}

func TestUniformReserveNeverBelowSupport(t *testing.T) {
	d, err := distribution.NewUniform(8, 10)
	require.NoError(t, err)
	require.Equal(t, 8.0, d.ReservePrice())
}

func TestParetoClosedForms(t *testing.T) {
	d, err := distribution.NewPareto(2, 2)
	require.NoError(t, err)

	require.Equal(t, 2.0, d.ReservePrice())
	require.InDelta(t, 2.0, d.VirtualValue(4), 1e-12)
	require.True(t, math.IsInf(d.VirtualValue(1), -1))

	alpha, ok := d.StrongRegularityAlpha()
	require.True(t, ok)
	require.InDelta(t, 0.5, alpha, 1e-12)
}

func TestParetoUnitShapeFallsBackToNumericReserve(t *testing.T) {
	// Shape 1 is the equal-revenue boundary: φ is flat at zero on the
	// support, so the numeric search lands on the support floor.
	d, err := distribution.NewPareto(3, 1)
	require.NoError(t, err)

	_, ok := d.StrongRegularityAlpha()
	require.False(t, ok)
	require.InDelta(t, 3.0, d.ReservePrice(), 1e-6)
}

func TestLogNormalNumericReserve(t *testing.T) {
	d, err := distribution.NewLogNormal(0, 1)
	require.NoError(t, err)

	r := d.ReservePrice()
	require.Greater(t, r, 1.0)
	require.Less(t, r, 2.0)
	require.GreaterOrEqual(t, d.VirtualValue(r), 0.0)
	require.Less(t, d.VirtualValue(r-1e-6), 0.0)
}

func TestEqualRevenue(t *testing.T) {
	d, err := distribution.NewEqualRevenue(4)
	require.NoError(t, err)

	require.InDelta(t, 4.0, d.ReservePrice(), 1e-6)
	require.Equal(t, 0.0, d.VirtualValue(5))
	require.True(t, math.IsInf(d.VirtualValue(3), -1))
	require.InDelta(t, 0.5, d.CDF(8), 1e-12)

	_, ok := d.StrongRegularityAlpha()
	require.False(t, ok)
}

func TestNewRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name string
		cfg  distribution.Config
	}{
		{"unknown type", distribution.Config{Type: "triangular"}},
		{"exponential zero rate", distribution.Config{Type: distribution.TypeExponential, Rate: 0}},
		{"exponential negative rate", distribution.Config{Type: distribution.TypeExponential, Rate: -1}},
		{"uniform inverted bounds", distribution.Config{Type: distribution.TypeUniform, Low: 5, High: 2}},
		{"uniform negative low", distribution.Config{Type: distribution.TypeUniform, Low: -1, High: 2}},
		{"pareto zero scale", distribution.Config{Type: distribution.TypePareto, Scale: 0, Shape: 2}},
		{"pareto zero shape", distribution.Config{Type: distribution.TypePareto, Scale: 1, Shape: 0}},
		{"lognormal zero sigma", distribution.Config{Type: distribution.TypeLogNormal, Mu: 0, Sigma: 0}},
		{"equal revenue zero scale", distribution.Config{Type: distribution.TypeEqualRevenue, Scale: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := distribution.New(tt.cfg)
			require.ErrorIs(t, err, distribution.ErrInvalidParams)
		})
	}
}

func TestNewDispatch(t *testing.T) {
	for _, typ := range distribution.ListTypes() {
		cfg := distribution.Config{Type: typ, Rate: 1, Low: 0, High: 10, Scale: 2, Shape: 2, Mu: 0, Sigma: 1}
		d, err := distribution.New(cfg)
		require.NoError(t, err)
		require.Contains(t, d.String(), typ[:4])
	}
}

func TestSamplingIsDeterministicAndInSupport(t *testing.T) {
	d, err := distribution.NewPareto(2, 3)
	require.NoError(t, err)

	r1 := rand.New(rand.NewSource(42))
	r2 := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		a := d.Sample(r1)
		b := d.Sample(r2)
		require.Equal(t, a, b)
		require.GreaterOrEqual(t, a, 2.0)
	}

	u, err := distribution.NewUniform(1, 3)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		v := u.Sample(rng)
		require.GreaterOrEqual(t, v, 1.0)
		require.LessOrEqual(t, v, 3.0)
	}
}
