package space

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sspace/internal/testutil"
	"github.com/roach88/sspace/ir"
)

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsConfigurationError(err), "expected ConfigurationError, got %T: %v", err, err)
	assert.Equal(t, code, ErrorCodeOf(err), err.Error())
}

func TestNewUniform_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper float64
	}{
		{"equal bounds", 1, 1},
		{"reversed", 2, 1},
		{"nan", math.NaN(), 1},
		{"infinite", 0, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUniform(tt.lower, tt.upper)
			requireCode(t, err, ErrCodeInvalidDistribution)
		})
	}
}

func TestNewLogUniform_RequiresPositiveLower(t *testing.T) {
	_, err := NewLogUniform(0, 1)
	requireCode(t, err, ErrCodeInvalidDistribution)

	_, err = NewLogUniform(-1, 1)
	requireCode(t, err, ErrCodeInvalidDistribution)
}

func TestNewNormal_RequiresPositiveScale(t *testing.T) {
	_, err := NewNormal(0, 0)
	requireCode(t, err, ErrCodeInvalidDistribution)

	_, err = NewLogNormal(0, -1)
	requireCode(t, err, ErrCodeInvalidDistribution)
}

func TestUniform_DrawWithinBounds(t *testing.T) {
	u, err := NewUniform(-2, 3)
	require.NoError(t, err)

	rng := testutil.NewRand(1)
	for i := 0; i < 1000; i++ {
		v := u.Draw(rng)
		require.IsType(t, ir.IRFloat(0), v)
		f := float64(v.(ir.IRFloat))
		require.True(t, f >= -2 && f <= 3, "draw %v out of bounds", f)
		require.True(t, u.Contains(v))
	}
}

func TestUniform_LowerBoundDraw(t *testing.T) {
	u, err := NewUniform(0.5, 1.5)
	require.NoError(t, err)

	v := u.Draw(testutil.NewSequenceSource(0).Rand())
	assert.Equal(t, ir.IRFloat(0.5), v)
}

func TestUniform_Discrete(t *testing.T) {
	u, err := NewUniform(0.5, 3.7, Discrete())
	require.NoError(t, err)

	seen := make(map[ir.IRValue]bool)
	rng := testutil.NewRand(2)
	for i := 0; i < 500; i++ {
		v := u.Draw(rng)
		require.IsType(t, ir.IRInt(0), v)
		seen[v] = true
	}
	assert.Equal(t, map[ir.IRValue]bool{ir.IRInt(1): true, ir.IRInt(2): true, ir.IRInt(3): true}, seen)

	assert.True(t, u.Contains(ir.IRInt(2)))
	assert.True(t, u.Contains(ir.IRFloat(2)))
	assert.False(t, u.Contains(ir.IRFloat(2.5)))
	assert.False(t, u.Contains(ir.IRInt(4)))
}

func TestUniform_DiscreteQuantized(t *testing.T) {
	u, err := NewUniform(0, 10, Discrete(), Quantization(5))
	require.NoError(t, err)

	rng := testutil.NewRand(3)
	for i := 0; i < 200; i++ {
		v := u.Draw(rng)
		assert.Contains(t, []ir.IRValue{ir.IRInt(0), ir.IRInt(5), ir.IRInt(10)}, v)
	}
	assert.False(t, u.Contains(ir.IRInt(3)))
}

func TestUniform_DiscreteRangeMustFitInt64(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper float64
	}{
		{"upper past int64", 0, 1e19},
		{"lower past int64", -1e19, 0},
		{"span past int64", -9e18, 9e18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUniform(tt.lower, tt.upper, Discrete())
			requireCode(t, err, ErrCodeInvalidQuantization)
		})
	}

	_, err := NewLogUniform(1, 1e19, Discrete())
	requireCode(t, err, ErrCodeInvalidQuantization)

	u, err := NewUniform(-1e18, 1e18, Discrete())
	require.NoError(t, err)
	rng := testutil.NewRand(4)
	for i := 0; i < 100; i++ {
		v := u.Draw(rng)
		require.IsType(t, ir.IRInt(0), v)
		assert.True(t, u.Contains(v))
	}

	s := New()
	_, err = s.Uniform("x", 0, 1e19, Discrete())
	requireCode(t, err, ErrCodeInvalidQuantization)
	assert.Nil(t, s.Dimension("x"))
}

func TestQuantization_SnapsToGrid(t *testing.T) {
	tests := []struct {
		name string
		dist func() (Distribution, error)
		base float64
		step float64
	}{
		{"uniform", func() (Distribution, error) { return NewUniform(0, 1, Quantization(0.1)) }, 0, 0.1},
		{"uniform offset", func() (Distribution, error) { return NewUniform(0.05, 2, Quantization(0.25)) }, 0.05, 0.25},
		{"loguniform", func() (Distribution, error) { return NewLogUniform(1, 2, Quantization(0.01)) }, 1, 0.01},
		{"normal", func() (Distribution, error) { return NewNormal(3, 2, Quantization(0.5)) }, 0, 0.5},
		{"lognormal", func() (Distribution, error) { return NewLogNormal(0, 1, Quantization(0.2)) }, 0, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, err := tt.dist()
			require.NoError(t, err)

			rng := testutil.NewRand(4)
			for i := 0; i < 500; i++ {
				v := dist.Draw(rng)
				f, ok := ir.AsFloat(v)
				require.True(t, ok)

				k := (f - tt.base) / tt.step
				assert.InDelta(t, math.Round(k), k, 1e-9, "draw %v is off the grid", f)
				assert.True(t, dist.Contains(v), "draw %v not contained", f)
			}
		})
	}
}

func TestQuantization_StaysInBounds(t *testing.T) {
	// The top grid point 0.9 is the last one inside [0, 0.95].
	u, err := NewUniform(0, 0.95, Quantization(0.3))
	require.NoError(t, err)

	v := u.Draw(testutil.Fractions(0.999).Rand())
	assert.Equal(t, ir.IRFloat(0.9), v)
}

func TestQuantization_RoundsToStepPrecision(t *testing.T) {
	u, err := NewUniform(1, 2, Quantization(0.1))
	require.NoError(t, err)

	// 1 + 0.3*1 lands near 1.3 but must be exactly 1.3 after rounding.
	v := u.Draw(testutil.Fractions(0.3).Rand())
	assert.Equal(t, ir.IRFloat(1.3), v)
}

func TestQuantization_Invalid(t *testing.T) {
	tests := []struct {
		name string
		make func() error
	}{
		{"zero step", func() error { _, err := NewUniform(0, 1, Quantization(0)); return err }},
		{"negative step", func() error { _, err := NewUniform(0, 1, Quantization(-0.1)); return err }},
		{"nan step", func() error { _, err := NewNormal(0, 1, Quantization(math.NaN())); return err }},
		{"fractional step on discrete", func() error { _, err := NewUniform(0, 10, Discrete(), Quantization(0.5)); return err }},
		{"no integer in bounds", func() error { _, err := NewUniform(0.2, 0.8, Discrete()); return err }},
		{"no integer in log bounds", func() error { _, err := NewLogUniform(1.1, 1.9, Discrete()); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireCode(t, tt.make(), ErrCodeInvalidQuantization)
		})
	}
}

func TestNormal_Discrete(t *testing.T) {
	n, err := NewNormal(10, 3, Discrete())
	require.NoError(t, err)

	rng := testutil.NewRand(5)
	for i := 0; i < 200; i++ {
		require.IsType(t, ir.IRInt(0), n.Draw(rng))
	}
}

func TestLogNormal_Positive(t *testing.T) {
	n, err := NewLogNormal(0, 1)
	require.NoError(t, err)

	rng := testutil.NewRand(6)
	for i := 0; i < 200; i++ {
		f, _ := ir.AsFloat(n.Draw(rng))
		require.Greater(t, f, 0.0)
	}
	assert.False(t, n.Contains(ir.IRFloat(-1)))
}

func TestCategorical_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		choices []ir.IRValue
		weights []float64
	}{
		{"empty", nil, nil},
		{"duplicate", []ir.IRValue{ir.IRString("a"), ir.IRString("a")}, nil},
		{"numeric duplicate", []ir.IRValue{ir.IRInt(1), ir.IRFloat(1)}, nil},
		{"weight count", []ir.IRValue{ir.IRString("a"), ir.IRString("b")}, []float64{1}},
		{"negative weight", []ir.IRValue{ir.IRString("a"), ir.IRString("b")}, []float64{1, -1}},
		{"zero sum", []ir.IRValue{ir.IRString("a"), ir.IRString("b")}, []float64{0, 0}},
		{"nan weight", []ir.IRValue{ir.IRString("a")}, []float64{math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCategorical(tt.choices, tt.weights)
			requireCode(t, err, ErrCodeInvalidDistribution)
		})
	}
}

func TestCategorical_Weighted(t *testing.T) {
	c, err := NewCategorical([]ir.IRValue{ir.IRString("a"), ir.IRString("b")}, []float64{1, 3})
	require.NoError(t, err)

	// r = u * 4: below 1 picks a, otherwise b
	rng := testutil.Fractions(0.2, 0.5, 0.0, 0.99).Rand()
	assert.Equal(t, ir.IRString("a"), c.Draw(rng))
	assert.Equal(t, ir.IRString("b"), c.Draw(rng))
	assert.Equal(t, ir.IRString("a"), c.Draw(rng))
	assert.Equal(t, ir.IRString("b"), c.Draw(rng))
}

func TestCategorical_ZeroWeightNeverDrawn(t *testing.T) {
	c, err := NewCategorical([]ir.IRValue{ir.IRString("never"), ir.IRString("always")}, []float64{0, 1})
	require.NoError(t, err)

	rng := testutil.NewRand(7)
	for i := 0; i < 200; i++ {
		require.Equal(t, ir.IRString("always"), c.Draw(rng))
	}
}

func TestCategorical_UniformCoversChoices(t *testing.T) {
	choices := []ir.IRValue{ir.IRString("sgd"), ir.IRString("adam"), ir.IRInt(3), ir.IRBool(true)}
	c, err := NewCategorical(choices, nil)
	require.NoError(t, err)

	seen := make(map[ir.IRValue]bool)
	rng := testutil.NewRand(8)
	for i := 0; i < 400; i++ {
		v := c.Draw(rng)
		require.True(t, c.Contains(v))
		seen[v] = true
	}
	assert.Len(t, seen, len(choices))
	assert.False(t, c.Contains(ir.IRString("rmsprop")))
}

func TestOrdinal(t *testing.T) {
	o, err := NewOrdinal([]ir.IRValue{ir.IRString("low"), ir.IRString("mid"), ir.IRString("high")})
	require.NoError(t, err)

	assert.Equal(t, 2, o.Rank(ir.IRString("high")))
	assert.Equal(t, -1, o.Rank(ir.IRString("none")))
	assert.Equal(t, ir.IRString("low"), o.Draw(testutil.NewSequenceSource(0).Rand()))

	_, err = NewOrdinal(nil)
	requireCode(t, err, ErrCodeInvalidDistribution)
}

func TestRange(t *testing.T) {
	r := Range[int]{Lower: 1, Upper: 3}
	assert.True(t, r.Contains(1))
	assert.True(t, r.Contains(3))
	assert.False(t, r.Contains(4))
	assert.Equal(t, 2, r.Span())
	assert.Equal(t, 3, r.Clamp(9))
	assert.False(t, r.Empty())
	assert.True(t, Range[float64]{Lower: 1, Upper: 0}.Empty())
}
