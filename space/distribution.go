package space

import (
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/roach88/sspace/ir"
)

// Distribution generates the values of one dimension.
//
// The set of distributions is closed: Uniform, LogUniform, Normal, LogNormal,
// Categorical and Ordinal. Draw is deterministic given the generator state.
type Distribution interface {
	// Kind returns the serialized kind name, e.g. "loguniform".
	Kind() string

	// Draw produces one value from the distribution.
	Draw(rng *rand.Rand) ir.IRValue

	// Contains reports whether v can be produced by Draw.
	Contains(v ir.IRValue) bool

	// fill writes the distribution parameters into a dimension spec.
	fill(spec *ir.DimensionSpec)
}

// NumericOption configures a numeric distribution.
type NumericOption func(*numeric)

// Discrete makes a numeric distribution draw integers.
func Discrete() NumericOption {
	return func(n *numeric) {
		n.discrete = true
	}
}

// Quantization snaps every draw to a multiple of step, counted from the lower
// bound for uniform kinds and from zero for normal kinds.
func Quantization(step float64) NumericOption {
	return func(n *numeric) {
		n.quantization = step
		n.hasStep = true
	}
}

// numeric holds the options shared by the four numeric kinds.
type numeric struct {
	discrete     bool
	quantization float64
	hasStep      bool
	grid         *grid // nil for plain continuous draws
}

// IsDiscrete reports whether the distribution draws integers.
func (n numeric) IsDiscrete() bool {
	return n.discrete
}

// Step returns the quantization step, if one was configured.
func (n numeric) Step() (float64, bool) {
	return n.quantization, n.hasStep
}

func (n numeric) fillOptions(spec *ir.DimensionSpec) {
	spec.Discrete = n.discrete
	if n.hasStep {
		spec.Quantization = ir.Float64(n.quantization)
	}
}

func (n numeric) finish(f float64) ir.IRValue {
	if n.grid != nil {
		f = n.grid.snap(f)
	}
	if n.discrete {
		return ir.IRInt(int64(f))
	}
	return ir.IRFloat(f)
}

func (n numeric) contains(v ir.IRValue, support Range[float64]) bool {
	f, ok := ir.AsFloat(v)
	if !ok || !isFinite(f) || !support.Contains(f) {
		return false
	}
	if n.discrete && f != math.Trunc(f) {
		return false
	}
	if n.grid != nil {
		return n.grid.onGrid(f)
	}
	return true
}

// grid is the lattice origin + k*step with k restricted to a range.
type grid struct {
	origin   float64
	step     float64
	k        Range[float64]
	decimals int
}

const gridTolerance = 1e-9

// int64Bound is 2^63, the first float64 above math.MaxInt64.
const int64Bound = 1 << 63

func (g *grid) snap(x float64) float64 {
	k := g.k.Clamp(math.Round((x - g.origin) / g.step))
	return roundTo(g.origin+k*g.step, g.decimals)
}

func (g *grid) onGrid(f float64) bool {
	k := (f - g.origin) / g.step
	kr := math.Round(k)
	return math.Abs(k-kr) <= 1e-6 && g.k.Contains(kr)
}

// newNumeric applies options and builds the quantization grid over support.
// An infinite lower end anchors the grid at zero.
func newNumeric(opts []NumericOption, support Range[float64]) (numeric, error) {
	var n numeric
	for _, opt := range opts {
		opt(&n)
	}

	if n.hasStep {
		q := n.quantization
		if !(q > 0) || !isFinite(q) {
			return n, configErr(ErrCodeInvalidQuantization, "", "quantization step must be positive and finite, got %v", q)
		}
		if n.discrete && q != math.Trunc(q) {
			return n, configErr(ErrCodeInvalidQuantization, "", "discrete dimensions need an integral quantization step, got %v", q)
		}
	}
	if !n.discrete && !n.hasStep {
		return n, nil
	}

	g := &grid{step: 1}
	if n.hasStep {
		g.step = n.quantization
	}
	if !n.discrete {
		g.decimals = decimals(g.step)
	}

	if math.IsInf(support.Lower, -1) {
		g.origin = 0
		g.k.Lower = math.Inf(-1)
	} else {
		g.origin = support.Lower
		if n.discrete {
			g.origin = math.Ceil(support.Lower)
			if g.origin > math.Floor(support.Upper) {
				return n, configErr(ErrCodeInvalidQuantization, "", "no integer within [%v, %v]", support.Lower, support.Upper)
			}
		} else {
			g.decimals = max(g.decimals, decimals(g.origin))
		}
	}
	g.k.Upper = math.Floor((support.Upper-g.origin)/g.step + gridTolerance)

	// Discrete draws index the lattice with Int63n and return int64 values.
	if n.discrete && isFinite(support.Upper) &&
		(g.origin < -int64Bound || math.Floor(support.Upper) >= int64Bound || g.k.Upper >= int64Bound) {
		return n, configErr(ErrCodeInvalidQuantization, "", "integer range [%v, %v] does not fit in int64", support.Lower, support.Upper)
	}

	n.grid = g
	return n, nil
}

// decimals returns the number of fractional digits in the shortest
// representation of f.
func decimals(f float64) int {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func roundTo(f float64, digits int) float64 {
	if digits > 15 {
		return f
	}
	p := math.Pow10(digits)
	return math.Round(f*p) / p
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func invalidDist(format string, args ...any) *ConfigurationError {
	return configErr(ErrCodeInvalidDistribution, "", format, args...)
}

// Uniform draws uniformly from [lower, upper].
type Uniform struct {
	numeric
	bounds Range[float64]
}

// NewUniform creates a uniform distribution. Requires finite lower < upper.
func NewUniform(lower, upper float64, opts ...NumericOption) (*Uniform, error) {
	if !isFinite(lower) || !isFinite(upper) || lower >= upper {
		return nil, invalidDist("uniform requires finite lower < upper, got [%v, %v]", lower, upper)
	}
	bounds := Range[float64]{Lower: lower, Upper: upper}
	n, err := newNumeric(opts, bounds)
	if err != nil {
		return nil, err
	}
	return &Uniform{numeric: n, bounds: bounds}, nil
}

func (u *Uniform) Kind() string { return ir.KindUniform }

// Bounds returns the support of the distribution.
func (u *Uniform) Bounds() Range[float64] { return u.bounds }

func (u *Uniform) Draw(rng *rand.Rand) ir.IRValue {
	if u.discrete {
		// Every lattice point is equally likely.
		k := rng.Int63n(int64(u.grid.k.Upper) + 1)
		return ir.IRInt(int64(u.grid.origin) + k*int64(u.grid.step))
	}
	return u.finish(u.bounds.Lower + rng.Float64()*u.bounds.Span())
}

func (u *Uniform) Contains(v ir.IRValue) bool {
	return u.contains(v, u.bounds)
}

func (u *Uniform) fill(spec *ir.DimensionSpec) {
	spec.Kind = ir.KindUniform
	spec.Lower = ir.Float64(u.bounds.Lower)
	spec.Upper = ir.Float64(u.bounds.Upper)
	u.fillOptions(spec)
}

// LogUniform draws values whose logarithm is uniform on [log lower, log upper].
type LogUniform struct {
	numeric
	bounds Range[float64]
}

// NewLogUniform creates a log-uniform distribution. Requires 0 < lower < upper.
func NewLogUniform(lower, upper float64, opts ...NumericOption) (*LogUniform, error) {
	if !isFinite(lower) || !isFinite(upper) || lower <= 0 || lower >= upper {
		return nil, invalidDist("loguniform requires finite 0 < lower < upper, got [%v, %v]", lower, upper)
	}
	bounds := Range[float64]{Lower: lower, Upper: upper}
	n, err := newNumeric(opts, bounds)
	if err != nil {
		return nil, err
	}
	return &LogUniform{numeric: n, bounds: bounds}, nil
}

func (l *LogUniform) Kind() string { return ir.KindLogUniform }

// Bounds returns the support of the distribution.
func (l *LogUniform) Bounds() Range[float64] { return l.bounds }

func (l *LogUniform) Draw(rng *rand.Rand) ir.IRValue {
	lo, hi := math.Log(l.bounds.Lower), math.Log(l.bounds.Upper)
	x := math.Exp(lo + rng.Float64()*(hi-lo))
	return l.finish(l.bounds.Clamp(x))
}

func (l *LogUniform) Contains(v ir.IRValue) bool {
	return l.contains(v, l.bounds)
}

func (l *LogUniform) fill(spec *ir.DimensionSpec) {
	spec.Kind = ir.KindLogUniform
	spec.Lower = ir.Float64(l.bounds.Lower)
	spec.Upper = ir.Float64(l.bounds.Upper)
	l.fillOptions(spec)
}

// Normal draws from a Gaussian with mean loc and standard deviation scale.
type Normal struct {
	numeric
	loc, scale float64
}

// NewNormal creates a normal distribution. Requires a finite loc and scale > 0.
func NewNormal(loc, scale float64, opts ...NumericOption) (*Normal, error) {
	if !isFinite(loc) || !isFinite(scale) || scale <= 0 {
		return nil, invalidDist("normal requires finite loc and scale > 0, got loc=%v scale=%v", loc, scale)
	}
	n, err := newNumeric(opts, Range[float64]{Lower: math.Inf(-1), Upper: math.Inf(1)})
	if err != nil {
		return nil, err
	}
	return &Normal{numeric: n, loc: loc, scale: scale}, nil
}

func (d *Normal) Kind() string { return ir.KindNormal }

// Params returns the mean and standard deviation.
func (d *Normal) Params() (loc, scale float64) { return d.loc, d.scale }

func (d *Normal) Draw(rng *rand.Rand) ir.IRValue {
	return d.finish(d.loc + d.scale*rng.NormFloat64())
}

func (d *Normal) Contains(v ir.IRValue) bool {
	return d.contains(v, Range[float64]{Lower: math.Inf(-1), Upper: math.Inf(1)})
}

func (d *Normal) fill(spec *ir.DimensionSpec) {
	spec.Kind = ir.KindNormal
	spec.Loc = ir.Float64(d.loc)
	spec.Scale = ir.Float64(d.scale)
	d.fillOptions(spec)
}

// LogNormal draws exp(X) where X is normal with mean loc and deviation scale.
type LogNormal struct {
	numeric
	loc, scale float64
}

// NewLogNormal creates a log-normal distribution. Requires a finite loc and scale > 0.
func NewLogNormal(loc, scale float64, opts ...NumericOption) (*LogNormal, error) {
	if !isFinite(loc) || !isFinite(scale) || scale <= 0 {
		return nil, invalidDist("lognormal requires finite loc and scale > 0, got loc=%v scale=%v", loc, scale)
	}
	n, err := newNumeric(opts, Range[float64]{Lower: 0, Upper: math.Inf(1)})
	if err != nil {
		return nil, err
	}
	return &LogNormal{numeric: n, loc: loc, scale: scale}, nil
}

func (d *LogNormal) Kind() string { return ir.KindLogNormal }

// Params returns the mean and standard deviation of the underlying normal.
func (d *LogNormal) Params() (loc, scale float64) { return d.loc, d.scale }

func (d *LogNormal) Draw(rng *rand.Rand) ir.IRValue {
	return d.finish(math.Exp(d.loc + d.scale*rng.NormFloat64()))
}

func (d *LogNormal) Contains(v ir.IRValue) bool {
	return d.contains(v, Range[float64]{Lower: 0, Upper: math.Inf(1)})
}

func (d *LogNormal) fill(spec *ir.DimensionSpec) {
	spec.Kind = ir.KindLogNormal
	spec.Loc = ir.Float64(d.loc)
	spec.Scale = ir.Float64(d.scale)
	d.fillOptions(spec)
}

// Categorical draws one of a fixed set of choices, optionally weighted.
type Categorical struct {
	choices    []ir.IRValue
	weights    []float64 // nil for uniform choice
	cumulative []float64
}

// NewCategorical creates a categorical distribution.
// Choices must be non-empty and unique. Weights, when given, must match the
// choices one to one, be non-negative and have a positive sum.
func NewCategorical(choices []ir.IRValue, weights []float64) (*Categorical, error) {
	if err := checkChoices(ir.KindCategorical, choices); err != nil {
		return nil, err
	}
	c := &Categorical{choices: choices}
	if weights == nil {
		return c, nil
	}

	if len(weights) != len(choices) {
		return nil, invalidDist("categorical has %d choices but %d weights", len(choices), len(weights))
	}
	total := 0.0
	c.cumulative = make([]float64, len(weights))
	for i, w := range weights {
		if !isFinite(w) || w < 0 {
			return nil, invalidDist("categorical weight %d must be finite and non-negative, got %v", i, w)
		}
		total += w
		c.cumulative[i] = total
	}
	if total <= 0 {
		return nil, invalidDist("categorical weights must have a positive sum")
	}
	c.weights = weights
	return c, nil
}

func checkChoices(kind string, choices []ir.IRValue) error {
	if len(choices) == 0 {
		return invalidDist("%s requires at least one choice", kind)
	}
	for i, c := range choices {
		if c == nil {
			return invalidDist("%s choice %d is not a literal", kind, i)
		}
		if ir.ContainsValue(choices[:i], c) {
			return invalidDist("%s choice %s is repeated", kind, ir.FormatValue(c))
		}
	}
	return nil
}

func (c *Categorical) Kind() string { return ir.KindCategorical }

// Choices returns the choices in declaration order.
func (c *Categorical) Choices() []ir.IRValue { return c.choices }

// Weights returns the choice weights, or nil for a uniform choice.
func (c *Categorical) Weights() []float64 { return c.weights }

func (c *Categorical) Draw(rng *rand.Rand) ir.IRValue {
	if c.weights == nil {
		return c.choices[rng.Intn(len(c.choices))]
	}
	r := rng.Float64() * c.cumulative[len(c.cumulative)-1]
	for i, cum := range c.cumulative {
		if r < cum {
			return c.choices[i]
		}
	}
	return c.choices[len(c.choices)-1]
}

func (c *Categorical) Contains(v ir.IRValue) bool {
	return ir.ContainsValue(c.choices, v)
}

func (c *Categorical) fill(spec *ir.DimensionSpec) {
	spec.Kind = ir.KindCategorical
	spec.Choices = c.choices
	spec.Weights = c.weights
}

// Ordinal draws uniformly from an ordered list of choices.
type Ordinal struct {
	choices []ir.IRValue
}

// NewOrdinal creates an ordinal distribution. Choices must be non-empty and unique.
func NewOrdinal(choices []ir.IRValue) (*Ordinal, error) {
	if err := checkChoices(ir.KindOrdinal, choices); err != nil {
		return nil, err
	}
	return &Ordinal{choices: choices}, nil
}

func (o *Ordinal) Kind() string { return ir.KindOrdinal }

// Choices returns the choices in rank order.
func (o *Ordinal) Choices() []ir.IRValue { return o.choices }

// Rank returns the position of v among the choices, or -1.
func (o *Ordinal) Rank(v ir.IRValue) int {
	for i, c := range o.choices {
		if ir.EqualValues(c, v) {
			return i
		}
	}
	return -1
}

func (o *Ordinal) Draw(rng *rand.Rand) ir.IRValue {
	return o.choices[rng.Intn(len(o.choices))]
}

func (o *Ordinal) Contains(v ir.IRValue) bool {
	return o.Rank(v) >= 0
}

func (o *Ordinal) fill(spec *ir.DimensionSpec) {
	spec.Kind = ir.KindOrdinal
	spec.Choices = o.choices
}
