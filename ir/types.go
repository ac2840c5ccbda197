package ir

// Dimension kinds.
const (
	KindUniform     = "uniform"
	KindLogUniform  = "loguniform"
	KindNormal      = "normal"
	KindLogNormal   = "lognormal"
	KindCategorical = "categorical"
	KindOrdinal     = "ordinal"
)

// ValidKinds defines the dimension kinds a document may use.
var ValidKinds = map[string]bool{
	KindUniform:     true,
	KindLogUniform:  true,
	KindNormal:      true,
	KindLogNormal:   true,
	KindCategorical: true,
	KindOrdinal:     true,
}

// Condition operators.
const (
	OpEq  = "eq"
	OpNe  = "ne"
	OpLt  = "lt"
	OpGt  = "gt"
	OpIn  = "in"
	OpAnd = "and"
	OpOr  = "or"
	OpNot = "not"
)

// ValidOps defines the condition operators a document may use.
var ValidOps = map[string]bool{
	OpEq: true, OpNe: true, OpLt: true, OpGt: true, OpIn: true,
	OpAnd: true, OpOr: true, OpNot: true,
}

// IsComparison reports whether op compares a dimension against one literal.
func IsComparison(op string) bool {
	return op == OpEq || op == OpNe || op == OpLt || op == OpGt
}

// Activation modes for enable conditions.
const (
	ModeAll = "all" // every condition must hold
	ModeAny = "any" // at least one condition must hold
)

// Identity formats.
const (
	IdentityHex  = "hex"
	IdentityUUID = "uuid"
)

// Document is the serialized form of a space.
// Dimension order is significant and is preserved by every codec.
type Document struct {
	Version    string
	Dimensions []DimensionSpec
	Variables  []string      // externally supplied names, in declaration order
	Subspaces  []string      // registered subspace prefixes
	Identity   *IdentitySpec // optional
}

// DimensionSpec is the serialized form of one dimension.
// Which parameters are set depends on Kind:
//   - uniform, loguniform: Lower, Upper, Discrete, Quantization
//   - normal, lognormal: Loc, Scale, Discrete, Quantization
//   - categorical: Choices, Weights
//   - ordinal: Choices
type DimensionSpec struct {
	Name         string
	Kind         string
	Lower        *float64
	Upper        *float64
	Loc          *float64
	Scale        *float64
	Discrete     bool
	Quantization *float64
	Choices      []IRValue
	Weights      []float64
	EnableIf     *ActivationSpec // nil when always active
	Forbid       []ConditionSpec
}

// ActivationSpec holds the enable conditions of a dimension.
type ActivationSpec struct {
	Mode       string // ModeAll or ModeAny
	Conditions []ConditionSpec
}

// ConditionSpec is the serialized form of a condition tree node.
//
// Comparisons (eq, ne, lt, gt) use Name and Value, membership (in) uses Name
// and Values, and/or use Children, not uses exactly one child.
type ConditionSpec struct {
	Op       string
	Name     string
	Value    IRValue
	Values   []IRValue
	Children []ConditionSpec
}

// IdentitySpec configures the identity field added to each sample.
type IdentitySpec struct {
	Name   string
	Size   int    // hex digest length, ignored for uuid
	Format string // IdentityHex or IdentityUUID
}

// References returns every dimension name a condition tree mentions,
// in first-seen order without duplicates.
func (c ConditionSpec) References() []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(ConditionSpec)
	walk = func(n ConditionSpec) {
		if n.Name != "" && !seen[n.Name] {
			seen[n.Name] = true
			names = append(names, n.Name)
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(c)
	return names
}

// Dimension returns the spec with the given name, or nil.
func (d *Document) Dimension(name string) *DimensionSpec {
	for i := range d.Dimensions {
		if d.Dimensions[i].Name == name {
			return &d.Dimensions[i]
		}
	}
	return nil
}

// Float64 returns a pointer to f, for filling optional parameters.
func Float64(f float64) *float64 {
	return &f
}
