package compiler

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/sspace/internal/depgraph"
	"github.com/roach88/sspace/ir"
)

// Validation error codes (E100-E199)
const (
	// Document errors (E100-E109)
	ErrUnsupportedVersion = "E100" // version is not ir.DocumentVersion
	ErrInvalidName        = "E101" // empty name or trailing dot
	ErrDuplicateName      = "E102" // name declared twice
	ErrInvalidIdentity    = "E103" // identity size or format

	// Dimension errors (E110-E119)
	ErrUnknownKind         = "E110" // kind is not a known distribution
	ErrMissingParameter    = "E111" // required parameter absent
	ErrForeignParameter    = "E112" // parameter does not belong to the kind
	ErrInvalidParameter    = "E113" // bounds, loc or scale out of range
	ErrInvalidChoices      = "E114" // empty or repeated choices
	ErrInvalidWeights      = "E115" // weights mismatch choices or sum to zero
	ErrInvalidQuantization = "E116" // quantization can produce no value

	// Condition errors (E120-E129)
	ErrInvalidCondition = "E120" // malformed condition tree
	ErrUnknownReference = "E121" // condition names nothing declared
	ErrForbidScope      = "E122" // forbid references another dimension
	ErrActivationCycle  = "E123" // enable conditions depend on themselves
)

// ValidationError represents a document validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// parameters lists the parameters each kind accepts, required ones first.
var parameters = map[string]struct {
	required []string
	optional []string
}{
	ir.KindUniform:     {required: []string{"lower", "upper"}, optional: []string{"discrete", "quantization"}},
	ir.KindLogUniform:  {required: []string{"lower", "upper"}, optional: []string{"discrete", "quantization"}},
	ir.KindNormal:      {required: []string{"loc", "scale"}, optional: []string{"discrete", "quantization"}},
	ir.KindLogNormal:   {required: []string{"loc", "scale"}, optional: []string{"discrete", "quantization"}},
	ir.KindCategorical: {required: []string{"choices"}, optional: []string{"weights"}},
	ir.KindOrdinal:     {required: []string{"choices"}},
}

// Validate checks a document against the rules a space enforces.
// Returns all errors found (does not fail-fast), in document order.
func Validate(doc *ir.Document) []ValidationError {
	v := &validator{names: make(map[string]bool)}

	if doc.Version != ir.DocumentVersion {
		v.add("version", ErrUnsupportedVersion, "unsupported version %q, expected %q", doc.Version, ir.DocumentVersion)
	}

	for i, name := range doc.Variables {
		v.declare(fmt.Sprintf("variables[%d]", i), name)
	}
	for i, name := range doc.Subspaces {
		v.declare(fmt.Sprintf("subspaces[%d]", i), name)
	}
	for _, dim := range doc.Dimensions {
		v.declare(ir.FieldPath("space", dim.Name), dim.Name)
	}
	if id := doc.Identity; id != nil {
		v.declare("identity.name", id.Name)
		v.identity(id)
	}

	known := make(map[string]bool, len(doc.Dimensions)+len(doc.Variables))
	for _, dim := range doc.Dimensions {
		known[dim.Name] = true
	}
	for _, name := range doc.Variables {
		known[name] = true
	}

	for _, dim := range doc.Dimensions {
		v.dimension(dim, known)
	}
	v.cycles(doc)

	return v.errs
}

type validator struct {
	errs  []ValidationError
	names map[string]bool
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) declare(field, name string) {
	if name == "" || strings.HasSuffix(name, ".") {
		v.add(field, ErrInvalidName, "name %q must be non-empty and must not end with a dot", name)
		return
	}
	if v.names[name] {
		v.add(field, ErrDuplicateName, "name %q is already declared", name)
		return
	}
	v.names[name] = true
}

func (v *validator) identity(id *ir.IdentitySpec) {
	switch id.Format {
	case ir.IdentityHex, "":
		if id.Size < 1 || id.Size > 64 {
			v.add("identity.size", ErrInvalidIdentity, "identity size must be in 1..64, got %d", id.Size)
		}
	case ir.IdentityUUID:
	default:
		v.add("identity.format", ErrInvalidIdentity, "unknown identity format %q", id.Format)
	}
}

func (v *validator) dimension(dim ir.DimensionSpec, known map[string]bool) {
	path := ir.FieldPath("space", dim.Name)

	params, ok := parameters[dim.Kind]
	if !ok {
		v.add(path+".kind", ErrUnknownKind, "unknown dimension kind %q", dim.Kind)
		return
	}

	present := presentParameters(dim)
	allowed := make(map[string]bool)
	for _, p := range params.required {
		allowed[p] = true
		if !present[p] {
			v.add(path+"."+p, ErrMissingParameter, "%s requires %s", dim.Kind, p)
		}
	}
	for _, p := range params.optional {
		allowed[p] = true
	}
	for _, p := range []string{"lower", "upper", "loc", "scale", "discrete", "quantization", "choices", "weights"} {
		if present[p] && !allowed[p] {
			v.add(path+"."+p, ErrForeignParameter, "%s is not allowed for kind %q", p, dim.Kind)
		}
	}

	switch dim.Kind {
	case ir.KindUniform, ir.KindLogUniform:
		v.bounds(dim, path)
	case ir.KindNormal, ir.KindLogNormal:
		if dim.Scale != nil && !(*dim.Scale > 0 && finite(*dim.Scale)) {
			v.add(path+".scale", ErrInvalidParameter, "scale must be positive and finite, got %v", *dim.Scale)
		}
		if dim.Loc != nil && !finite(*dim.Loc) {
			v.add(path+".loc", ErrInvalidParameter, "loc must be finite, got %v", *dim.Loc)
		}
		lower := math.Inf(-1)
		if dim.Kind == ir.KindLogNormal {
			lower = 0
		}
		v.quantization(dim, path, lower, math.Inf(1))
	case ir.KindCategorical, ir.KindOrdinal:
		v.choices(dim, path)
	}

	if act := dim.EnableIf; act != nil {
		field := path + ".enable_if"
		if act.Mode != ir.ModeAll && act.Mode != ir.ModeAny {
			v.add(field, ErrInvalidCondition, "invalid activation mode %q", act.Mode)
		} else {
			field = ir.FieldPath(field, act.Mode)
		}
		if len(act.Conditions) == 0 {
			v.add(field, ErrInvalidCondition, "at least one condition is required")
		}
		for i, c := range act.Conditions {
			cp := fmt.Sprintf("%s[%d]", field, i)
			v.condition(c, cp)
			for _, ref := range c.References() {
				if !known[ref] {
					v.add(cp, ErrUnknownReference, "condition references unknown name %q", ref)
				}
			}
		}
	}

	for i, f := range dim.Forbid {
		fp := fmt.Sprintf("%s.forbid[%d]", path, i)
		v.condition(f, fp)
		for _, ref := range f.References() {
			if ref != dim.Name {
				v.add(fp, ErrForbidScope, "forbid expression references %q; only %q may be referenced", ref, dim.Name)
			}
		}
	}
}

func presentParameters(dim ir.DimensionSpec) map[string]bool {
	return map[string]bool{
		"lower":        dim.Lower != nil,
		"upper":        dim.Upper != nil,
		"loc":          dim.Loc != nil,
		"scale":        dim.Scale != nil,
		"discrete":     dim.Discrete,
		"quantization": dim.Quantization != nil,
		"choices":      dim.Choices != nil,
		"weights":      dim.Weights != nil,
	}
}

func (v *validator) bounds(dim ir.DimensionSpec, path string) {
	if dim.Lower == nil || dim.Upper == nil {
		return
	}
	lower, upper := *dim.Lower, *dim.Upper
	switch {
	case !finite(lower) || !finite(upper) || lower >= upper:
		v.add(path, ErrInvalidParameter, "%s requires finite lower < upper, got [%v, %v]", dim.Kind, lower, upper)
		return
	case dim.Kind == ir.KindLogUniform && lower <= 0:
		v.add(path+".lower", ErrInvalidParameter, "loguniform requires lower > 0, got %v", lower)
		return
	}
	v.quantization(dim, path, lower, upper)
}

func (v *validator) quantization(dim ir.DimensionSpec, path string, lower, upper float64) {
	if q := dim.Quantization; q != nil {
		switch {
		case !(*q > 0) || !finite(*q):
			v.add(path+".quantization", ErrInvalidQuantization, "quantization step must be positive and finite, got %v", *q)
			return
		case dim.Discrete && *q != math.Trunc(*q):
			v.add(path+".quantization", ErrInvalidQuantization, "discrete dimensions need an integral quantization step, got %v", *q)
			return
		}
	}
	if dim.Discrete && finite(lower) && finite(upper) && math.Ceil(lower) > math.Floor(upper) {
		v.add(path, ErrInvalidQuantization, "no integer within [%v, %v]", lower, upper)
	}
}

func (v *validator) choices(dim ir.DimensionSpec, path string) {
	if dim.Choices == nil {
		return
	}
	if len(dim.Choices) == 0 {
		v.add(path+".choices", ErrInvalidChoices, "%s requires at least one choice", dim.Kind)
	}
	for i, c := range dim.Choices {
		if ir.ContainsValue(dim.Choices[:i], c) {
			v.add(fmt.Sprintf("%s.choices[%d]", path, i), ErrInvalidChoices, "choice %s is repeated", ir.FormatValue(c))
		}
	}

	if dim.Weights == nil {
		return
	}
	if len(dim.Weights) != len(dim.Choices) {
		v.add(path+".weights", ErrInvalidWeights, "%d choices but %d weights", len(dim.Choices), len(dim.Weights))
		return
	}
	total := 0.0
	for i, w := range dim.Weights {
		if !finite(w) || w < 0 {
			v.add(fmt.Sprintf("%s.weights[%d]", path, i), ErrInvalidWeights, "weight must be finite and non-negative, got %v", w)
			return
		}
		total += w
	}
	if total <= 0 {
		v.add(path+".weights", ErrInvalidWeights, "weights must have a positive sum")
	}
}

// condition checks the shape of a condition tree.
func (v *validator) condition(c ir.ConditionSpec, path string) {
	field := ir.FieldPath(path, c.Op)
	switch {
	case ir.IsComparison(c.Op):
		if c.Name == "" {
			v.add(field+".name", ErrInvalidCondition, "name is required")
		}
		if c.Value == nil {
			v.add(field+".value", ErrInvalidCondition, "value is required")
		}
	case c.Op == ir.OpIn:
		if c.Name == "" {
			v.add(field+".name", ErrInvalidCondition, "name is required")
		}
		if len(c.Values) == 0 {
			v.add(field+".values", ErrInvalidCondition, "at least one value is required")
		}
	case c.Op == ir.OpAnd || c.Op == ir.OpOr:
		if len(c.Children) == 0 {
			v.add(field, ErrInvalidCondition, "at least one operand is required")
		}
		for i, child := range c.Children {
			v.condition(child, fmt.Sprintf("%s[%d]", field, i))
		}
	case c.Op == ir.OpNot:
		if len(c.Children) != 1 {
			v.add(field, ErrInvalidCondition, "expected exactly one operand, got %d", len(c.Children))
			return
		}
		v.condition(c.Children[0], field)
	default:
		v.add(path, ErrInvalidCondition, "unknown operator %q", c.Op)
	}
}

// cycles reports activation cycles among dimensions.
func (v *validator) cycles(doc *ir.Document) {
	g := depgraph.New()
	dims := make(map[string]bool, len(doc.Dimensions))
	for _, dim := range doc.Dimensions {
		dims[dim.Name] = true
	}
	for _, dim := range doc.Dimensions {
		g.AddNode(dim.Name)
		if dim.EnableIf == nil {
			continue
		}
		for _, c := range dim.EnableIf.Conditions {
			for _, ref := range c.References() {
				if dims[ref] {
					g.AddEdge(dim.Name, ref)
				}
			}
		}
	}

	for _, c := range g.Cycles() {
		v.add(ir.FieldPath("space", c.Path[0])+".enable_if", ErrActivationCycle,
			"activation conditions form a cycle: %s", c.String())
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
