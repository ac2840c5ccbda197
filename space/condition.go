package space

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/sspace/ir"
)

// Truth is the result of evaluating a condition against a partial sample.
type Truth int8

const (
	False Truth = iota
	True
	Unknown // a referenced dimension has not been decided yet
)

func (t Truth) String() string {
	switch t {
	case False:
		return "false"
	case True:
		return "true"
	default:
		return "unknown"
	}
}

// Status describes what an environment knows about a name.
type Status int8

const (
	Pending  Status = iota // not decided yet
	Inactive               // decided, and absent from the sample
	Present                // decided, with a value
)

// Env answers lookups while conditions are evaluated.
type Env interface {
	Lookup(name string) (ir.IRValue, Status)
}

// Condition is an immutable predicate over the values of a sample.
//
// Node kinds are closed: comparisons (Eq, Ne, Lt, Gt), membership (In) and
// the connectives AllOf, AnyOf and Not.
type Condition interface {
	// Evaluate computes the tri-state truth of the condition.
	Evaluate(env Env) Truth

	// References returns every name the condition reads, first-seen order.
	References() []string

	String() string

	spec() ir.ConditionSpec
	err() error
}

type comparison struct {
	op    string
	name  string
	value ir.IRValue
	bad   error
}

func newComparison(op, name string, v any) *comparison {
	c := &comparison{op: op, name: name}
	c.value, c.bad = ir.ToIRValue(v)
	if c.bad != nil {
		c.bad = fmt.Errorf("%s %s: %w", name, op, c.bad)
	}
	return c
}

// Eq holds when the named value equals v. Numbers compare by value, so 1 equals 1.0.
func Eq(name string, v any) Condition { return newComparison(ir.OpEq, name, v) }

// Ne holds when the named value is present and differs from v.
func Ne(name string, v any) Condition { return newComparison(ir.OpNe, name, v) }

// Lt holds when the named value is less than v. Numbers compare numerically,
// strings lexically; mismatched kinds never hold.
func Lt(name string, v any) Condition { return newComparison(ir.OpLt, name, v) }

// Gt holds when the named value is greater than v.
func Gt(name string, v any) Condition { return newComparison(ir.OpGt, name, v) }

func (c *comparison) Evaluate(env Env) Truth {
	v, status := env.Lookup(c.name)
	switch status {
	case Pending:
		return Unknown
	case Inactive:
		return False
	}

	var ok bool
	switch c.op {
	case ir.OpEq:
		ok = ir.EqualValues(v, c.value)
	case ir.OpNe:
		ok = !ir.EqualValues(v, c.value)
	case ir.OpLt:
		cmp, comparable := ir.CompareValues(v, c.value)
		ok = comparable && cmp < 0
	case ir.OpGt:
		cmp, comparable := ir.CompareValues(v, c.value)
		ok = comparable && cmp > 0
	}
	return truthOf(ok)
}

func (c *comparison) References() []string { return []string{c.name} }

func (c *comparison) String() string {
	symbols := map[string]string{ir.OpEq: "==", ir.OpNe: "!=", ir.OpLt: "<", ir.OpGt: ">"}
	return fmt.Sprintf("%s %s %s", c.name, symbols[c.op], quoteValue(c.value))
}

func (c *comparison) spec() ir.ConditionSpec {
	return ir.ConditionSpec{Op: c.op, Name: c.name, Value: c.value}
}

func (c *comparison) err() error { return c.bad }

type membership struct {
	name   string
	values []ir.IRValue
	bad    error
}

// In holds when the named value equals any of vs.
func In(name string, vs ...any) Condition {
	m := &membership{name: name}
	m.values, m.bad = ir.ToIRValues(vs)
	if m.bad != nil {
		m.bad = fmt.Errorf("%s in: %w", name, m.bad)
	} else if len(m.values) == 0 {
		m.bad = fmt.Errorf("%s in: at least one value is required", name)
	}
	return m
}

func (m *membership) Evaluate(env Env) Truth {
	v, status := env.Lookup(m.name)
	switch status {
	case Pending:
		return Unknown
	case Inactive:
		return False
	}
	return truthOf(ir.ContainsValue(m.values, v))
}

func (m *membership) References() []string { return []string{m.name} }

func (m *membership) String() string {
	parts := make([]string, len(m.values))
	for i, v := range m.values {
		parts[i] = quoteValue(v)
	}
	return fmt.Sprintf("%s in [%s]", m.name, strings.Join(parts, ", "))
}

func (m *membership) spec() ir.ConditionSpec {
	return ir.ConditionSpec{Op: ir.OpIn, Name: m.name, Values: m.values}
}

func (m *membership) err() error { return m.bad }

type connective struct {
	op       string // ir.OpAnd or ir.OpOr
	children []Condition
}

// AllOf holds when every condition holds.
func AllOf(cs ...Condition) Condition { return &connective{op: ir.OpAnd, children: cs} }

// Both holds when a and b both hold.
func Both(a, b Condition) Condition { return AllOf(a, b) }

// AnyOf holds when at least one condition holds.
func AnyOf(cs ...Condition) Condition { return &connective{op: ir.OpOr, children: cs} }

// Either holds when a or b holds.
func Either(a, b Condition) Condition { return AnyOf(a, b) }

// Evaluate applies Kleene logic: for AllOf, any False child decides False and
// otherwise any Unknown child leaves the result Unknown. AnyOf is the dual.
func (c *connective) Evaluate(env Env) Truth {
	decisive, other := False, True
	if c.op == ir.OpOr {
		decisive, other = True, False
	}

	result := other
	for _, child := range c.children {
		switch child.Evaluate(env) {
		case decisive:
			return decisive
		case Unknown:
			result = Unknown
		}
	}
	return result
}

func (c *connective) References() []string {
	return collectReferences(c.children)
}

func (c *connective) String() string {
	sep := " && "
	if c.op == ir.OpOr {
		sep = " || "
	}
	parts := make([]string, len(c.children))
	for i, child := range c.children {
		parts[i] = child.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (c *connective) spec() ir.ConditionSpec {
	children := make([]ir.ConditionSpec, len(c.children))
	for i, child := range c.children {
		children[i] = child.spec()
	}
	return ir.ConditionSpec{Op: c.op, Children: children}
}

func (c *connective) err() error {
	if len(c.children) == 0 {
		return fmt.Errorf("%s: at least one operand is required", c.op)
	}
	for _, child := range c.children {
		if child == nil {
			return fmt.Errorf("%s: nil operand", c.op)
		}
		if err := child.err(); err != nil {
			return err
		}
	}
	return nil
}

type negation struct {
	child Condition
}

// Not inverts a condition. Unknown stays Unknown.
func Not(c Condition) Condition { return &negation{child: c} }

func (n *negation) Evaluate(env Env) Truth {
	switch n.child.Evaluate(env) {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

func (n *negation) References() []string { return n.child.References() }

func (n *negation) String() string { return "!" + n.child.String() }

func (n *negation) spec() ir.ConditionSpec {
	return ir.ConditionSpec{Op: ir.OpNot, Children: []ir.ConditionSpec{n.child.spec()}}
}

func (n *negation) err() error {
	if n.child == nil {
		return fmt.Errorf("not: nil operand")
	}
	return n.child.err()
}

func truthOf(b bool) Truth {
	if b {
		return True
	}
	return False
}

func quoteValue(v ir.IRValue) string {
	if s, ok := v.(ir.IRString); ok {
		return strconv.Quote(string(s))
	}
	return ir.FormatValue(v)
}

func collectReferences(cs []Condition) []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range cs {
		for _, name := range c.References() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// checkCondition reports a malformed condition tree.
func checkCondition(c Condition) error {
	if c == nil {
		return fmt.Errorf("condition is nil")
	}
	return c.err()
}

// conditionFromSpec rebuilds a condition from its serialized form.
func conditionFromSpec(s ir.ConditionSpec) (Condition, error) {
	var c Condition
	switch {
	case ir.IsComparison(s.Op):
		c = newComparison(s.Op, s.Name, s.Value)
	case s.Op == ir.OpIn:
		vs := make([]any, len(s.Values))
		for i, v := range s.Values {
			vs[i] = v
		}
		c = In(s.Name, vs...)
	case s.Op == ir.OpAnd || s.Op == ir.OpOr:
		children := make([]Condition, len(s.Children))
		for i, child := range s.Children {
			cc, err := conditionFromSpec(child)
			if err != nil {
				return nil, err
			}
			children[i] = cc
		}
		c = &connective{op: s.Op, children: children}
	case s.Op == ir.OpNot:
		if len(s.Children) != 1 {
			return nil, fmt.Errorf("not: expected exactly one operand, got %d", len(s.Children))
		}
		child, err := conditionFromSpec(s.Children[0])
		if err != nil {
			return nil, err
		}
		c = Not(child)
	default:
		return nil, fmt.Errorf("unknown operator %q", s.Op)
	}
	if err := checkCondition(c); err != nil {
		return nil, err
	}
	return c, nil
}
