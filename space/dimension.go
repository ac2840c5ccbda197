package space

import (
	"slices"

	"github.com/roach88/sspace/ir"
)

// Dimension is one named variable of a space.
//
// Its distribution is fixed at creation. Enable conditions and forbid
// expressions are appended afterwards, until the space is frozen by its
// first sample.
type Dimension struct {
	space      *state
	name       string
	dist       Distribution
	mode       string // "", ir.ModeAll or ir.ModeAny
	conditions []Condition
	forbids    []Condition
}

// Name returns the full (dotted) name of the dimension.
func (d *Dimension) Name() string { return d.name }

// Distribution returns the distribution the dimension draws from.
func (d *Dimension) Distribution() Distribution { return d.dist }

// Conditions returns the enable conditions and their activation mode.
// The mode is "" when the dimension is always active.
func (d *Dimension) Conditions() (string, []Condition) {
	return d.mode, slices.Clone(d.conditions)
}

// Forbids returns the forbid expressions.
func (d *Dimension) Forbids() []Condition {
	return slices.Clone(d.forbids)
}

// EnableIf makes the dimension active only when c holds. Repeated calls add
// further conditions that must all hold.
func (d *Dimension) EnableIf(c Condition) error {
	return d.addConditions(ir.ModeAll, []Condition{c})
}

// EnableIfAny makes the dimension active when at least one of cs holds.
// Repeated calls add further alternatives. A dimension cannot mix EnableIf
// and EnableIfAny.
func (d *Dimension) EnableIfAny(cs ...Condition) error {
	if len(cs) == 0 {
		return configErr(ErrCodeInvalidCondition, d.name, "EnableIfAny requires at least one condition")
	}
	return d.addConditions(ir.ModeAny, cs)
}

func (d *Dimension) addConditions(mode string, cs []Condition) error {
	d.space.mu.Lock()
	defer d.space.mu.Unlock()

	if d.space.frozen {
		return NewFrozenError(d.name)
	}
	if d.mode != "" && d.mode != mode {
		return configErr(ErrCodeMixedActivation, d.name,
			"cannot combine %q and %q activation on one dimension", d.mode, mode)
	}
	for _, c := range cs {
		if err := checkCondition(c); err != nil {
			return configErr(ErrCodeInvalidCondition, d.name, "%v", err)
		}
	}

	d.mode = mode
	d.conditions = append(d.conditions, cs...)
	return nil
}

// Forbid rejects any candidate value for which c holds. The condition may
// only reference this dimension.
func (d *Dimension) Forbid(c Condition) error {
	d.space.mu.Lock()
	defer d.space.mu.Unlock()

	if d.space.frozen {
		return NewFrozenError(d.name)
	}
	if err := checkCondition(c); err != nil {
		return configErr(ErrCodeInvalidCondition, d.name, "%v", err)
	}
	for _, ref := range c.References() {
		if ref != d.name {
			return configErr(ErrCodeForbidScope, d.name,
				"forbid expression references %q; only %q may be referenced", ref, d.name)
		}
	}

	d.forbids = append(d.forbids, c)
	return nil
}

// ForbidEqual rejects the candidate value v.
func (d *Dimension) ForbidEqual(v any) error {
	return d.Forbid(Eq(d.name, v))
}

// ForbidIn rejects every candidate value in vs.
func (d *Dimension) ForbidIn(vs ...any) error {
	return d.Forbid(In(d.name, vs...))
}

// Eligibility evaluates the enable conditions against a partial sample.
// A dimension without conditions is always eligible.
func (d *Dimension) Eligibility(env Env) Truth {
	switch len(d.conditions) {
	case 0:
		return True
	case 1:
		return d.conditions[0].Evaluate(env)
	}
	if d.mode == ir.ModeAny {
		return AnyOf(d.conditions...).Evaluate(env)
	}
	return AllOf(d.conditions...).Evaluate(env)
}

// Forbidden reports whether any forbid expression holds for candidate v.
func (d *Dimension) Forbidden(v ir.IRValue) bool {
	env := candidateEnv{name: d.name, value: v}
	for _, f := range d.forbids {
		if f.Evaluate(env) == True {
			return true
		}
	}
	return false
}

// dependencies returns the names the enable conditions read.
func (d *Dimension) dependencies() []string {
	return collectReferences(d.conditions)
}

// candidateEnv exposes a single candidate value; every other name is inactive.
type candidateEnv struct {
	name  string
	value ir.IRValue
}

func (e candidateEnv) Lookup(name string) (ir.IRValue, Status) {
	if name == e.name {
		return e.value, Present
	}
	return nil, Inactive
}

// spec converts the dimension to its serialized form.
func (d *Dimension) spec() ir.DimensionSpec {
	s := ir.DimensionSpec{Name: d.name}
	d.dist.fill(&s)

	if len(d.conditions) > 0 {
		act := &ir.ActivationSpec{Mode: d.mode}
		for _, c := range d.conditions {
			act.Conditions = append(act.Conditions, c.spec())
		}
		s.EnableIf = act
	}
	for _, f := range d.forbids {
		s.Forbid = append(s.Forbid, f.spec())
	}
	return s
}
