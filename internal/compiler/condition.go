package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"

	"github.com/roach88/sspace/ir"
)

// compileActivation parses enable_if: exactly one of all or any, holding a
// non-empty list of conditions.
//
//	enable_if: any: [{eq: {name: "optimizer", value: "adam"}}]
func compileActivation(v cue.Value, path string) (*ir.ActivationSpec, error) {
	mode, body, err := singleField(v, path)
	if err != nil {
		return nil, err
	}
	if mode != ir.ModeAll && mode != ir.ModeAny {
		return nil, &CompileError{
			Field:   ir.FieldPath(path, mode),
			Message: fmt.Sprintf("invalid activation mode %q, must be \"all\" or \"any\"", mode),
			Pos:     body.Pos(),
		}
	}

	field := ir.FieldPath(path, mode)
	conds, err := compileConditions(body, field)
	if err != nil {
		return nil, err
	}
	if len(conds) == 0 {
		return nil, &CompileError{Field: field, Message: "at least one condition is required", Pos: body.Pos()}
	}
	return &ir.ActivationSpec{Mode: mode, Conditions: conds}, nil
}

// compileConditions parses a list of condition trees.
func compileConditions(v cue.Value, path string) ([]ir.ConditionSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: path, Message: "expected a list of conditions", Pos: v.Pos()}
	}

	var conds []ir.ConditionSpec
	for i := 0; iter.Next(); i++ {
		c, err := compileCondition(iter.Value(), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

// compileCondition parses one condition node. A node is a struct with a
// single operator key:
//
//	{eq: {name: "optimizer", value: "adam"}}
//	{in: {name: "layers", values: [1, 2]}}
//	{or: [{...}, {...}]}
//	{not: {...}}
func compileCondition(v cue.Value, path string) (ir.ConditionSpec, error) {
	op, body, err := singleField(v, path)
	if err != nil {
		return ir.ConditionSpec{}, err
	}
	field := ir.FieldPath(path, op)
	spec := ir.ConditionSpec{Op: op}

	switch {
	case ir.IsComparison(op):
		spec.Name, err = compileRefName(body, field)
		if err != nil {
			return spec, err
		}
		valueVal := body.LookupPath(cue.ParsePath("value"))
		if !valueVal.Exists() {
			return spec, &CompileError{Field: field + ".value", Message: "value is required", Pos: body.Pos()}
		}
		spec.Value, err = compileLiteral(valueVal, field+".value")
		if err != nil {
			return spec, err
		}
		err = onlyFields(body, field, "name", "value")

	case op == ir.OpIn:
		spec.Name, err = compileRefName(body, field)
		if err != nil {
			return spec, err
		}
		valuesVal := body.LookupPath(cue.ParsePath("values"))
		if !valuesVal.Exists() {
			return spec, &CompileError{Field: field + ".values", Message: "values is required", Pos: body.Pos()}
		}
		spec.Values, err = compileLiterals(valuesVal, field+".values")
		if err == nil && len(spec.Values) == 0 {
			err = &CompileError{Field: field + ".values", Message: "at least one value is required", Pos: valuesVal.Pos()}
		}
		if err == nil {
			err = onlyFields(body, field, "name", "values")
		}

	case op == ir.OpAnd || op == ir.OpOr:
		spec.Children, err = compileConditions(body, field)
		if err == nil && len(spec.Children) == 0 {
			err = &CompileError{Field: field, Message: "at least one operand is required", Pos: body.Pos()}
		}

	case op == ir.OpNot:
		var child ir.ConditionSpec
		child, err = compileCondition(body, field)
		spec.Children = []ir.ConditionSpec{child}

	default:
		err = &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unknown operator %q", op),
			Pos:     body.Pos(),
		}
	}
	if err != nil {
		return ir.ConditionSpec{}, err
	}
	return spec, nil
}

func compileRefName(body cue.Value, field string) (string, error) {
	nameVal := body.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return "", &CompileError{Field: field + ".name", Message: "name is required", Pos: body.Pos()}
	}
	return compileString(nameVal, field+".name")
}

// singleField returns the only field of a struct, as used by tagged nodes.
func singleField(v cue.Value, path string) (string, cue.Value, error) {
	iter, err := v.Fields()
	if err != nil {
		return "", cue.Value{}, &CompileError{Field: path, Message: "expected a struct", Pos: v.Pos()}
	}

	var (
		label string
		body  cue.Value
		n     int
	)
	for iter.Next() {
		if n == 0 {
			label = iter.Selector().Unquoted()
			body = iter.Value()
		}
		n++
	}
	if n != 1 {
		return "", cue.Value{}, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("expected exactly one key, got %d", n),
			Pos:     v.Pos(),
		}
	}
	return label, body, nil
}

// onlyFields rejects fields of v outside allowed.
func onlyFields(v cue.Value, path string, allowed ...string) error {
	iter, err := v.Fields()
	if err != nil {
		return &CompileError{Field: path, Message: "expected a struct", Pos: v.Pos()}
	}
	for iter.Next() {
		key := iter.Selector().Unquoted()
		if !slices.Contains(allowed, key) {
			return &CompileError{Field: ir.FieldPath(path, key), Message: "unknown field", Pos: iter.Value().Pos()}
		}
	}
	return nil
}
