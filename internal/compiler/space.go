package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sspace/ir"
)

// CompileSpace parses a CUE value into a space document.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value is the root of a definition, e.g.:
//
//	space: {
//		optimizer: {kind: "categorical", choices: ["sgd", "adam"]}
//		"optimizer.lr": {
//			kind: "loguniform", lower: 1e-4, upper: 1
//			enable_if: all: [{eq: {name: "optimizer", value: "adam"}}]
//		}
//	}
//	variables: ["epoch"]
//	identity: {name: "uid", size: 16}
//
// Field order inside space becomes dimension order. CUE integers become
// IRInt literals and CUE floats IRFloat literals, so 1 and 1.0 stay distinct.
func CompileSpace(v cue.Value) (*ir.Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	doc := &ir.Document{Version: ir.DocumentVersion}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	hasSpace := false
	for iter.Next() {
		label := iter.Selector().Unquoted()
		val := iter.Value()

		switch label {
		case "version":
			doc.Version, err = compileString(val, "version")
		case "space":
			hasSpace = true
			doc.Dimensions, err = compileDimensions(val)
		case "variables":
			doc.Variables, err = compileStrings(val, "variables")
		case "subspaces":
			doc.Subspaces, err = compileStrings(val, "subspaces")
		case "identity":
			doc.Identity, err = compileIdentity(val)
		default:
			err = &CompileError{Field: label, Message: "unknown field", Pos: val.Pos()}
		}
		if err != nil {
			return nil, err
		}
	}

	if !hasSpace {
		return nil, &CompileError{
			Field:   "space",
			Message: "space is required",
			Pos:     v.Pos(),
		}
	}
	return doc, nil
}

// compileDimensions extracts dimensions in declaration order.
func compileDimensions(v cue.Value) ([]ir.DimensionSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: "space", Message: "expected a struct of dimensions", Pos: v.Pos()}
	}

	dims := []ir.DimensionSpec{}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		dim, err := compileDimension(name, iter.Value(), ir.FieldPath("space", name))
		if err != nil {
			return nil, err
		}
		dims = append(dims, dim)
	}
	return dims, nil
}

// compileDimension parses one dimension struct. Parameter requirements per
// kind are left to Validate so that all problems can be reported together.
func compileDimension(name string, v cue.Value, path string) (ir.DimensionSpec, error) {
	spec := ir.DimensionSpec{Name: name}

	iter, err := v.Fields()
	if err != nil {
		return spec, &CompileError{Field: path, Message: "expected a struct", Pos: v.Pos()}
	}

	for iter.Next() {
		key := iter.Selector().Unquoted()
		val := iter.Value()
		field := ir.FieldPath(path, key)

		switch key {
		case "kind":
			spec.Kind, err = compileString(val, field)
			if err == nil && !ir.ValidKinds[spec.Kind] {
				err = &CompileError{
					Field:   field,
					Message: fmt.Sprintf("unknown dimension kind %q", spec.Kind),
					Pos:     val.Pos(),
				}
			}
		case "lower":
			spec.Lower, err = compileNumber(val, field)
		case "upper":
			spec.Upper, err = compileNumber(val, field)
		case "loc":
			spec.Loc, err = compileNumber(val, field)
		case "scale":
			spec.Scale, err = compileNumber(val, field)
		case "quantization":
			spec.Quantization, err = compileNumber(val, field)
		case "discrete":
			spec.Discrete, err = compileBool(val, field)
		case "choices":
			spec.Choices, err = compileLiterals(val, field)
		case "weights":
			spec.Weights, err = compileNumbers(val, field)
		case "enable_if":
			spec.EnableIf, err = compileActivation(val, field)
		case "forbid":
			spec.Forbid, err = compileConditions(val, field)
		default:
			err = &CompileError{Field: field, Message: "unknown field", Pos: val.Pos()}
		}
		if err != nil {
			return spec, err
		}
	}

	if spec.Kind == "" {
		return spec, &CompileError{
			Field:   ir.FieldPath(path, "kind"),
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	return spec, nil
}

// compileIdentity parses the identity settings. Size defaults to
// ir.DefaultIdentitySize and format to hex.
func compileIdentity(v cue.Value) (*ir.IdentitySpec, error) {
	id := &ir.IdentitySpec{Size: ir.DefaultIdentitySize, Format: ir.IdentityHex}

	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: "identity", Message: "expected a struct", Pos: v.Pos()}
	}
	for iter.Next() {
		key := iter.Selector().Unquoted()
		val := iter.Value()
		field := "identity." + key

		switch key {
		case "name":
			id.Name, err = compileString(val, field)
		case "size":
			var n int64
			n, err = val.Int64()
			if err != nil {
				err = &CompileError{Field: field, Message: "expected an integer", Pos: val.Pos()}
			}
			id.Size = int(n)
		case "format":
			id.Format, err = compileString(val, field)
		default:
			err = &CompileError{Field: field, Message: "unknown field", Pos: val.Pos()}
		}
		if err != nil {
			return nil, err
		}
	}

	if id.Name == "" {
		return nil, &CompileError{Field: "identity.name", Message: "name is required", Pos: v.Pos()}
	}
	return id, nil
}

func compileString(v cue.Value, field string) (string, error) {
	s, err := v.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "expected a string", Pos: v.Pos()}
	}
	return s, nil
}

func compileStrings(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a list of strings", Pos: v.Pos()}
	}
	var out []string
	for i := 0; iter.Next(); i++ {
		s, err := compileString(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func compileBool(v cue.Value, field string) (bool, error) {
	b, err := v.Bool()
	if err != nil {
		return false, &CompileError{Field: field, Message: "expected a boolean", Pos: v.Pos()}
	}
	return b, nil
}

// compileNumber accepts CUE ints and floats.
func compileNumber(v cue.Value, field string) (*float64, error) {
	switch v.Kind() {
	case cue.IntKind, cue.FloatKind:
	default:
		return nil, &CompileError{Field: field, Message: "expected a concrete number", Pos: v.Pos()}
	}
	f, err := v.Float64()
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return &f, nil
}

func compileNumbers(v cue.Value, field string) ([]float64, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a list of numbers", Pos: v.Pos()}
	}
	out := []float64{}
	for i := 0; iter.Next(); i++ {
		f, err := compileNumber(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, nil
}

// compileLiteral converts a concrete CUE scalar into an IRValue.
func compileLiteral(v cue.Value, field string) (ir.IRValue, error) {
	var (
		val ir.IRValue
		err error
	)
	switch v.Kind() {
	case cue.StringKind:
		var s string
		s, err = v.String()
		val = ir.IRString(s)
	case cue.IntKind:
		var i int64
		i, err = v.Int64()
		val = ir.IRInt(i)
	case cue.FloatKind:
		var f float64
		f, err = v.Float64()
		if err == nil {
			val, err = ir.ToIRValue(f)
		}
	case cue.BoolKind:
		var b bool
		b, err = v.Bool()
		val = ir.IRBool(b)
	default:
		return nil, &CompileError{
			Field:   field,
			Message: "expected a concrete string, number or bool literal",
			Pos:     v.Pos(),
		}
	}
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return val, nil
}

func compileLiterals(v cue.Value, field string) ([]ir.IRValue, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a list of literals", Pos: v.Pos()}
	}
	out := []ir.IRValue{}
	for i := 0; iter.Next(); i++ {
		lit, err := compileLiteral(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, lit)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
