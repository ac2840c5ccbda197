package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeError reports a malformed document.
// Path names the offending field, e.g. space["optimizer.lr"].lower.
type DecodeError struct {
	Path    string
	Message string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func decodeErr(path, format string, args ...any) *DecodeError {
	return &DecodeError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// FieldPath appends a key to a field path. Keys that are not plain
// identifiers are quoted so dotted dimension names stay unambiguous:
// FieldPath("space", "model.lr") is space["model.lr"].
func FieldPath(path, key string) string {
	plain := key != "" && !strings.ContainsAny(key, ".[]\" ")
	switch {
	case path == "" && plain:
		return key
	case plain:
		return path + "." + key
	default:
		return fmt.Sprintf("%s[%q]", path, key)
	}
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

// rawField is one key of a JSON object, in source order.
type rawField struct {
	Key   string
	Value json.RawMessage
}

// decodeObject splits a JSON object into its fields, preserving order.
// Duplicate keys are rejected.
func decodeObject(data []byte, path string) ([]rawField, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, decodeErr(path, "invalid JSON: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, decodeErr(path, "expected an object")
	}

	var fields []rawField
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, decodeErr(path, "invalid JSON: %v", err)
		}
		key, _ := tok.(string)
		if seen[key] {
			return nil, decodeErr(FieldPath(path, key), "duplicate key")
		}
		seen[key] = true

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, decodeErr(FieldPath(path, key), "invalid JSON: %v", err)
		}
		fields = append(fields, rawField{Key: key, Value: raw})
	}

	// Closing brace
	if _, err := dec.Token(); err != nil {
		return nil, decodeErr(path, "invalid JSON: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, decodeErr(path, "unexpected data after object")
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeArray(raw json.RawMessage, path string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &items) != nil {
		return nil, decodeErr(path, "expected an array")
	}
	return items, nil
}

func decodeString(raw json.RawMessage, path string) (string, error) {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		return "", decodeErr(path, "expected a string")
	}
	return s, nil
}

func decodeStrings(raw json.RawMessage, path string) ([]string, error) {
	items, err := decodeArray(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, err := decodeString(item, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func decodeNumber(raw json.RawMessage, path string) (*float64, error) {
	var f float64
	if isNull(raw) || json.Unmarshal(raw, &f) != nil {
		return nil, decodeErr(path, "expected a number")
	}
	return &f, nil
}

func decodeNumbers(raw json.RawMessage, path string) ([]float64, error) {
	items, err := decodeArray(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, err := decodeNumber(item, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		out[i] = *f
	}
	return out, nil
}

func decodeBool(raw json.RawMessage, path string) (bool, error) {
	var b bool
	if isNull(raw) || json.Unmarshal(raw, &b) != nil {
		return false, decodeErr(path, "expected a boolean")
	}
	return b, nil
}

func decodeInt(raw json.RawMessage, path string) (int, error) {
	var n int
	if isNull(raw) || json.Unmarshal(raw, &n) != nil {
		return 0, decodeErr(path, "expected an integer")
	}
	return n, nil
}

func decodeLiteral(raw json.RawMessage, path string) (IRValue, error) {
	v, err := UnmarshalIRValue(raw)
	if err != nil {
		return nil, decodeErr(path, "%v", err)
	}
	return v, nil
}

func decodeLiterals(raw json.RawMessage, path string) ([]IRValue, error) {
	items, err := decodeArray(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]IRValue, len(items))
	for i, item := range items {
		v, err := decodeLiteral(item, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// objectWriter emits a JSON object with keys in insertion order.
type objectWriter struct {
	buf bytes.Buffer
	n   int
}

func (w *objectWriter) field(key string, raw []byte) {
	if w.n == 0 {
		w.buf.WriteByte('{')
	} else {
		w.buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(raw)
	w.n++
}

func (w *objectWriter) bytes() []byte {
	if w.n == 0 {
		return []byte("{}")
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes()
}

// MarshalJSON implements json.Marshaler with dimension order preserved.
func (d Document) MarshalJSON() ([]byte, error) {
	var w objectWriter

	version := d.Version
	if version == "" {
		version = DocumentVersion
	}
	v, _ := json.Marshal(version)
	w.field("version", v)

	var space objectWriter
	for _, dim := range d.Dimensions {
		b, err := dim.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", FieldPath("space", dim.Name), err)
		}
		space.field(dim.Name, b)
	}
	w.field("space", space.bytes())

	if len(d.Variables) > 0 {
		b, _ := json.Marshal(d.Variables)
		w.field("variables", b)
	}
	if len(d.Subspaces) > 0 {
		b, _ := json.Marshal(d.Subspaces)
		w.field("subspaces", b)
	}
	if d.Identity != nil {
		var id objectWriter
		name, _ := json.Marshal(d.Identity.Name)
		id.field("name", name)
		size, _ := json.Marshal(d.Identity.Size)
		id.field("size", size)
		format, _ := json.Marshal(d.Identity.Format)
		id.field("format", format)
		w.field("identity", id.bytes())
	}

	return w.bytes(), nil
}

// MarshalJSON implements json.Marshaler. The name is the enclosing key and
// is not repeated.
func (s DimensionSpec) MarshalJSON() ([]byte, error) {
	var w objectWriter

	kind, _ := json.Marshal(s.Kind)
	w.field("kind", kind)

	numbers := []struct {
		key string
		val *float64
	}{
		{"lower", s.Lower},
		{"upper", s.Upper},
		{"loc", s.Loc},
		{"scale", s.Scale},
	}
	for _, n := range numbers {
		if n.val == nil {
			continue
		}
		b, err := json.Marshal(*n.val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.key, err)
		}
		w.field(n.key, b)
	}

	if s.Discrete {
		w.field("discrete", []byte("true"))
	}
	if s.Quantization != nil {
		b, err := json.Marshal(*s.Quantization)
		if err != nil {
			return nil, fmt.Errorf("quantization: %w", err)
		}
		w.field("quantization", b)
	}
	if s.Choices != nil {
		b, err := marshalIRValues(s.Choices)
		if err != nil {
			return nil, fmt.Errorf("choices%w", err)
		}
		w.field("choices", b)
	}
	if s.Weights != nil {
		b, err := json.Marshal(s.Weights)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
		w.field("weights", b)
	}
	if s.EnableIf != nil {
		b, err := s.EnableIf.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("enable_if: %w", err)
		}
		w.field("enable_if", b)
	}
	if len(s.Forbid) > 0 {
		b, err := marshalConditions(s.Forbid)
		if err != nil {
			return nil, fmt.Errorf("forbid%w", err)
		}
		w.field("forbid", b)
	}

	return w.bytes(), nil
}

// MarshalJSON implements json.Marshaler as {"all": [...]} or {"any": [...]}.
func (a ActivationSpec) MarshalJSON() ([]byte, error) {
	b, err := marshalConditions(a.Conditions)
	if err != nil {
		return nil, fmt.Errorf("%s%w", a.Mode, err)
	}
	var w objectWriter
	w.field(a.Mode, b)
	return w.bytes(), nil
}

// MarshalJSON implements json.Marshaler as a single-key object tagged by Op.
func (c ConditionSpec) MarshalJSON() ([]byte, error) {
	var body []byte
	switch {
	case IsComparison(c.Op):
		v, err := MarshalIRValue(c.Value)
		if err != nil {
			return nil, fmt.Errorf("%s.value: %w", c.Op, err)
		}
		var w objectWriter
		name, _ := json.Marshal(c.Name)
		w.field("name", name)
		w.field("value", v)
		body = w.bytes()
	case c.Op == OpIn:
		vs, err := marshalIRValues(c.Values)
		if err != nil {
			return nil, fmt.Errorf("in.values%w", err)
		}
		var w objectWriter
		name, _ := json.Marshal(c.Name)
		w.field("name", name)
		w.field("values", vs)
		body = w.bytes()
	case c.Op == OpAnd || c.Op == OpOr:
		b, err := marshalConditions(c.Children)
		if err != nil {
			return nil, fmt.Errorf("%s%w", c.Op, err)
		}
		body = b
	case c.Op == OpNot:
		if len(c.Children) != 1 {
			return nil, fmt.Errorf("not: expected exactly one operand, got %d", len(c.Children))
		}
		b, err := c.Children[0].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("not.%w", err)
		}
		body = b
	default:
		return nil, fmt.Errorf("unknown operator %q", c.Op)
	}

	var w objectWriter
	w.field(c.Op, body)
	return w.bytes(), nil
}

func marshalConditions(cs []ConditionSpec) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, c := range cs {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := c.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// EncodeJSON marshals a document, indented with two spaces when indent is set.
func EncodeJSON(d *Document, indent bool) ([]byte, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if !indent {
		return data, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ParseDocument decodes a JSON document.
// Errors are *DecodeError values naming the offending field.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &d, nil
}

// UnmarshalJSON implements json.Unmarshaler.
// Unknown keys are rejected so typos surface as errors.
func (d *Document) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data, "")
	if err != nil {
		return err
	}

	var doc Document
	hasSpace := false
	for _, f := range fields {
		switch f.Key {
		case "version":
			if doc.Version, err = decodeString(f.Value, f.Key); err != nil {
				return err
			}
		case "space":
			hasSpace = true
			if doc.Dimensions, err = decodeSpace(f.Value, f.Key); err != nil {
				return err
			}
		case "variables":
			if doc.Variables, err = decodeStrings(f.Value, f.Key); err != nil {
				return err
			}
		case "subspaces":
			if doc.Subspaces, err = decodeStrings(f.Value, f.Key); err != nil {
				return err
			}
		case "identity":
			if doc.Identity, err = decodeIdentity(f.Value, f.Key); err != nil {
				return err
			}
		default:
			return decodeErr(FieldPath("", f.Key), "unknown field")
		}
	}

	if !hasSpace {
		return decodeErr("space", "field is required")
	}
	if doc.Version == "" {
		return decodeErr("version", "field is required")
	}

	*d = doc
	return nil
}

func decodeSpace(raw json.RawMessage, path string) ([]DimensionSpec, error) {
	fields, err := decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	dims := make([]DimensionSpec, 0, len(fields))
	for _, f := range fields {
		dim, err := decodeDimension(f.Key, f.Value, FieldPath(path, f.Key))
		if err != nil {
			return nil, err
		}
		dims = append(dims, dim)
	}
	return dims, nil
}

func decodeDimension(name string, raw json.RawMessage, path string) (DimensionSpec, error) {
	spec := DimensionSpec{Name: name}

	fields, err := decodeObject(raw, path)
	if err != nil {
		return spec, err
	}

	for _, f := range fields {
		fp := FieldPath(path, f.Key)
		switch f.Key {
		case "kind":
			spec.Kind, err = decodeString(f.Value, fp)
			if err == nil && !ValidKinds[spec.Kind] {
				err = decodeErr(fp, "unknown dimension kind %q", spec.Kind)
			}
		case "lower":
			spec.Lower, err = decodeNumber(f.Value, fp)
		case "upper":
			spec.Upper, err = decodeNumber(f.Value, fp)
		case "loc":
			spec.Loc, err = decodeNumber(f.Value, fp)
		case "scale":
			spec.Scale, err = decodeNumber(f.Value, fp)
		case "discrete":
			spec.Discrete, err = decodeBool(f.Value, fp)
		case "quantization":
			spec.Quantization, err = decodeNumber(f.Value, fp)
		case "choices":
			spec.Choices, err = decodeLiterals(f.Value, fp)
		case "weights":
			spec.Weights, err = decodeNumbers(f.Value, fp)
		case "enable_if":
			spec.EnableIf, err = decodeActivation(f.Value, fp)
		case "forbid":
			spec.Forbid, err = decodeConditions(f.Value, fp)
		default:
			err = decodeErr(fp, "unknown field")
		}
		if err != nil {
			return spec, err
		}
	}

	if spec.Kind == "" {
		return spec, decodeErr(FieldPath(path, "kind"), "field is required")
	}
	return spec, nil
}

func decodeIdentity(raw json.RawMessage, path string) (*IdentitySpec, error) {
	fields, err := decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	id := &IdentitySpec{}
	for _, f := range fields {
		fp := FieldPath(path, f.Key)
		switch f.Key {
		case "name":
			id.Name, err = decodeString(f.Value, fp)
		case "size":
			id.Size, err = decodeInt(f.Value, fp)
		case "format":
			id.Format, err = decodeString(f.Value, fp)
		default:
			err = decodeErr(fp, "unknown field")
		}
		if err != nil {
			return nil, err
		}
	}
	if id.Name == "" {
		return nil, decodeErr(FieldPath(path, "name"), "field is required")
	}
	return id, nil
}

func decodeActivation(raw json.RawMessage, path string) (*ActivationSpec, error) {
	fields, err := decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	if len(fields) != 1 {
		return nil, decodeErr(path, "expected exactly one of %q or %q", ModeAll, ModeAny)
	}
	f := fields[0]
	fp := FieldPath(path, f.Key)
	if f.Key != ModeAll && f.Key != ModeAny {
		return nil, decodeErr(fp, "unknown activation mode")
	}
	conds, err := decodeConditions(f.Value, fp)
	if err != nil {
		return nil, err
	}
	if len(conds) == 0 {
		return nil, decodeErr(fp, "at least one condition is required")
	}
	return &ActivationSpec{Mode: f.Key, Conditions: conds}, nil
}

func decodeConditions(raw json.RawMessage, path string) ([]ConditionSpec, error) {
	items, err := decodeArray(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]ConditionSpec, len(items))
	for i, item := range items {
		c, err := decodeCondition(item, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func decodeCondition(raw json.RawMessage, path string) (ConditionSpec, error) {
	var c ConditionSpec

	fields, err := decodeObject(raw, path)
	if err != nil {
		return c, err
	}
	if len(fields) != 1 {
		return c, decodeErr(path, "condition must have exactly one operator, got %d", len(fields))
	}

	op, body := fields[0].Key, fields[0].Value
	fp := FieldPath(path, op)
	if !ValidOps[op] {
		return c, decodeErr(fp, "unknown operator")
	}
	c.Op = op

	switch {
	case IsComparison(op) || op == OpIn:
		operands, err := decodeObject(body, fp)
		if err != nil {
			return c, err
		}
		valueKey := "value"
		if op == OpIn {
			valueKey = "values"
		}
		hasName, hasValue := false, false
		for _, f := range operands {
			ofp := FieldPath(fp, f.Key)
			switch f.Key {
			case "name":
				hasName = true
				c.Name, err = decodeString(f.Value, ofp)
			case valueKey:
				hasValue = true
				if op == OpIn {
					c.Values, err = decodeLiterals(f.Value, ofp)
				} else {
					c.Value, err = decodeLiteral(f.Value, ofp)
				}
			default:
				err = decodeErr(ofp, "unknown field")
			}
			if err != nil {
				return c, err
			}
		}
		if !hasName || c.Name == "" {
			return c, decodeErr(FieldPath(fp, "name"), "field is required")
		}
		if !hasValue {
			return c, decodeErr(FieldPath(fp, valueKey), "field is required")
		}
	case op == OpAnd || op == OpOr:
		if c.Children, err = decodeConditions(body, fp); err != nil {
			return c, err
		}
		if len(c.Children) == 0 {
			return c, decodeErr(fp, "at least one operand is required")
		}
	case op == OpNot:
		child, err := decodeCondition(body, fp)
		if err != nil {
			return c, err
		}
		c.Children = []ConditionSpec{child}
	}

	return c, nil
}
