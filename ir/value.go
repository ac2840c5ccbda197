package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface representing literal values.
// Only IRString, IRInt, IRFloat, and IRBool implement this.
// Sampled values, condition literals and categorical choices are all IRValues.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRString represents a string literal.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer literal. Discrete dimensions draw IRInt.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a floating point literal. Continuous dimensions draw IRFloat.
// NaN and infinities are never valid IRFloat values.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean literal.
type IRBool bool

func (IRBool) irValue() {}

// IRObject maps names to values. Samples convert to IRObject for hashing.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

// ToIRValue converts a Go literal into an IRValue.
//
// Accepted: string, bool, every signed and unsigned integer kind that fits in
// int64, and finite float32/float64. An IRValue passes through unchanged.
func ToIRValue(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil is not a literal")
	case IRString, IRInt, IRBool:
		return val.(IRValue), nil
	case IRFloat:
		if !isFinite(float64(val)) {
			return nil, fmt.Errorf("non-finite float %v", float64(val))
		}
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint:
		return uintValue(uint64(val))
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint64:
		return uintValue(val)
	case float32:
		return floatValue(float64(val))
	case float64:
		return floatValue(val)
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}

// MustIRValue is like ToIRValue but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustIRValue(v any) IRValue {
	val, err := ToIRValue(v)
	if err != nil {
		panic(err)
	}
	return val
}

// ToIRValues converts a list of Go literals.
func ToIRValues(vs []any) ([]IRValue, error) {
	out := make([]IRValue, len(vs))
	for i, v := range vs {
		val, err := ToIRValue(v)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = val
	}
	return out, nil
}

func uintValue(u uint64) (IRValue, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", u)
	}
	return IRInt(u), nil
}

func floatValue(f float64) (IRValue, error) {
	if !isFinite(f) {
		return nil, fmt.Errorf("non-finite float %v", f)
	}
	return IRFloat(f), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Native converts an IRValue back to a plain Go value
// (string, int64, float64 or bool).
func Native(v IRValue) any {
	switch val := v.(type) {
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRFloat:
		return float64(val)
	case IRBool:
		return bool(val)
	default:
		return nil
	}
}

// AsFloat returns the numeric value of an IRInt or IRFloat.
func AsFloat(v IRValue) (float64, bool) {
	switch val := v.(type) {
	case IRInt:
		return float64(val), true
	case IRFloat:
		return float64(val), true
	default:
		return 0, false
	}
}

// EqualValues reports whether two literals are equal.
// IRInt and IRFloat compare by numeric value, so IRInt(1) equals IRFloat(1).
func EqualValues(a, b IRValue) bool {
	if af, ok := AsFloat(a); ok {
		bf, ok := AsFloat(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	default:
		return false
	}
}

// CompareValues orders two literals.
// Numbers compare numerically and strings lexically. The second return value
// is false when the literals are not comparable (mixed kinds, or booleans).
func CompareValues(a, b IRValue) (int, bool) {
	if af, ok := AsFloat(a); ok {
		bf, ok := AsFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, ok := a.(IRString)
	if !ok {
		return 0, false
	}
	bs, ok := b.(IRString)
	if !ok {
		return 0, false
	}
	return strings.Compare(string(as), string(bs)), true
}

// ContainsValue reports whether v is equal to any element of set.
func ContainsValue(set []IRValue, v IRValue) bool {
	return slices.ContainsFunc(set, func(e IRValue) bool {
		return EqualValues(e, v)
	})
}

// FormatValue renders a literal for human-readable output.
func FormatValue(v IRValue) string {
	switch val := v.(type) {
	case IRString:
		return string(val)
	case IRInt:
		return strconv.FormatInt(int64(val), 10)
	case IRFloat:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case IRBool:
		return strconv.FormatBool(bool(val))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseValue interprets command-line text as a literal.
// Integers become IRInt, other numbers IRFloat, true/false IRBool and
// everything else IRString.
func ParseValue(s string) IRValue {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IRInt(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && isFinite(f) {
		return IRFloat(f)
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return IRBool(b)
	}
	return IRString(s)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings orders by UTF-8 bytes, which differs outside the BMP.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// formatFloatJSON renders a float so that it decodes back as IRFloat:
// integral values keep a trailing ".0".
func formatFloatJSON(f float64) (string, error) {
	if !isFinite(f) {
		return "", fmt.Errorf("non-finite float %v cannot be encoded", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

// MarshalIRValue marshals a literal to JSON bytes.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case IRFloat:
		s, err := formatFloatJSON(float64(val))
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	case IRBool:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

// UnmarshalIRValue decodes a JSON scalar into a literal.
// Numbers written with a fraction or exponent become IRFloat, all other
// numbers IRInt. Null, arrays and objects are rejected.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	switch val := raw.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a literal")
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case json.Number:
		return numberValue(val)
	default:
		return nil, fmt.Errorf("expected a string, number or bool literal")
	}
}

func numberValue(n json.Number) (IRValue, error) {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s", s)
		}
		return floatValue(f)
	}
	i, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("number out of int64 range: %s", s)
	}
	return IRInt(i), nil
}

// marshalIRValues marshals a list of literals as a JSON array.
func marshalIRValues(vs []IRValue) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalIRValue(v)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
