package space

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"github.com/roach88/sspace/ir"
)

// Sample is one draw from a space: an ordered mapping from name to value.
//
// Only active dimensions appear, followed by supplied variables and the
// identity field when the space configures one. A Sample is also an Env in
// which every absent name is inactive.
type Sample struct {
	names     []string
	values    map[string]ir.IRValue
	subspaces []string
}

// NewSample builds a sample from names and values given in the same order.
// It is mostly useful in tests and for evaluating conditions against
// externally produced configurations.
func NewSample(names []string, values []ir.IRValue) Sample {
	s := Sample{values: make(map[string]ir.IRValue, len(names))}
	for i, name := range names {
		s.set(name, values[i])
	}
	return s
}

func (s *Sample) set(name string, v ir.IRValue) {
	if s.values == nil {
		s.values = make(map[string]ir.IRValue)
	}
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = v
}

// Get returns the value of name and whether it is present.
func (s Sample) Get(name string) (ir.IRValue, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Has reports whether name is present.
func (s Sample) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Names returns the present names in order.
func (s Sample) Names() []string {
	return slices.Clone(s.names)
}

// Len returns the number of present names.
func (s Sample) Len() int {
	return len(s.names)
}

// Lookup implements Env.
func (s Sample) Lookup(name string) (ir.IRValue, Status) {
	if v, ok := s.values[name]; ok {
		return v, Present
	}
	return nil, Inactive
}

// Object returns the sample as an unordered IRObject, e.g. for hashing.
func (s Sample) Object() ir.IRObject {
	obj := make(ir.IRObject, len(s.values))
	for k, v := range s.values {
		obj[k] = v
	}
	return obj
}

// Map returns the sample as plain Go values (string, int64, float64, bool).
func (s Sample) Map() map[string]any {
	m := make(map[string]any, len(s.values))
	for k, v := range s.values {
		m[k] = ir.Native(v)
	}
	return m
}

// Nested unflattens the sample along registered subspace prefixes.
// With subspace "model", the name "model.depth" becomes
// {"model": {"depth": ...}}. Dotted names outside any subspace stay flat.
func (s Sample) Nested() map[string]any {
	root := make(map[string]any)
	for _, name := range s.names {
		node := root
		consumed := ""
		for _, prefix := range s.enclosing(name) {
			key := strings.TrimPrefix(prefix, consumed)
			child, ok := node[key].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[key] = child
			}
			node = child
			consumed = prefix + "."
		}
		node[strings.TrimPrefix(name, consumed)] = ir.Native(s.values[name])
	}
	return root
}

// enclosing returns the subspaces containing name, outermost first.
func (s Sample) enclosing(name string) []string {
	var out []string
	for _, p := range s.subspaces {
		if strings.HasPrefix(name, p+".") {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b string) int { return len(a) - len(b) })
	return out
}

// MarshalJSON implements json.Marshaler, preserving name order.
// Floats keep a fractional part so that 1.0 and 1 stay distinct.
func (s Sample) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(name)
		buf.Write(k)
		buf.WriteByte(':')
		v, err := ir.MarshalIRValue(s.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String renders the sample as name=value pairs.
func (s Sample) String() string {
	parts := make([]string, len(s.names))
	for i, name := range s.names {
		parts[i] = name + "=" + quoteValue(s.values[name])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
