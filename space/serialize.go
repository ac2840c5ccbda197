package space

import (
	"errors"
	"fmt"

	"github.com/roach88/sspace/ir"
)

// decoder rebuilds a distribution from a dimension spec.
type decoder func(spec ir.DimensionSpec, path string) (Distribution, error)

// decoders maps each serialized kind to its decoder.
var decoders = map[string]decoder{
	ir.KindUniform:     decodeBounded(ir.KindUniform),
	ir.KindLogUniform:  decodeBounded(ir.KindLogUniform),
	ir.KindNormal:      decodeGaussian(ir.KindNormal),
	ir.KindLogNormal:   decodeGaussian(ir.KindLogNormal),
	ir.KindCategorical: decodeCategorical,
	ir.KindOrdinal:     decodeOrdinal,
}

// Serialize converts the space into its portable document form.
func (s *Space) Serialize() *ir.Document {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	doc := &ir.Document{
		Version:    ir.DocumentVersion,
		Dimensions: make([]ir.DimensionSpec, 0, len(s.st.dims)),
	}
	for _, d := range s.st.dims {
		doc.Dimensions = append(doc.Dimensions, d.spec())
	}
	if len(s.st.variables) > 0 {
		doc.Variables = append([]string(nil), s.st.variables...)
	}
	if len(s.st.subspaces) > 0 {
		doc.Subspaces = append([]string(nil), s.st.subspaces...)
	}
	if s.st.identity != nil {
		id := *s.st.identity
		doc.Identity = &id
	}
	return doc
}

// Deserialize rebuilds a space from a document.
// Deserialize(s.Serialize()).Serialize() equals s.Serialize().
//
// Optional fields missing from a hand-written document are filled with
// their defaults, so its first re-serialization may add them: an identity
// without size or format becomes {"size": 16, "format": "hex"}. Later
// round trips are stable.
//
// Structural problems are reported as *SerializationError naming the field
// path; invalid parameters additionally wrap a *ConfigurationError.
func Deserialize(doc *ir.Document) (*Space, error) {
	if doc == nil {
		return nil, &SerializationError{Err: errors.New("document is nil")}
	}
	if doc.Version != ir.DocumentVersion {
		return nil, &SerializationError{Path: "version", Err: fmt.Errorf("unsupported version %q", doc.Version)}
	}

	s := New()
	for i, name := range doc.Variables {
		if err := s.Variable(name); err != nil {
			return nil, &SerializationError{Path: fmt.Sprintf("variables[%d]", i), Err: err}
		}
	}
	for i, name := range doc.Subspaces {
		if err := s.registerSubspace(name); err != nil {
			return nil, &SerializationError{Path: fmt.Sprintf("subspaces[%d]", i), Err: err}
		}
	}

	for _, spec := range doc.Dimensions {
		if err := s.addSpec(spec); err != nil {
			return nil, err
		}
	}

	if id := doc.Identity; id != nil {
		var err error
		switch id.Format {
		case ir.IdentityHex, "":
			err = s.Identity(id.Name, id.Size)
		case ir.IdentityUUID:
			err = s.UUIDIdentity(id.Name)
		default:
			err = fmt.Errorf("unknown identity format %q", id.Format)
		}
		if err != nil {
			return nil, &SerializationError{Path: "identity", Err: err}
		}
	}
	return s, nil
}

func (s *Space) registerSubspace(full string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if err := s.st.claim(full); err != nil {
		return err
	}
	s.st.subspaces = append(s.st.subspaces, full)
	return nil
}

func (s *Space) addSpec(spec ir.DimensionSpec) error {
	path := ir.FieldPath("space", spec.Name)

	decode, ok := decoders[spec.Kind]
	if !ok {
		return &SerializationError{Path: path + ".kind", Err: fmt.Errorf("unknown dimension kind %q", spec.Kind)}
	}
	dist, err := decode(spec, path)
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) && ce.Dimension == "" {
			ce.Dimension = spec.Name
		}
		return err
	}

	d, err := s.Add(spec.Name, dist)
	if err != nil {
		return &SerializationError{Path: path, Err: err}
	}

	if act := spec.EnableIf; act != nil {
		conds := make([]Condition, len(act.Conditions))
		for i, cs := range act.Conditions {
			c, err := conditionFromSpec(cs)
			if err != nil {
				return &SerializationError{Path: fmt.Sprintf("%s.enable_if.%s[%d]", path, act.Mode, i), Err: err}
			}
			conds[i] = c
		}
		switch act.Mode {
		case ir.ModeAll:
			for _, c := range conds {
				err = d.EnableIf(c)
				if err != nil {
					break
				}
			}
		case ir.ModeAny:
			err = d.EnableIfAny(conds...)
		default:
			err = fmt.Errorf("unknown activation mode %q", act.Mode)
		}
		if err != nil {
			return &SerializationError{Path: path + ".enable_if", Err: err}
		}
	}

	for i, fs := range spec.Forbid {
		fp := fmt.Sprintf("%s.forbid[%d]", path, i)
		c, err := conditionFromSpec(fs)
		if err != nil {
			return &SerializationError{Path: fp, Err: err}
		}
		if err := d.Forbid(c); err != nil {
			return &SerializationError{Path: fp, Err: err}
		}
	}
	return nil
}

// checkFields rejects parameters that do not belong to the kind.
func checkFields(spec ir.DimensionSpec, path string, allowed ...string) error {
	present := map[string]bool{
		"lower":        spec.Lower != nil,
		"upper":        spec.Upper != nil,
		"loc":          spec.Loc != nil,
		"scale":        spec.Scale != nil,
		"discrete":     spec.Discrete,
		"quantization": spec.Quantization != nil,
		"choices":      spec.Choices != nil,
		"weights":      spec.Weights != nil,
	}
	for _, field := range allowed {
		delete(present, field)
	}
	for _, field := range []string{"lower", "upper", "loc", "scale", "discrete", "quantization", "choices", "weights"} {
		if present[field] {
			return &SerializationError{Path: path + "." + field, Err: fmt.Errorf("not allowed for kind %q", spec.Kind)}
		}
	}
	return nil
}

func requireNumber(p *float64, path, field string) (float64, error) {
	if p == nil {
		return 0, &SerializationError{Path: path + "." + field, Err: errors.New("field is required")}
	}
	return *p, nil
}

func numericOptions(spec ir.DimensionSpec) []NumericOption {
	var opts []NumericOption
	if spec.Discrete {
		opts = append(opts, Discrete())
	}
	if spec.Quantization != nil {
		opts = append(opts, Quantization(*spec.Quantization))
	}
	return opts
}

func invalidParams(path string, err error) error {
	return &SerializationError{Path: path, Err: err}
}

func decodeBounded(kind string) decoder {
	return func(spec ir.DimensionSpec, path string) (Distribution, error) {
		if err := checkFields(spec, path, "lower", "upper", "discrete", "quantization"); err != nil {
			return nil, err
		}
		lower, err := requireNumber(spec.Lower, path, "lower")
		if err != nil {
			return nil, err
		}
		upper, err := requireNumber(spec.Upper, path, "upper")
		if err != nil {
			return nil, err
		}

		var dist Distribution
		if kind == ir.KindUniform {
			dist, err = NewUniform(lower, upper, numericOptions(spec)...)
		} else {
			dist, err = NewLogUniform(lower, upper, numericOptions(spec)...)
		}
		if err != nil {
			return nil, invalidParams(path, err)
		}
		return dist, nil
	}
}

func decodeGaussian(kind string) decoder {
	return func(spec ir.DimensionSpec, path string) (Distribution, error) {
		if err := checkFields(spec, path, "loc", "scale", "discrete", "quantization"); err != nil {
			return nil, err
		}
		loc, err := requireNumber(spec.Loc, path, "loc")
		if err != nil {
			return nil, err
		}
		scale, err := requireNumber(spec.Scale, path, "scale")
		if err != nil {
			return nil, err
		}

		var dist Distribution
		if kind == ir.KindNormal {
			dist, err = NewNormal(loc, scale, numericOptions(spec)...)
		} else {
			dist, err = NewLogNormal(loc, scale, numericOptions(spec)...)
		}
		if err != nil {
			return nil, invalidParams(path, err)
		}
		return dist, nil
	}
}

func decodeCategorical(spec ir.DimensionSpec, path string) (Distribution, error) {
	if err := checkFields(spec, path, "choices", "weights"); err != nil {
		return nil, err
	}
	if spec.Choices == nil {
		return nil, &SerializationError{Path: path + ".choices", Err: errors.New("field is required")}
	}
	dist, err := NewCategorical(spec.Choices, spec.Weights)
	if err != nil {
		return nil, invalidParams(path, err)
	}
	return dist, nil
}

func decodeOrdinal(spec ir.DimensionSpec, path string) (Distribution, error) {
	if err := checkFields(spec, path, "choices"); err != nil {
		return nil, err
	}
	if spec.Choices == nil {
		return nil, &SerializationError{Path: path + ".choices", Err: errors.New("field is required")}
	}
	dist, err := NewOrdinal(spec.Choices)
	if err != nil {
		return nil, invalidParams(path, err)
	}
	return dist, nil
}

// FromJSON decodes a JSON document and rebuilds the space.
func FromJSON(data []byte) (*Space, error) {
	doc, err := ir.ParseDocument(data)
	if err != nil {
		return nil, fromDecodeError(err)
	}
	return Deserialize(doc)
}

// FromYAML decodes a YAML document and rebuilds the space.
func FromYAML(data []byte) (*Space, error) {
	doc, err := ir.ParseYAML(data)
	if err != nil {
		return nil, fromDecodeError(err)
	}
	return Deserialize(doc)
}

func fromDecodeError(err error) error {
	var de *ir.DecodeError
	if errors.As(err, &de) {
		return &SerializationError{Path: de.Path, Err: errors.New(de.Message)}
	}
	return &SerializationError{Err: err}
}

// MarshalJSON implements json.Marshaler using the document form.
func (s *Space) MarshalJSON() ([]byte, error) {
	return ir.EncodeJSON(s.Serialize(), false)
}

// ToJSON renders the document form as JSON, indented when indent is set.
func (s *Space) ToJSON(indent bool) ([]byte, error) {
	return ir.EncodeJSON(s.Serialize(), indent)
}

// ToYAML renders the document form as YAML.
func (s *Space) ToYAML() ([]byte, error) {
	return ir.EncodeYAML(s.Serialize())
}
