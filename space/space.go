package space

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/sspace/ir"
)

// Space is an ordered collection of dimensions that can be sampled and
// serialized.
//
// Dimensions keep their insertion order. Names are unique across dimensions,
// variables, subspace prefixes and the identity field. The first call to
// Sample, SampleSeed or NewSampler validates and freezes the space; later
// mutations fail with ErrCodeFrozen.
//
// A Space returned by Subspace shares state with its parent and registers
// names under its prefix.
type Space struct {
	st     *state
	prefix string // "" for the root, otherwise "name."
}

// state is shared by a root space and all of its subspaces.
type state struct {
	mu        sync.Mutex
	dims      []*Dimension
	byName    map[string]*Dimension
	variables []string
	subspaces []string
	identity  *ir.IdentitySpec
	taken     map[string]bool
	frozen    bool
}

// New returns an empty space.
func New() *Space {
	return &Space{st: &state{
		byName: make(map[string]*Dimension),
		taken:  make(map[string]bool),
	}}
}

// Prefix returns the subspace prefix without its trailing dot, or "" for a root space.
func (s *Space) Prefix() string {
	return strings.TrimSuffix(s.prefix, ".")
}

// Dimensions returns every dimension in insertion order, including those
// registered through subspaces.
func (s *Space) Dimensions() []*Dimension {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return slices.Clone(s.st.dims)
}

// Dimension returns the dimension with the given full name, or nil.
func (s *Space) Dimension(name string) *Dimension {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.byName[name]
}

// Variables returns the declared variable names in declaration order.
func (s *Space) Variables() []string {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return slices.Clone(s.st.variables)
}

// Subspaces returns the registered subspace prefixes.
func (s *Space) Subspaces() []string {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return slices.Clone(s.st.subspaces)
}

// Frozen reports whether the space has been sampled.
func (s *Space) Frozen() bool {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.frozen
}

// claim reserves a full name. Caller must hold the lock.
func (st *state) claim(name string) error {
	if st.frozen {
		return NewFrozenError(name)
	}
	if name == "" || strings.HasSuffix(name, ".") {
		return configErr(ErrCodeInvalidName, name, "name must be non-empty and must not end with a dot")
	}
	if st.taken[name] {
		return configErr(ErrCodeDuplicateName, name, "name %q is already declared", name)
	}
	st.taken[name] = true
	return nil
}

// Add registers a dimension drawing from dist.
func (s *Space) Add(name string, dist Distribution) (*Dimension, error) {
	full := s.prefix + name
	if dist == nil {
		return nil, configErr(ErrCodeInvalidDistribution, full, "distribution is nil")
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if err := s.st.claim(full); err != nil {
		return nil, err
	}
	d := &Dimension{space: s.st, name: full, dist: dist}
	s.st.dims = append(s.st.dims, d)
	s.st.byName[full] = d
	return d, nil
}

func (s *Space) addNumeric(name string, dist Distribution, err error) (*Dimension, error) {
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			ce.Dimension = s.prefix + name
		}
		return nil, err
	}
	return s.Add(name, dist)
}

// Uniform adds a dimension drawing uniformly from [lower, upper].
func (s *Space) Uniform(name string, lower, upper float64, opts ...NumericOption) (*Dimension, error) {
	dist, err := NewUniform(lower, upper, opts...)
	return s.addNumeric(name, dist, err)
}

// LogUniform adds a dimension drawing log-uniformly from [lower, upper].
func (s *Space) LogUniform(name string, lower, upper float64, opts ...NumericOption) (*Dimension, error) {
	dist, err := NewLogUniform(lower, upper, opts...)
	return s.addNumeric(name, dist, err)
}

// Normal adds a dimension drawing from a normal distribution.
func (s *Space) Normal(name string, loc, scale float64, opts ...NumericOption) (*Dimension, error) {
	dist, err := NewNormal(loc, scale, opts...)
	return s.addNumeric(name, dist, err)
}

// LogNormal adds a dimension drawing from a log-normal distribution.
func (s *Space) LogNormal(name string, loc, scale float64, opts ...NumericOption) (*Dimension, error) {
	dist, err := NewLogNormal(loc, scale, opts...)
	return s.addNumeric(name, dist, err)
}

// Categorical adds a dimension choosing uniformly among choices.
func (s *Space) Categorical(name string, choices ...any) (*Dimension, error) {
	return s.WeightedCategorical(name, choices, nil)
}

// WeightedCategorical adds a dimension choosing among choices in proportion
// to weights.
func (s *Space) WeightedCategorical(name string, choices []any, weights []float64) (*Dimension, error) {
	values, err := ir.ToIRValues(choices)
	if err != nil {
		return nil, configErr(ErrCodeInvalidDistribution, s.prefix+name, "categorical choices%v", err)
	}
	dist, err := NewCategorical(values, weights)
	return s.addNumeric(name, dist, err)
}

// Ordinal adds a dimension choosing uniformly among ordered choices.
func (s *Space) Ordinal(name string, choices ...any) (*Dimension, error) {
	values, err := ir.ToIRValues(choices)
	if err != nil {
		return nil, configErr(ErrCodeInvalidDistribution, s.prefix+name, "ordinal choices%v", err)
	}
	dist, err := NewOrdinal(values)
	return s.addNumeric(name, dist, err)
}

// Variable declares a name whose value is supplied at sampling time with
// WithVariables. Conditions may reference it like a dimension.
func (s *Space) Variable(name string) error {
	full := s.prefix + name

	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if err := s.st.claim(full); err != nil {
		return err
	}
	s.st.variables = append(s.st.variables, full)
	return nil
}

// Subspace returns a view that registers names under prefix "name.".
// Sample.Nested groups the values of each subspace into a nested map.
func (s *Space) Subspace(name string) (*Space, error) {
	full := s.prefix + name

	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if err := s.st.claim(full); err != nil {
		return nil, err
	}
	s.st.subspaces = append(s.st.subspaces, full)
	return &Space{st: s.st, prefix: full + "."}, nil
}

// Identity adds a field holding the first size hex characters of each
// sample's content hash. A size of 0 selects ir.DefaultIdentitySize.
// The identity covers the whole sample, so it is declared on the root space.
func (s *Space) Identity(name string, size int) error {
	if size == 0 {
		size = ir.DefaultIdentitySize
	}
	if size < 1 || size > 64 {
		return configErr(ErrCodeInvalidIdentity, name, "identity size must be in 1..64, got %d", size)
	}
	return s.setIdentity(&ir.IdentitySpec{Name: name, Size: size, Format: ir.IdentityHex})
}

// UUIDIdentity adds a field holding a name-based UUID of each sample.
// Like Identity, it is declared on the root space.
func (s *Space) UUIDIdentity(name string) error {
	return s.setIdentity(&ir.IdentitySpec{Name: name, Format: ir.IdentityUUID})
}

func (s *Space) setIdentity(id *ir.IdentitySpec) error {
	if s.prefix != "" {
		return configErr(ErrCodeInvalidIdentity, s.prefix+id.Name,
			"identity must be declared on the root space, not subspace %q", s.Prefix())
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if s.st.frozen {
		return NewFrozenError(id.Name)
	}
	if s.st.identity != nil {
		return configErr(ErrCodeDuplicateName, id.Name, "identity is already configured as %q", s.st.identity.Name)
	}
	if err := s.st.claim(id.Name); err != nil {
		return err
	}
	s.st.identity = id
	return nil
}

// freeze validates the space and disables further mutation.
// Validation failures leave the space mutable so it can be fixed.
func (s *Space) freeze() error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if s.st.frozen {
		return nil
	}
	if err := s.st.validate(); err != nil {
		return err
	}
	s.st.frozen = true
	return nil
}
