package space

import (
	"fmt"
	"log/slog"
	"math/rand"
	"slices"

	"github.com/roach88/sspace/ir"
)

// DefaultMaxAttempts bounds the draws per dimension when candidates are forbidden.
const DefaultMaxAttempts = 100

// SampleOption configures a Sampler.
type SampleOption func(*Sampler)

// WithMaxAttempts sets how many candidates a dimension may draw before
// sampling fails with a SamplingError.
func WithMaxAttempts(n int) SampleOption {
	return func(sm *Sampler) {
		sm.maxAttempts = n
	}
}

// WithLogger sets the logger used for rejected candidates and exhausted retries.
func WithLogger(logger *slog.Logger) SampleOption {
	return func(sm *Sampler) {
		sm.logger = logger
	}
}

// WithVariables supplies the values of declared variables.
func WithVariables(vars map[string]any) SampleOption {
	return func(sm *Sampler) {
		sm.supplied = vars
	}
}

// Sampler draws samples from a frozen space.
//
// A Sampler holds no generator state, so one Sampler may be shared by
// goroutines that each bring their own *rand.Rand.
type Sampler struct {
	maxAttempts int
	logger      *slog.Logger
	supplied    map[string]any

	dims      []*Dimension
	variables []string
	values    map[string]ir.IRValue // resolved variables
	subspaces []string
	identity  *ir.IdentitySpec
}

// NewSampler validates and freezes s, then returns a sampler for it.
func NewSampler(s *Space, opts ...SampleOption) (*Sampler, error) {
	if err := s.freeze(); err != nil {
		return nil, err
	}

	sm := &Sampler{
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	if sm.maxAttempts < 1 {
		return nil, configErr(ErrCodeInvalidOption, "", "max attempts must be at least 1, got %d", sm.maxAttempts)
	}
	if sm.logger == nil {
		sm.logger = slog.Default()
	}

	// Frozen state is immutable; copy it once.
	s.st.mu.Lock()
	sm.dims = slices.Clone(s.st.dims)
	sm.variables = slices.Clone(s.st.variables)
	sm.subspaces = slices.Clone(s.st.subspaces)
	sm.identity = s.st.identity
	s.st.mu.Unlock()

	if err := sm.resolveVariables(); err != nil {
		return nil, err
	}
	return sm, nil
}

func (sm *Sampler) resolveVariables() error {
	sm.values = make(map[string]ir.IRValue, len(sm.variables))
	for _, name := range sm.variables {
		raw, ok := sm.supplied[name]
		if !ok {
			return NewMissingVariableError(name)
		}
		v, err := ir.ToIRValue(raw)
		if err != nil {
			return configErr(ErrCodeInvalidOption, "", "variable %q: %v", name, err)
		}
		sm.values[name] = v
	}
	for name := range sm.supplied {
		if _, ok := sm.values[name]; !ok {
			return configErr(ErrCodeUnknownReference, "", "variable %q is not declared", name)
		}
	}
	return nil
}

// Sample draws one sample.
//
// Dimensions are swept in insertion order. Each sweep draws every dimension
// whose eligibility is True and drops every dimension whose eligibility is
// False; sweeps repeat until one makes no progress. Dimensions still pending
// at that point are reported as a ConfigurationError.
func (sm *Sampler) Sample(rng *rand.Rand) (Sample, error) {
	if rng == nil {
		return Sample{}, fmt.Errorf("sample: nil random source")
	}

	env := &partial{
		values: make(map[string]ir.IRValue, len(sm.dims)+len(sm.values)),
		status: make(map[string]Status, len(sm.dims)+len(sm.values)),
	}
	for name, v := range sm.values {
		env.values[name] = v
		env.status[name] = Present
	}
	for _, d := range sm.dims {
		env.status[d.name] = Pending
	}

	for progress := true; progress; {
		progress = false
		for _, d := range sm.dims {
			if env.status[d.name] != Pending {
				continue
			}
			switch d.Eligibility(env) {
			case True:
				v, err := sm.draw(d, rng)
				if err != nil {
					return Sample{}, err
				}
				env.values[d.name] = v
				env.status[d.name] = Present
				progress = true
			case False:
				env.status[d.name] = Inactive
				progress = true
			}
		}
	}

	var pending []string
	for _, d := range sm.dims {
		if env.status[d.name] == Pending {
			pending = append(pending, d.name)
		}
	}
	if len(pending) > 0 {
		return Sample{}, NewUnresolvedError(pending)
	}

	out := Sample{subspaces: sm.subspaces}
	for _, d := range sm.dims {
		if env.status[d.name] == Present {
			out.set(d.name, env.values[d.name])
		}
	}
	for _, name := range sm.variables {
		out.set(name, sm.values[name])
	}
	if sm.identity != nil {
		id, err := identityOf(out, sm.identity)
		if err != nil {
			return Sample{}, err
		}
		out.set(sm.identity.Name, ir.IRString(id))
	}
	return out, nil
}

// SampleN draws n independent samples that share only the generator.
func (sm *Sampler) SampleN(rng *rand.Rand, n int) ([]Sample, error) {
	if n < 0 {
		return nil, fmt.Errorf("sample: negative sample count %d", n)
	}
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		sample, err := sm.Sample(rng)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// draw produces a value for d that no forbid expression rejects.
func (sm *Sampler) draw(d *Dimension, rng *rand.Rand) (ir.IRValue, error) {
	for attempt := 1; attempt <= sm.maxAttempts; attempt++ {
		v := d.dist.Draw(rng)
		if !d.Forbidden(v) {
			return v, nil
		}
		sm.logger.Debug("forbidden candidate rejected",
			"dimension", d.name,
			"value", ir.FormatValue(v),
			"attempt", attempt)
	}

	sm.logger.Warn("retry budget exhausted",
		"dimension", d.name,
		"attempts", sm.maxAttempts)
	return nil, &SamplingError{Dimension: d.name, Attempts: sm.maxAttempts}
}

func identityOf(s Sample, id *ir.IdentitySpec) (string, error) {
	if id.Format == ir.IdentityUUID {
		return ir.SampleUUID(s.Object())
	}
	return ir.SampleIdentity(s.Object(), id.Size)
}

// partial is the environment seen while a sample is being built.
type partial struct {
	values map[string]ir.IRValue
	status map[string]Status
}

func (p *partial) Lookup(name string) (ir.IRValue, Status) {
	st, ok := p.status[name]
	if !ok {
		return nil, Inactive
	}
	return p.values[name], st
}

// Sample validates and freezes the space, then draws n samples from rng.
func (s *Space) Sample(rng *rand.Rand, n int, opts ...SampleOption) ([]Sample, error) {
	sm, err := NewSampler(s, opts...)
	if err != nil {
		return nil, err
	}
	return sm.SampleN(rng, n)
}

// SampleSeed is like Sample with a fresh generator seeded with seed.
// The same seed and space always produce the same samples.
func (s *Space) SampleSeed(seed int64, n int, opts ...SampleOption) ([]Sample, error) {
	return s.Sample(rand.New(rand.NewSource(seed)), n, opts...)
}
