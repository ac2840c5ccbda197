package space

import (
	"errors"

	"github.com/roach88/sspace/internal/depgraph"
)

// Validate checks the space for problems that only show once every
// dimension is declared: unknown references, activation cycles and forbid
// expressions that escape their dimension. All problems are reported,
// joined with errors.Join; each is a *ConfigurationError.
func (s *Space) Validate() error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.validate()
}

// DependencyOrder returns dimension names ordered so that every dimension
// follows the dimensions its enable conditions read. Ties keep insertion
// order.
func (s *Space) DependencyOrder() ([]string, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	order, err := s.st.graph().TopoOrder()
	if err != nil {
		var ce *depgraph.CycleError
		if errors.As(err, &ce) {
			return nil, cycleError(ce.Cycles)
		}
		return nil, err
	}
	return order, nil
}

// validate is Validate without locking. Caller must hold the lock.
func (st *state) validate() error {
	var errs []error

	known := make(map[string]bool, len(st.dims)+len(st.variables))
	for _, d := range st.dims {
		known[d.name] = true
	}
	for _, v := range st.variables {
		known[v] = true
	}

	for _, d := range st.dims {
		for _, ref := range d.dependencies() {
			if !known[ref] {
				errs = append(errs, NewUnknownReferenceError(d.name, ref))
			}
		}
		for _, f := range d.forbids {
			for _, ref := range f.References() {
				if ref != d.name {
					errs = append(errs, configErr(ErrCodeForbidScope, d.name,
						"forbid expression references %q; only %q may be referenced", ref, d.name))
				}
			}
		}
	}

	if cycles := st.graph().Cycles(); len(cycles) > 0 {
		errs = append(errs, cycleError(cycles))
	}

	return errors.Join(errs...)
}

// graph builds the activation dependency graph over dimensions.
// Variables are always decided before the first sweep, so they add no edges.
func (st *state) graph() *depgraph.Graph {
	g := depgraph.New()
	for _, d := range st.dims {
		g.AddNode(d.name)
		for _, ref := range d.dependencies() {
			if _, ok := st.byName[ref]; ok {
				g.AddEdge(d.name, ref)
			}
		}
	}
	return g
}

func cycleError(cycles []depgraph.Cycle) *ConfigurationError {
	paths := make([]string, len(cycles))
	for i, c := range cycles {
		paths[i] = c.String()
	}
	err := NewCycleError(paths)
	if len(cycles) > 0 {
		err.Dimension = cycles[0].Path[0]
	}
	return err
}
