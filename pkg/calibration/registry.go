package calibration

import (
	"github.com/next-exp/spectra_go/pkg/daq"
	"golang.org/x/exp/slices"
)

type Constructor func() CoefFunction

// Registry maps coefficient function type names to constructors. It is
// built once at startup and handed to whatever needs to instantiate
// functions by name, typically a persistence loader.
type Registry struct {
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// DefaultRegistry knows every function type in this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("Polynomial", func() CoefFunction { return NewPolynomial() })
	r.Register("SqrtPoly", func() CoefFunction { return NewSqrtPoly() })
	return r
}

func (r *Registry) Register(name string, ctor Constructor) {
	r.ctors[name] = ctor
}

func (r *Registry) Create(name string) (CoefFunction, error) {
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, &daq.ErrUnknownType{Registry: "coefficient function", Name: name}
	}
	return ctor(), nil
}

func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
