package spectra

import (
	"github.com/next-exp/spectra_go/pkg/daq"
	"golang.org/x/exp/slices"
)

// Registry maps spectrum type names to their binning kinds. Projects and
// loaders create spectra by name through it.
type Registry struct {
	kinds map[string]func() binner
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]func() binner)}
}

// DefaultRegistry knows every spectrum type in this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.register("Histogram1D", newHistogram1D)
	r.register("Image2D", newImage2D)
	r.register("Histogram3D", newHistogram3D)
	r.register("TimeSpectrum", newTimeSpectrum)
	r.register("TimeDomain", newTimeDomain)
	r.register("TimeDelta1D", newTimeDelta1D)
	r.register("TOF1D", newTOF1D)
	r.register("TOFVal2D", newTOFVal2D)
	r.register("TOF1DCorrelate", newTOF1DCorrelate)
	r.register("TOFVal2DCorrelate", newTOFVal2DCorrelate)
	r.register("TOFVal3DCorrelate", newTOFVal3DCorrelate)
	r.register("StatsScalar", newStatsScalar)
	return r
}

func (r *Registry) register(name string, k func() binner) {
	r.kinds[name] = k
}

// Create returns a fresh spectrum of type typ with default attributes.
func (r *Registry) Create(typ string, opts Options) (*Spectrum, error) {
	k, ok := r.kinds[typ]
	if !ok {
		return nil, &daq.ErrUnknownType{Registry: "spectrum", Name: typ}
	}
	return newSpectrum(typ, k(), opts), nil
}

func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
