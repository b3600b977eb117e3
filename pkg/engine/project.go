// Package engine drives spectra from live streams: a project holding the
// spectra, a bounded spill queue fed by producers and a runner that bins
// every queued spill on a single builder goroutine.
package engine

import (
	"fmt"
	"os"
	"sync"

	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/persist"
	"github.com/next-exp/spectra_go/pkg/spectra"
	"gopkg.in/yaml.v3"
)

// Definition describes one spectrum of a project file.
type Definition struct {
	Type       string         `yaml:"type"`
	Name       string         `yaml:"name"`
	Attributes map[string]any `yaml:"attributes"`
}

// ProjectFile is the YAML document listing the spectra of a project.
type ProjectFile struct {
	Spectra []Definition `yaml:"spectra"`
}

func ParseProjectFile(data []byte) (ProjectFile, error) {
	var pf ProjectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return pf, fmt.Errorf("error parsing project file: %w", err)
	}
	return pf, nil
}

func LoadProjectFile(path string) (ProjectFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProjectFile{}, fmt.Errorf("error reading project file %s: %w", path, err)
	}
	return ParseProjectFile(data)
}

// Project is the ordered set of spectra fed by one acquisition. Spills are
// pushed to every spectrum in insertion order.
type Project struct {
	mu      sync.RWMutex
	spectra []*spectra.Spectrum
	reg     *spectra.Registry
	opts    spectra.Options
}

func NewProject(reg *spectra.Registry, opts spectra.Options) *Project {
	if reg == nil {
		reg = spectra.DefaultRegistry()
	}
	return &Project{reg: reg, opts: opts}
}

// Create instantiates a spectrum of type typ, applies set and adds it.
func (p *Project) Create(typ string, set attrs.Set) (*spectra.Spectrum, error) {
	s, err := p.reg.Create(typ, p.opts)
	if err != nil {
		return nil, err
	}
	if len(set) > 0 {
		if err := s.ApplyAttributes(set); err != nil {
			return nil, err
		}
	}
	p.Add(s)
	return s, nil
}

// AddDefinitions creates every spectrum listed in pf. Nothing is added when
// one definition fails.
func (p *Project) AddDefinitions(pf ProjectFile) error {
	created := make([]*spectra.Spectrum, 0, len(pf.Spectra))
	for i, def := range pf.Spectra {
		s, err := p.reg.Create(def.Type, p.opts)
		if err != nil {
			return fmt.Errorf("spectrum %d: %w", i, err)
		}
		set := attrs.Set(def.Attributes).Clone()
		if def.Name != "" {
			set["name"] = def.Name
		}
		if err := s.ApplyAttributes(set); err != nil {
			return fmt.Errorf("spectrum %d (%s): %w", i, def.Name, err)
		}
		created = append(created, s)
	}
	for _, s := range created {
		p.Add(s)
	}
	return nil
}

func (p *Project) Add(s *spectra.Spectrum) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spectra = append(p.spectra, s)
}

// Remove drops the spectrum with the given id and reports whether it was
// present.
func (p *Project) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.spectra {
		if s.ID() == id {
			p.spectra = append(p.spectra[:i], p.spectra[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Project) Get(id string) (*spectra.Spectrum, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.spectra {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

// Find returns the first spectrum named name.
func (p *Project) Find(name string) (*spectra.Spectrum, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.spectra {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Spectra returns the spectra in insertion order.
func (p *Project) Spectra() []*spectra.Spectrum {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*spectra.Spectrum(nil), p.spectra...)
}

func (p *Project) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.spectra)
}

// PushSpill hands spill to every spectrum.
func (p *Project) PushSpill(spill *daq.Spill) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.spectra {
		s.PushSpill(spill)
	}
}

func (p *Project) Flush() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.spectra {
		s.Flush()
	}
}

func (p *Project) Clear() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.spectra {
		s.Clear()
	}
}

// Changed reports whether any spectrum changed since its last reset.
func (p *Project) Changed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.spectra {
		if s.Changed() {
			return true
		}
	}
	return false
}

// ApplyCalibrations attaches cals to every dimension whose binned value has
// a calibration and returns the number of axes updated.
func (p *Project) ApplyCalibrations(cals map[string]calibration.Calibration) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, s := range p.spectra {
		for dim, name := range s.ValueNames() {
			if name == "" {
				continue
			}
			cal, ok := cals[name]
			if !ok {
				continue
			}
			s.SetCalibration(dim, cal)
			n++
		}
	}
	return n
}

func spectrumGroupName(i int) string {
	return fmt.Sprintf("spectrum%d", i)
}

// Save writes every spectrum to its own numbered subgroup of g.
func (p *Project) Save(g persist.Group) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := g.WriteFloat("count", float64(len(p.spectra))); err != nil {
		return &daq.ErrPersistence{Op: "saving project", Name: g.Name(), Err: err}
	}
	for i, s := range p.spectra {
		sg, err := g.CreateGroup(spectrumGroupName(i))
		if err != nil {
			return &daq.ErrPersistence{Op: "saving project", Name: g.Name(), Err: err}
		}
		err = s.Save(sg)
		if cerr := sg.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadProject restores a project written by Save.
func LoadProject(g persist.Group, reg *spectra.Registry, opts spectra.Options) (*Project, error) {
	p := NewProject(reg, opts)
	count, err := persist.ReadInt(g, "count")
	if err != nil {
		return nil, &daq.ErrPersistence{Op: "loading project", Name: g.Name(), Err: err}
	}
	for i := 0; i < count; i++ {
		sg, err := g.OpenGroup(spectrumGroupName(i))
		if err != nil {
			return nil, &daq.ErrPersistence{Op: "loading project", Name: g.Name(), Err: err}
		}
		s, err := spectra.Load(sg, p.reg, opts)
		sg.Close()
		if err != nil {
			return nil, err
		}
		p.spectra = append(p.spectra, s)
	}
	return p, nil
}
