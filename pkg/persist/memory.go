package persist

// MemGroup keeps a hierarchy in memory. It backs tests and lets spectra be
// snapshotted without touching disk.
type MemGroup struct {
	name     string
	strs     map[string]string
	floats   map[string]float64
	datasets map[string][]float64
	groups   map[string]*MemGroup
}

func NewMemGroup(name string) *MemGroup {
	return &MemGroup{
		name:     name,
		strs:     make(map[string]string),
		floats:   make(map[string]float64),
		datasets: make(map[string][]float64),
		groups:   make(map[string]*MemGroup),
	}
}

func (g *MemGroup) Name() string { return g.name }

// CreateGroup replaces any existing child of the same name.
func (g *MemGroup) CreateGroup(name string) (Group, error) {
	c := NewMemGroup(name)
	g.groups[name] = c
	return c, nil
}

func (g *MemGroup) OpenGroup(name string) (Group, error) {
	c, ok := g.groups[name]
	if !ok {
		return nil, notFound("group", g.name, name)
	}
	return c, nil
}

func (g *MemGroup) WriteString(name string, value string) error {
	g.strs[name] = value
	return nil
}

func (g *MemGroup) ReadString(name string) (string, error) {
	v, ok := g.strs[name]
	if !ok {
		return "", notFound("attribute", g.name, name)
	}
	return v, nil
}

func (g *MemGroup) WriteFloat(name string, value float64) error {
	g.floats[name] = value
	return nil
}

func (g *MemGroup) ReadFloat(name string) (float64, error) {
	v, ok := g.floats[name]
	if !ok {
		return 0, notFound("attribute", g.name, name)
	}
	return v, nil
}

func (g *MemGroup) WriteDataset(name string, data []float64) error {
	g.datasets[name] = append([]float64(nil), data...)
	return nil
}

func (g *MemGroup) ReadDataset(name string) ([]float64, error) {
	v, ok := g.datasets[name]
	if !ok {
		return nil, notFound("dataset", g.name, name)
	}
	return append([]float64(nil), v...), nil
}

func (g *MemGroup) Close() error { return nil }
