// Package spectra binds event streams to dataspaces.
//
// A Spectrum owns exactly one Dataspace and runs every spill it is given
// through the same lifecycle: accept the spill, refresh its add-ons against
// the spill's event model, bin the events if it is ready to, then update
// statistics. What a spectrum extracts from an event is decided by its
// kind, one of the binners registered in DefaultRegistry.
package spectra

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/next-exp/spectra_go/pkg/addons"
	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/dataspace"
	"github.com/next-exp/spectra_go/pkg/persist"
)

// NumFilters is the number of filter slots every spectrum carries.
const NumFilters = 4

// Options are the collaborators handed to every spectrum.
type Options struct {
	Logger daq.Logger
	// Now is the consumer wall clock; time.Now when nil.
	Now func() time.Time
	// Calibrations instantiates coefficient functions when loading.
	Calibrations *calibration.Registry
}

func (o Options) withDefaults() Options {
	o.Logger = daq.OrNop(o.Logger)
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Calibrations == nil {
		o.Calibrations = calibration.DefaultRegistry()
	}
	return o
}

// Metadata is a read-only snapshot of a spectrum's identity and settings.
type Metadata struct {
	ID         string
	Type       string
	Name       string
	StreamID   string
	Dimensions int
	Attributes attrs.Set
	Changed    bool
}

// Spectrum is a consumer of spills. Binning is single threaded; the mutex
// only keeps snapshot readers out while a spill is being binned.
type Spectrum struct {
	mu sync.Mutex

	typ      string
	id       string
	name     string
	streamID string

	kind binner
	data dataspace.Dataspace
	opts Options

	filters addons.FilterBlock
	trigger addons.PeriodicTrigger
	rate    addons.RecentRate

	// ownSpill is true while binning a spill of the configured stream.
	ownSpill bool

	startTime    time.Time
	recent       daq.Status
	hasRecent    bool
	realTime     time.Duration
	liveTime     time.Duration
	eventsBinned uint64
	changed      bool
}

func newSpectrum(typ string, k binner, opts Options) *Spectrum {
	s := &Spectrum{
		typ:     typ,
		id:      uuid.NewString(),
		kind:    k,
		opts:    opts.withDefaults(),
		filters: addons.NewFilterBlock(NumFilters),
		trigger: addons.NewPeriodicTrigger(),
		rate:    addons.NewRecentRate(),
	}
	s.data = k.newDataspace()
	return s
}

func (s *Spectrum) Type() string { return s.typ }
func (s *Spectrum) ID() string   { return s.id }

func (s *Spectrum) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// PushSpill runs spill through the lifecycle. Spills the spectrum does not
// accept are ignored.
func (s *Spectrum) PushSpill(spill *daq.Spill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acceptSpill(spill) {
		return
	}
	s.ownSpill = s.ownStream(spill)
	s.pushStatsPre(spill)
	if s.kind.acceptEvents(s, spill) {
		for i := range spill.Events {
			s.pushEvent(&spill.Events[i])
		}
	}
	s.pushStatsPost(spill)
}

// Flush finalizes buffered state without a spill.
func (s *Spectrum) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kind.flush(s)
	s.data.RecalcAxes()
	if s.hasRecent {
		s.rate.Refresh(s.data.TotalCount())
	}
	s.changed = true
}

// ownStream reports whether spill belongs to the stream the spectrum bins.
// Spills of an auxiliary stream never do, even when no stream is set.
func (s *Spectrum) ownStream(spill *daq.Spill) bool {
	if r, ok := s.kind.(router); ok && r.auxiliary(spill) {
		return false
	}
	return s.streamID == "" || spill.StreamID == s.streamID
}

func (s *Spectrum) acceptSpill(spill *daq.Spill) bool {
	if spill.Type == daq.SpillStatus {
		return false
	}
	if r, ok := s.kind.(router); ok && r.auxiliary(spill) {
		return true
	}
	return s.ownStream(spill) && s.kind.acceptSpill(s, spill)
}

func (s *Spectrum) pushStatsPre(spill *daq.Spill) {
	if s.ownSpill {
		if spill.Type == daq.SpillStart && s.startTime.IsZero() {
			s.startTime = spill.Time
		}
		if s.trigger.Triggered {
			s.opts.Logger.Info(fmt.Sprintf("%s: periodic clear after %s", s.label(), s.trigger.Timeout), "spectra")
			s.clearData()
			s.trigger.Reset()
		}
		s.filters.Configure(spill)
	}
	s.kind.statsPre(s, spill)
}

func (s *Spectrum) pushEvent(e *daq.Event) {
	if s.ownSpill && !s.filters.Accept(e) {
		return
	}
	s.kind.pushEvent(s, e)
}

func (s *Spectrum) pushStatsPost(spill *daq.Spill) {
	s.kind.statsPost(s, spill)
	s.data.RecalcAxes()
	s.changed = true
	if !s.ownSpill {
		return
	}

	status := daq.ExtractStatus(spill, s.opts.Now())
	s.trigger.Update(status)
	if s.hasRecent && status.Type != daq.SpillStart {
		elapsed := daq.CalcDiff(s.recent, status, s.realClock(status))
		live := elapsed
		if _, ok := status.Stat(daq.StatLiveTime); ok {
			if _, ok := s.recent.Stat(daq.StatLiveTime); ok {
				live = daq.CalcDiff(s.recent, status, daq.StatLiveTime)
			}
		}
		if elapsed < 0 || live < 0 {
			s.warn("negative elapsed time between spills (real %s, live %s)", elapsed, live)
		} else {
			s.realTime += elapsed
			s.liveTime += live
		}
	}
	s.recent, s.hasRecent = status, true
	s.rate.Update(status, s.data.TotalCount())
}

func (s *Spectrum) realClock(status daq.Status) string {
	if _, ok := status.Stat(daq.StatNativeTime); ok {
		if _, ok := s.recent.Stat(daq.StatNativeTime); ok {
			return daq.StatNativeTime
		}
	}
	return daq.ClockProducerWall
}

// clearData empties the dataspace and any partial state the kind keeps
// about it.
func (s *Spectrum) clearData() {
	s.data.Clear()
	if c, ok := s.kind.(clearer); ok {
		c.cleared(s)
	}
	s.changed = true
}

// Clear empties the dataspace, keeping configuration and axes.
func (s *Spectrum) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearData()
}

func (s *Spectrum) label() string {
	if s.name != "" {
		return fmt.Sprintf("%s %q", s.typ, s.name)
	}
	return s.typ
}

func (s *Spectrum) warn(format string, args ...any) {
	s.opts.Logger.Warn(fmt.Sprintf("%s: %s", s.label(), fmt.Sprintf(format, args...)), "spectra")
}

// Attributes returns the full configuration plus the read-only statistics.
func (s *Spectrum) Attributes() attrs.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attributes()
}

func (s *Spectrum) attributes() attrs.Set {
	set := attrs.Set{
		"name":      s.name,
		"stream_id": s.streamID,
	}
	set.Merge(s.kind.attributes())
	set.Merge(s.filters.Attributes("filter"))
	set.Merge(s.trigger.Attributes("clear"))
	set.Merge(s.rate.Attributes("rate"))

	set["total_count"] = s.data.TotalCount()
	set["recent_rate"] = s.rate.CurrentRate
	set["live_time"] = s.liveTime.String()
	set["real_time"] = s.realTime.String()
	set["events_binned"] = s.eventsBinned
	if !s.startTime.IsZero() {
		set["start_time"] = s.startTime.Format(time.RFC3339Nano)
	}
	return set
}

// GetAttribute looks up one attribute by name.
func (s *Spectrum) GetAttribute(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attributes()[name]
	return v, ok
}

// ApplyAttributes updates the configuration from set. Names missing from
// set keep their value; read-only statistics are ignored. On failure the
// error names the spectrum type and nothing is changed.
func (s *Spectrum) ApplyAttributes(set attrs.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := s.kind.clone()
	filters := addons.FilterBlock{Filters: append([]addons.ValueFilter(nil), s.filters.Filters...)}
	trigger, rate := s.trigger, s.rate

	name, err := set.String("name", s.name)
	if err != nil {
		return &daq.ErrApplyAttributes{Type: s.typ, Err: err}
	}
	stream, err := set.String("stream_id", s.streamID)
	if err != nil {
		return &daq.ErrApplyAttributes{Type: s.typ, Err: err}
	}
	for _, apply := range []func() error{
		func() error { return kind.apply(set) },
		func() error { return filters.Apply(set, "filter") },
		func() error { return trigger.Apply(set, "clear") },
		func() error { return rate.Apply(set, "rate") },
	} {
		if err := apply(); err != nil {
			return &daq.ErrApplyAttributes{Type: s.typ, Err: err}
		}
	}

	s.name, s.streamID = name, stream
	s.kind, s.filters, s.trigger, s.rate = kind, filters, trigger, rate
	s.kind.configureAxes(s.data)
	s.changed = true
	return nil
}

// SetCalibration attaches cal to dimension dim and recomputes the axes.
func (s *Spectrum) SetCalibration(dim int, cal calibration.Calibration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.data.MutableAxis(dim)
	if a == nil {
		return
	}
	a.Calibration = cal.Clone()
	s.data.RecalcAxes()
	s.changed = true
}

// ValueNames lists, per dimension, the event field binned along it. Time
// dimensions report an empty name.
func (s *Spectrum) ValueNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind.valueNames()
}

// Data returns a deep copy of the dataspace.
func (s *Spectrum) Data() dataspace.Dataspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// View runs f with the live dataspace while holding the lock. f must not
// retain d.
func (s *Spectrum) View(f func(d dataspace.Dataspace)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.data)
}

func (s *Spectrum) Metadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Metadata{
		ID:         s.id,
		Type:       s.typ,
		Name:       s.name,
		StreamID:   s.streamID,
		Dimensions: s.data.Dimensions(),
		Attributes: s.attributes(),
		Changed:    s.changed,
	}
}

// Changed reports whether data or configuration changed since the last
// ResetChanged.
func (s *Spectrum) Changed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

func (s *Spectrum) ResetChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed = false
}

// Clone returns a deep copy sharing no state with s.
func (s *Spectrum) Clone() *Spectrum {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Spectrum{
		typ:          s.typ,
		id:           s.id,
		name:         s.name,
		streamID:     s.streamID,
		kind:         s.kind.clone(),
		data:         s.data.Clone(),
		opts:         s.opts,
		filters:      addons.FilterBlock{Filters: append([]addons.ValueFilter(nil), s.filters.Filters...)},
		trigger:      s.trigger,
		rate:         s.rate,
		startTime:    s.startTime,
		recent:       s.recent,
		hasRecent:    s.hasRecent,
		realTime:     s.realTime,
		liveTime:     s.liveTime,
		eventsBinned: s.eventsBinned,
		changed:      s.changed,
	}
}

func (s *Spectrum) Debug(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s id=%s stream=%q\n", prefix, s.label(), s.id, s.streamID)
	set := s.attributes()
	for _, k := range set.Names() {
		fmt.Fprintf(&sb, "%s  %s = %v\n", prefix, k, set[k])
	}
	sb.WriteString(s.data.Debug(prefix + "  "))
	return sb.String()
}

// Save writes the type, identity, attributes and dataspace of s to g.
func (s *Spectrum) Save(g persist.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := yaml.Marshal(map[string]any(s.attributes()))
	if err != nil {
		return &daq.ErrPersistence{Op: "saving spectrum", Name: s.name, Err: err}
	}
	for k, v := range map[string]string{
		"type":       s.typ,
		"id":         s.id,
		"attributes": string(raw),
	} {
		if err := g.WriteString(k, v); err != nil {
			return &daq.ErrPersistence{Op: "saving spectrum", Name: s.name, Err: err}
		}
	}
	dg, err := g.CreateGroup("dataspace")
	if err != nil {
		return &daq.ErrPersistence{Op: "saving spectrum", Name: s.name, Err: err}
	}
	defer dg.Close()
	if err := s.data.Save(dg); err != nil {
		return &daq.ErrPersistence{Op: "saving spectrum", Name: s.name, Err: err}
	}
	return nil
}

// Load reads a spectrum written by Save. Any failure aborts the load: a
// partially restored spectrum is never returned.
func Load(g persist.Group, reg *Registry, opts Options) (*Spectrum, error) {
	typ, err := g.ReadString("type")
	if err != nil {
		return nil, &daq.ErrPersistence{Op: "loading spectrum", Name: g.Name(), Err: err}
	}
	s, err := reg.Create(typ, opts)
	if err != nil {
		return nil, &daq.ErrPersistence{Op: "loading spectrum", Name: g.Name(), Err: err}
	}
	if s.id, err = g.ReadString("id"); err != nil {
		return nil, &daq.ErrPersistence{Op: "loading spectrum", Name: g.Name(), Err: err}
	}
	raw, err := g.ReadString("attributes")
	if err != nil {
		return nil, &daq.ErrPersistence{Op: "loading spectrum", Name: g.Name(), Err: err}
	}
	set := attrs.Set{}
	if err := yaml.Unmarshal([]byte(raw), &set); err != nil {
		return nil, &daq.ErrPersistence{Op: "loading spectrum", Name: g.Name(), Err: err}
	}
	if err := s.ApplyAttributes(set); err != nil {
		return nil, &daq.ErrPersistence{Op: "loading spectrum", Name: g.Name(), Err: err}
	}
	s.restoreStatistics(set)

	dg, err := g.OpenGroup("dataspace")
	if err != nil {
		return nil, &daq.ErrPersistence{Op: "loading spectrum", Name: g.Name(), Err: err}
	}
	defer dg.Close()
	d, err := dataspace.Load(dg, s.opts.Calibrations)
	if err != nil {
		return nil, &daq.ErrPersistence{Op: "loading spectrum", Name: g.Name(), Err: err}
	}
	if d.Kind() != s.data.Kind() {
		return nil, &daq.ErrPersistence{Op: "loading spectrum", Name: g.Name(),
			Err: fmt.Errorf("%s stores a %s dataspace, expected %s", typ, d.Kind(), s.data.Kind())}
	}
	s.data = d
	s.changed = false
	return s, nil
}

func (s *Spectrum) restoreStatistics(set attrs.Set) {
	switch v := set["start_time"].(type) {
	case time.Time:
		s.startTime = v
	case string:
		s.startTime, _ = time.Parse(time.RFC3339Nano, v)
	}
	if v, err := set.Duration("live_time", 0); err == nil {
		s.liveTime = v
	}
	if v, err := set.Duration("real_time", 0); err == nil {
		s.realTime = v
	}
	if v, err := set.Float("recent_rate", 0); err == nil {
		s.rate.CurrentRate = v
	}
	if v, err := set.Float("events_binned", 0); err == nil {
		s.eventsBinned = uint64(v)
	}
}

// bin adds one count at coords.
func (s *Spectrum) bin(coords []int) {
	s.data.AddOne(coords)
	s.eventsBinned++
}

// binValue adds v at coords.
func (s *Spectrum) binValue(coords []int, v float64) {
	s.data.Add(dataspace.Entry{Coords: coords, Value: v})
	s.eventsBinned++
}
