package dataspace

import (
	"errors"
	"fmt"
	"iter"

	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/persist"
)

// Scalar is a zero-dimensional tracker: the latest value, the extremes seen
// since the last Clear and the number of samples.
type Scalar struct {
	base
	value float64
	min   float64
	max   float64
}

func NewScalar() *Scalar {
	return &Scalar{base: newBase(0)}
}

func (s *Scalar) Kind() Kind { return KindScalar }

func (s *Scalar) Value() float64 { return s.value }
func (s *Scalar) Min() float64   { return s.min }
func (s *Scalar) Max() float64   { return s.max }

// Add replaces the current value with e.Value.
func (s *Scalar) Add(e Entry) {
	if len(e.Coords) != 0 {
		return
	}
	s.set(e.Value)
}

// AddOne increments the current value.
func (s *Scalar) AddOne(coords []int) {
	if len(coords) != 0 {
		return
	}
	s.set(s.value + 1)
}

func (s *Scalar) set(v float64) {
	if s.totalCount == 0 {
		s.min, s.max = v, v
	} else {
		if v < s.min {
			s.min = v
		}
		if v > s.max {
			s.max = v
		}
	}
	s.value = v
	s.totalCount++
}

func (s *Scalar) Get(coords []int) float64 {
	if len(coords) != 0 {
		return 0
	}
	return s.value
}

func (s *Scalar) Range([]Bound) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		if s.totalCount == 0 {
			return
		}
		yield(Entry{Value: s.value})
	}
}

func (s *Scalar) All() iter.Seq[Entry] { return s.Range(nil) }

func (s *Scalar) Clear() {
	s.value, s.min, s.max = 0, 0, 0
	s.totalCount = 0
}

func (s *Scalar) RecalcAxes() {}

func (s *Scalar) Clone() Dataspace {
	n := *s
	n.base = s.cloneBase()
	return &n
}

func (s *Scalar) Save(g persist.Group) error {
	return s.saveCommon(g, KindScalar, func(dg persist.Group) error {
		return errors.Join(
			dg.WriteFloat("value", s.value),
			dg.WriteFloat("min", s.min),
			dg.WriteFloat("max", s.max))
	})
}

func (s *Scalar) Load(g persist.Group, reg *calibration.Registry) error {
	var value, min, max float64
	err := s.loadCommon(g, KindScalar, reg, func(dg persist.Group) error {
		var err error
		if value, err = dg.ReadFloat("value"); err != nil {
			return err
		}
		if min, err = dg.ReadFloat("min"); err != nil {
			return err
		}
		max, err = dg.ReadFloat("max")
		return err
	})
	if err != nil {
		return err
	}
	s.value, s.min, s.max = value, min, max
	return nil
}

func (s *Scalar) Debug(prefix string) string {
	return fmt.Sprintf("%sScalar value=%g min=%g max=%g samples=%g\n", prefix, s.value, s.min, s.max, s.totalCount)
}
