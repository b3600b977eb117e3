package daq

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can decide between
// log-and-continue and abort.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfiguration
	KindShape
	KindConvergence
	KindPersistence
	KindOrdering
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindShape:
		return "shape"
	case KindConvergence:
		return "convergence"
	case KindPersistence:
		return "persistence"
	case KindOrdering:
		return "ordering"
	default:
		return "unknown"
	}
}

// KindOf walks the wrap chain and returns the kind of the first error that
// carries one.
func KindOf(err error) ErrorKind {
	var k interface{ Kind() ErrorKind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// ErrInvalidTimeBase represents a time base with a zero component.
type ErrInvalidTimeBase struct {
	Multiplier uint64
	Divider    uint64
}

func (e *ErrInvalidTimeBase) Error() string {
	return fmt.Sprintf("invalid time base %d/%d: components must be non-zero", e.Multiplier, e.Divider)
}

func (e *ErrInvalidTimeBase) Kind() ErrorKind { return KindConfiguration }

// ErrApplyAttributes wraps an attribute application failure with the
// concrete type that rejected it.
type ErrApplyAttributes struct {
	Type string
	Err  error
}

func (e *ErrApplyAttributes) Error() string {
	return fmt.Sprintf("applying attributes to %s: %v", e.Type, e.Err)
}

func (e *ErrApplyAttributes) Unwrap() error   { return e.Err }
func (e *ErrApplyAttributes) Kind() ErrorKind { return KindConfiguration }

// ErrUnknownType represents a lookup of an unregistered type name.
type ErrUnknownType struct {
	Registry string
	Name     string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown %s type %q", e.Registry, e.Name)
}

func (e *ErrUnknownType) Kind() ErrorKind { return KindConfiguration }

// ErrShape represents a coordinate vector of the wrong length.
type ErrShape struct {
	Expected int
	Got      int
}

func (e *ErrShape) Error() string {
	return fmt.Sprintf("coordinate dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

func (e *ErrShape) Kind() ErrorKind { return KindShape }

// ErrPersistence represents a failed save or load of a named object.
type ErrPersistence struct {
	Op   string
	Name string
	Err  error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *ErrPersistence) Unwrap() error   { return e.Err }
func (e *ErrPersistence) Kind() ErrorKind { return KindPersistence }

// ErrTimeRegression represents an event timestamp earlier than its
// predecessor on the same stream.
type ErrTimeRegression struct {
	StreamID string
	Previous uint64
	Current  uint64
}

func (e *ErrTimeRegression) Error() string {
	return fmt.Sprintf("stream %q: timestamp %d precedes %d", e.StreamID, e.Current, e.Previous)
}

func (e *ErrTimeRegression) Kind() ErrorKind { return KindOrdering }
