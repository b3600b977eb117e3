// Package persist defines the hierarchical storage surface spectra are
// saved to: named groups holding named scalar attributes and named flat
// numeric datasets.
package persist

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every lookup of a missing attribute, dataset or
// group.
var ErrNotFound = errors.New("not found")

// Group is one node of the hierarchy. Implementations need not be safe for
// concurrent use.
type Group interface {
	Name() string

	CreateGroup(name string) (Group, error)
	OpenGroup(name string) (Group, error)

	WriteString(name string, value string) error
	ReadString(name string) (string, error)
	WriteFloat(name string, value float64) error
	ReadFloat(name string) (float64, error)

	WriteDataset(name string, data []float64) error
	ReadDataset(name string) ([]float64, error)

	Close() error
}

func notFound(kind string, group string, name string) error {
	return fmt.Errorf("%s %q in group %q: %w", kind, name, group, ErrNotFound)
}

// ReadInt reads a float attribute and truncates it.
func ReadInt(g Group, name string) (int, error) {
	f, err := g.ReadFloat(name)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
