// Package h5store stores persist groups in HDF5 files. Attributes become
// scalar HDF5 attributes and datasets one-dimensional double arrays.
package h5store

import (
	"errors"
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"

	"github.com/next-exp/spectra_go/pkg/persist"
)

// File is an open HDF5 file and its root group.
type File struct {
	Filename string
	file     *hdf5.File
	root     *Group
}

// Create truncates or creates filename.
func Create(filename string) (*File, error) {
	f, err := hdf5.CreateFile(filename, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, fmt.Errorf("error creating %s: %w", filename, err)
	}
	return newFile(filename, f)
}

// Open opens filename read-only.
func Open(filename string) (*File, error) {
	f, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", filename, err)
	}
	return newFile(filename, f)
}

func newFile(filename string, f *hdf5.File) (*File, error) {
	root, err := f.OpenGroup("/")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error opening root group of %s: %w", filename, err)
	}
	return &File{Filename: filename, file: f, root: &Group{name: "/", group: root}}, nil
}

// Root is the top level group of the file.
func (f *File) Root() persist.Group { return f.root }

func (f *File) Close() error {
	var errs []error
	if err := f.root.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing root group: %w", err))
	}
	if err := f.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}
	return errors.Join(errs...)
}

// Group implements persist.Group over an HDF5 group.
type Group struct {
	name  string
	group *hdf5.Group
}

func (g *Group) Name() string { return g.name }

func (g *Group) CreateGroup(name string) (persist.Group, error) {
	sub, err := g.group.CreateGroup(name)
	if err != nil {
		return nil, fmt.Errorf("error creating group %s in %s: %w", name, g.name, err)
	}
	return &Group{name: name, group: sub}, nil
}

func (g *Group) OpenGroup(name string) (persist.Group, error) {
	if !g.group.LinkExists(name) {
		return nil, notFound("group", g.name, name)
	}
	sub, err := g.group.OpenGroup(name)
	if err != nil {
		return nil, fmt.Errorf("error opening group %s in %s: %w", name, g.name, err)
	}
	return &Group{name: name, group: sub}, nil
}

func (g *Group) writeAttribute(name string, value any, dtype *hdf5.Datatype) error {
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return fmt.Errorf("error creating dataspace for attribute %s: %w", name, err)
	}
	defer space.Close()
	attr, err := g.group.CreateAttribute(name, dtype, space)
	if err != nil {
		return fmt.Errorf("error creating attribute %s in %s: %w", name, g.name, err)
	}
	defer attr.Close()
	if err := attr.Write(value, dtype); err != nil {
		return fmt.Errorf("error writing attribute %s in %s: %w", name, g.name, err)
	}
	return nil
}

func (g *Group) readAttribute(name string, value any, dtype *hdf5.Datatype) error {
	attr, err := g.group.OpenAttribute(name)
	if err != nil {
		return notFound("attribute", g.name, name)
	}
	defer attr.Close()
	if err := attr.Read(value, dtype); err != nil {
		return fmt.Errorf("error reading attribute %s in %s: %w", name, g.name, err)
	}
	return nil
}

func (g *Group) WriteString(name string, value string) error {
	return g.writeAttribute(name, &value, hdf5.T_GO_STRING)
}

func (g *Group) ReadString(name string) (string, error) {
	var s string
	err := g.readAttribute(name, &s, hdf5.T_GO_STRING)
	return s, err
}

func (g *Group) WriteFloat(name string, value float64) error {
	return g.writeAttribute(name, &value, hdf5.T_NATIVE_DOUBLE)
}

func (g *Group) ReadFloat(name string) (float64, error) {
	var f float64
	err := g.readAttribute(name, &f, hdf5.T_NATIVE_DOUBLE)
	return f, err
}

func (g *Group) WriteDataset(name string, data []float64) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(data))}, nil)
	if err != nil {
		return fmt.Errorf("error creating dataspace for %s: %w", name, err)
	}
	defer space.Close()
	dset, err := g.group.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return fmt.Errorf("error creating dataset %s in %s: %w", name, g.name, err)
	}
	defer dset.Close()
	if len(data) == 0 {
		return nil
	}
	if err := dset.Write(&data); err != nil {
		return fmt.Errorf("error writing dataset %s in %s: %w", name, g.name, err)
	}
	return nil
}

func (g *Group) ReadDataset(name string) ([]float64, error) {
	if !g.group.LinkExists(name) {
		return nil, notFound("dataset", g.name, name)
	}
	dset, err := g.group.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("error opening dataset %s in %s: %w", name, g.name, err)
	}
	defer dset.Close()
	space := dset.Space()
	n := space.SimpleExtentNPoints()
	space.Close()
	data := make([]float64, n)
	if n == 0 {
		return data, nil
	}
	if err := dset.Read(&data); err != nil {
		return nil, fmt.Errorf("error reading dataset %s in %s: %w", name, g.name, err)
	}
	return data, nil
}

func (g *Group) Close() error {
	return g.group.Close()
}

func notFound(kind string, group string, name string) error {
	return fmt.Errorf("%s %q in group %q: %w", kind, name, group, persist.ErrNotFound)
}

var _ persist.Group = (*Group)(nil)
