// Package attrs carries spectrum configuration. It stands in for the
// schema-typed settings tree: a flat name -> value map with typed getters
// that accept the loose types produced by YAML and JSON decoders.
package attrs

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/exp/slices"
)

type Set map[string]any

// Clone copies the top level of s.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Merge overwrites entries of s with those of o.
func (s Set) Merge(o Set) {
	for k, v := range o {
		s[k] = v
	}
}

// Names returns the attribute names in sorted order.
func (s Set) Names() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) String(name string, def string) (string, error) {
	v, ok := s[name]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	}
	return fmt.Sprint(v), nil
}

func (s Set) Float(name string, def float64) (float64, error) {
	v, ok := s[name]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return def, fmt.Errorf("attribute %q: %w", name, err)
		}
		return f, nil
	}
	return def, fmt.Errorf("attribute %q: %T is not a number", name, v)
}

func (s Set) Int(name string, def int) (int, error) {
	f, err := s.Float(name, float64(def))
	if err != nil {
		return def, err
	}
	if f != float64(int(f)) {
		return def, fmt.Errorf("attribute %q: %g is not an integer", name, f)
	}
	return int(f), nil
}

func (s Set) Bool(name string, def bool) (bool, error) {
	v, ok := s[name]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return def, fmt.Errorf("attribute %q: %w", name, err)
		}
		return b, nil
	case int:
		return t != 0, nil
	case float64:
		return t != 0, nil
	}
	return def, fmt.Errorf("attribute %q: %T is not a boolean", name, v)
}

// Duration accepts time.Duration values, Go duration strings ("1.5s") and
// plain numbers interpreted as seconds.
func (s Set) Duration(name string, def time.Duration) (time.Duration, error) {
	v, ok := s[name]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			return def, fmt.Errorf("attribute %q: %w", name, err)
		}
		return d, nil
	}
	f, err := s.Float(name, def.Seconds())
	if err != nil {
		return def, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

// Sub returns the entries whose names start with prefix + ".", with the
// prefix removed.
func (s Set) Sub(prefix string) Set {
	p := prefix + "."
	out := make(Set)
	for k, v := range s {
		if len(k) > len(p) && k[:len(p)] == p {
			out[k[len(p):]] = v
		}
	}
	return out
}

// Prefixed returns a copy of s with every name prefixed by prefix + ".".
func (s Set) Prefixed(prefix string) Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[prefix+"."+k] = v
	}
	return out
}
