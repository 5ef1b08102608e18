package accel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateFamily is returned by NewRegistry when two families share an index or name.
var ErrDuplicateFamily = errors.New("duplicate curve family")

// Registry is an immutable catalog of curve families. Build it once with
// NewRegistry (or Builtin) and pass it to whatever needs family lookups.
type Registry struct {
	ordered []Family
	byIndex map[Index]int
	byName  map[string]int
	off     Family
}

// NewRegistry builds a registry in the given order. The family registered at
// the Off index is the fallback; without one the built-in Off is used.
func NewRegistry(families ...Family) (*Registry, error) {
	r := &Registry{
		ordered: make([]Family, 0, len(families)),
		byIndex: make(map[Index]int, len(families)),
		byName:  make(map[string]int, len(families)),
		off:     Off(),
	}

	for _, f := range families {
		if f.Name == "" {
			return nil, fmt.Errorf("curve family with index %d has no name", f.Index)
		}
		key := strings.ToLower(f.Name)
		if prev, ok := r.byIndex[f.Index]; ok {
			return nil, fmt.Errorf("%w: index %d used by %q and %q", ErrDuplicateFamily, f.Index, r.ordered[prev].Name, f.Name)
		}
		if _, ok := r.byName[key]; ok {
			return nil, fmt.Errorf("%w: name %q", ErrDuplicateFamily, f.Name)
		}

		r.byIndex[f.Index] = len(r.ordered)
		r.byName[key] = len(r.ordered)
		r.ordered = append(r.ordered, f)
	}

	if i, ok := r.byIndex[Off().Index]; ok {
		r.off = r.ordered[i]
	}
	return r, nil
}

// Builtin returns a registry with every family the driver implements.
func Builtin() *Registry {
	r, err := NewRegistry(Off(), Motivity(), Gudermannian())
	if err != nil {
		// The built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return r
}

// Lookup finds a family by name, case-insensitively.
func (r *Registry) Lookup(name string) (Family, bool) {
	i, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Family{}, false
	}
	return r.ordered[i], true
}

// LookupIndex finds a family by its driver index.
func (r *Registry) LookupIndex(idx Index) (Family, bool) {
	i, ok := r.byIndex[idx]
	if !ok {
		return Family{}, false
	}
	return r.ordered[i], true
}

// Resolve is LookupIndex with the Off family as fallback.
func (r *Registry) Resolve(idx Index) Family {
	if f, ok := r.LookupIndex(idx); ok {
		return f
	}
	return r.off
}

// Off returns the registry's identity family.
func (r *Registry) Off() Family { return r.off }

// All returns the families in registration order.
func (r *Registry) All() []Family {
	out := make([]Family, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the family names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.ordered))
	for i, f := range r.ordered {
		out[i] = f.Name
	}
	return out
}
