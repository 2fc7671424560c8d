// Package props defines the property maps that flow between rule matching,
// property sources, and template rendering.
package props

import (
	"maps"
	"slices"
)

// Map holds named string properties, extracted from a task or fetched from a
// property source.
type Map map[string]string

// Clone returns a copy of m. The copy of a nil map is an empty, non-nil map.
func (m Map) Clone() Map {
	c := make(Map, len(m))
	maps.Copy(c, m)

	return c
}

// Overlay returns a new map holding every entry of m, with every entry of top
// written over it. Entries of top win on key collisions.
func (m Map) Overlay(top Map) Map {
	c := make(Map, len(m)+len(top))
	maps.Copy(c, m)
	maps.Copy(c, top)

	return c
}

// Keys returns the property names in sorted order.
func (m Map) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}
