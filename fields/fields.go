// Package fields assembles the loader's output into field containers, the
// shape downstream analysis code consumes. It does not interpret the data.
package fields

import (
	"sort"

	"github.com/simdata/snapload/lazy"
	"github.com/simdata/snapload/load"
)

// Container holds the named fields of one group alongside the group's
// attribute mapping.
type Container struct {
	arrays map[string]*lazy.Array
	attrs  map[string]interface{}
}

// Get returns the named field, or nil when absent.
func (c *Container) Get(name string) *lazy.Array { return c.arrays[name] }

// Names lists field names in sorted order.
func (c *Container) Names() []string {
	names := make([]string, 0, len(c.arrays))
	for n := range c.arrays {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Attrs returns the group's attribute mapping (may be nil).
func (c *Container) Attrs() map[string]interface{} { return c.attrs }

// Set adds or replaces a field, for derived quantities computed by callers.
func (c *Container) Set(name string, a *lazy.Array) {
	if c.arrays == nil {
		c.arrays = make(map[string]*lazy.Array)
	}
	c.arrays[name] = a
}

// Collection maps group names to their containers.
type Collection struct {
	groups map[string]*Container
	attrs  map[string]interface{}
}

// FromLoad wraps loader output into a collection. Group attributes are
// pulled out of the metadata by path; the root attribute entry becomes the
// collection's own attrs.
func FromLoad(data load.Data, meta load.Metadata) *Collection {
	col := &Collection{groups: make(map[string]*Container, len(data))}
	for group, arrays := range data {
		c := &Container{arrays: arrays}
		if m, ok := meta["/"+group]; ok {
			c.attrs = m
		}
		col.groups[group] = c
	}
	if m, ok := meta[load.RootAttrKey]; ok {
		col.attrs = m
	}
	return col
}

// Group returns the container for a group, or nil when absent.
func (c *Collection) Group(name string) *Container { return c.groups[name] }

// Groups lists group names in sorted order.
func (c *Collection) Groups() []string {
	names := make([]string, 0, len(c.groups))
	for n := range c.groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Attrs returns the dataset-level (root) attribute mapping (may be nil).
func (c *Collection) Attrs() map[string]interface{} { return c.attrs }
