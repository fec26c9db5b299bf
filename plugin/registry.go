// Package plugin is the late-binding fabric every on-disk format
// choice flows through (spec.md §4.1): a registry keyed by
// (PluginType, PluginID), plus the "core" vtable handed to each
// plugin so it can recurse into the tree without depending on the
// tree package directly.
package plugin

import (
	"fmt"

	"github.com/edward6/reiser4-sub006/internal/containers"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Descriptor is the common interface every registered plugin
// implements, regardless of its PluginType.
type Descriptor interface {
	PluginID() reiser4prim.PluginID
	PluginType() reiser4prim.PluginType
	Label() string
}

type registryKey struct {
	typ reiser4prim.PluginType
	id  reiser4prim.PluginID
}

// Registry is the process-wide plugin table (spec.md §4.1). The zero
// value is not usable; use NewRegistry.
type Registry struct {
	byKey   map[registryKey]Descriptor
	byLabel map[reiser4prim.PluginType]map[string]Descriptor
	cache   *containers.LRUCache[registryKey, Descriptor]
}

// NewRegistry returns an empty registry. cacheSize bounds the
// memoization cache's entry count; 0 uses a sensible default.
func NewRegistry(cacheSize int) *Registry {
	return &Registry{
		byKey:   make(map[registryKey]Descriptor),
		byLabel: make(map[reiser4prim.PluginType]map[string]Descriptor),
		cache:   containers.NewLRUCache[registryKey, Descriptor](cacheSize),
	}
}

// Register appends desc to the registry. It rejects duplicate
// (type,id) pairs, per spec.md §4.1's "reject duplicates of the same
// (type,id)".
func (r *Registry) Register(desc Descriptor) error {
	key := registryKey{typ: desc.PluginType(), id: desc.PluginID()}
	if _, exists := r.byKey[key]; exists {
		return fmt.Errorf("plugin: duplicate registration for type=%v id=%v", key.typ, key.id)
	}
	r.byKey[key] = desc
	if r.byLabel[desc.PluginType()] == nil {
		r.byLabel[desc.PluginType()] = make(map[string]Descriptor)
	}
	r.byLabel[desc.PluginType()][desc.Label()] = desc
	return nil
}

// FindByID looks up a plugin by its (type,id) pair.
func (r *Registry) FindByID(typ reiser4prim.PluginType, id reiser4prim.PluginID) (Descriptor, bool) {
	key := registryKey{typ: typ, id: id}
	if cached, ok := r.cache.Get(key); ok {
		return cached, true
	}
	desc, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	r.cache.Add(key, desc)
	return desc, true
}

// FindByLabel looks up a plugin by its human-readable name within a
// type.
func (r *Registry) FindByLabel(typ reiser4prim.PluginType, label string) (Descriptor, bool) {
	byLabel, ok := r.byLabel[typ]
	if !ok {
		return nil, false
	}
	desc, ok := byLabel[label]
	return desc, ok
}

// Iterate invokes fn on each registered plugin of the given type,
// until fn returns false to stop.
func (r *Registry) Iterate(typ reiser4prim.PluginType, fn func(Descriptor) bool) {
	for key, desc := range r.byKey {
		if key.typ != typ {
			continue
		}
		if !fn(desc) {
			return
		}
	}
}
