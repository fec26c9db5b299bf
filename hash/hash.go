// Package hash holds the directory-name hash plugins spec.md §4.1/
// §4.5 dispatches by id: pure functions from a name to the 56-bit
// field BuildDirectory packs into a key's third word. Three
// algorithms are registered under reiser4prim's pre-declared
// HashPluginR5/HashPluginTea/HashPluginFnv1 ids, matching the
// industry-standard hash choices reiserfs-family filesystems have
// shipped since reiser3 (see DESIGN.md: no pack example implements
// these, so the constants alone grounded the ids, not the arithmetic).
package hash

import (
	"hash/fnv"

	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Plugin is a directory-name hash plugin: a registered descriptor plus
// the pure function reiser4prim.BuildDirectory needs.
type Plugin interface {
	plugin.Descriptor
	Func() reiser4prim.HashFunc
}

// R5 is reiserfs's classic default hash.
type R5 struct{}

func (R5) PluginID() reiser4prim.PluginID     { return reiser4prim.HashPluginR5 }
func (R5) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeHash }
func (R5) Label() string                      { return "r5" }
func (R5) Func() reiser4prim.HashFunc         { return r5 }

// r5 is the traditional reiserfs r5 string hash.
func r5(name string) uint64 {
	a := uint64(0)
	for _, c := range []byte(name) {
		a += uint64(c) << 4
		a += uint64(c) >> 4
		a *= 11
	}
	return a
}

// Tea is the Tiny Encryption Algorithm based hash reiserfs offers as
// an alternative to r5 for names that collide under it.
type Tea struct{}

func (Tea) PluginID() reiser4prim.PluginID     { return reiser4prim.HashPluginTea }
func (Tea) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeHash }
func (Tea) Label() string                      { return "tea" }
func (Tea) Func() reiser4prim.HashFunc         { return tea }

func tea(name string) uint64 {
	var buf [4]uint32
	b := []byte(name)
	for i := range buf {
		var word uint32
		for j := 0; j < 4; j++ {
			idx := i*4 + j
			if idx < len(b) {
				word |= uint32(b[idx]) << (8 * uint(j))
			}
		}
		buf[i] = word
	}

	a, bb, c, d := buf[0], buf[1], buf[2], buf[3]
	const delta = 0x9E3779B9
	var sum uint32
	h0, h1 := uint32(0x9464A485), uint32(0x542F8B5D)
	for i := 0; i < 16; i++ {
		sum += delta
		h0 += ((h1 << 4) + a) ^ (h1 + sum) ^ ((h1 >> 5) + bb)
		h1 += ((h0 << 4) + c) ^ (h0 + sum) ^ ((h0 >> 5) + d)
	}
	return uint64(h0)<<32 | uint64(h1)
}

// Fnv1 is the stdlib FNV-1 64-bit hash, offered as a simple
// general-purpose alternative.
type Fnv1 struct{}

func (Fnv1) PluginID() reiser4prim.PluginID     { return reiser4prim.HashPluginFnv1 }
func (Fnv1) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeHash }
func (Fnv1) Label() string                      { return "fnv1" }
func (Fnv1) Func() reiser4prim.HashFunc         { return fnv1 }

func fnv1(name string) uint64 {
	h := fnv.New64()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

var (
	_ Plugin = R5{}
	_ Plugin = Tea{}
	_ Plugin = Fnv1{}
)
