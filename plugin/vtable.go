package plugin

import (
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// ItemOptions carries the print/check flags of spec.md §4.7
// (`print(body, &buf, options)`, `check(body, options)`). Kept as a
// bitmask rather than a struct so item plugins can test a single bit
// without a dependency on a shared options type growing new fields.
type ItemOptions uint32

const (
	ItemOptionVerbose ItemOptions = 1 << iota
	ItemOptionRepair
)

// ItemKind distinguishes the item-plugin groups spec.md §3.4/§4.7
// treats specially: internal items address child blocks, file-body
// items (tail/extent) describe byte ranges and are mutually exclusive
// over any one range.
type ItemKind uint8

const (
	ItemKindPlain ItemKind = iota
	ItemKindInternal
	ItemKindFileBody
)

// Item is the polymorphic per-item vtable of spec.md §4.7. Every item
// plugin (statdata, directory-entry, internal, tail, extent)
// implements this over its own body encoding.
type Item interface {
	Descriptor
	Kind() ItemKind

	MinSize() int
	MaxKey(body []byte) reiser4prim.Key
	Lookup(body []byte, key reiser4prim.Key) (unitPos int, found bool)
	Count(body []byte) int
	Confirm(body []byte) bool
	Valid(body []byte) bool
	Print(body []byte, opts ItemOptions) string
	Check(body []byte, opts ItemOptions) error

	Estimate(posHint int, hint ItemHint) int
	Create(body []byte, hint ItemHint) error
	Insert(body []byte, unitPos int, hint ItemHint) error
	Remove(body []byte, unitPos int) error
}

// InternalItem is the additional vtable group=internal items
// implement (spec.md §4.7: "for group=internal additionally `target`
// and `pointto`").
type InternalItem interface {
	Item
	Target(body []byte) uint64
	PointTo(body []byte, blk uint64)
}

// Node is the node plugin vtable of spec.md §4.6 (node40 is the sole
// implementation this module ships, but the factory dispatches on
// PluginID like any other plugin type).
type Node interface {
	Descriptor
	HeaderSize() int
	ItemHeaderSize() int
	Magic() uint32
}
