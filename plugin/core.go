package plugin

import (
	"context"

	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// ItemHint describes a unit to be inserted or pasted into the tree:
// the key it should sort under, the item plugin that owns its body,
// and the body bytes themselves (spec.md §4.7's `item_hint`).
type ItemHint struct {
	Key      reiser4prim.Key
	PluginID reiser4prim.PluginID
	Body     []byte
}

// Coord identifies one item within one in-memory node: the tree's
// universal "where am I" handle, passed back into Core by plugins that
// need to recurse (spec.md §4.1, §4.8.2).
type Coord struct {
	Node NodeRef
	Pos  int
}

// NodeRef is the minimal read surface of a tree node that a plugin
// needs, kept here (rather than importing the tree package directly)
// to avoid a plugin<->tree import cycle: the tree package's node type
// satisfies this interface structurally.
type NodeRef interface {
	Level() uint8
	Count() int
	ItemKey(pos int) reiser4prim.Key
	ItemBody(pos int) []byte
	ItemPluginID(pos int) reiser4prim.PluginID
}

// Core is the vtable the tree hands to every plugin on registration
// (spec.md §4.1): "request tree lookups, item insertions/removals,
// left/right sibling resolution, item body access, and plugin id
// inspection for a given coordinate." It lets an item plugin perform
// recursive splits (e.g. a directory item overflowing into a new
// tree entry) without depending on tree internals.
type Core interface {
	Lookup(ctx context.Context, stopLevel uint8, key reiser4prim.Key) (Coord, bool, error)
	Insert(ctx context.Context, hint ItemHint) (Coord, error)
	Remove(ctx context.Context, key reiser4prim.Key) error

	LeftNeighbor(ctx context.Context, coord Coord) (Coord, bool, error)
	RightNeighbor(ctx context.Context, coord Coord) (Coord, bool, error)

	ItemBody(coord Coord) []byte
	ItemPluginID(coord Coord) reiser4prim.PluginID
}
