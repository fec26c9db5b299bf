// Package tree is the balanced B+-tree engine of spec.md §4.8: an
// in-memory node cache layered over node40, with lookup/insert/remove
// propagating splits up to a fresh root, and sibling resolution by
// walking the cache.
package tree

import (
	"sort"

	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/node40"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// record is one in-memory tree-cache entry: a node plus its
// parent/left/right back-pointers and a sorted children collection
// (spec.md §4.8.1). The zero value is not usable.
type record struct {
	addr     diskio.BlockAddr
	node     *node40.Node
	parent   *record
	left     *record
	right    *record
	children []*record // sorted by leftKey()
}

// leftKey is the key that delimits this node from its left neighbor:
// its first item's key, or reiser4prim.MaxKey for a transiently empty
// node (never true of anything but a brand-new root).
func (r *record) leftKey() reiser4prim.Key {
	if r.node.Count() == 0 {
		return reiser4prim.MaxKey
	}
	return r.node.ItemKey(0)
}

// The following four methods, plus ItemKey below, satisfy
// plugin.NodeRef so a *record can be handed to item plugins through
// plugin.Coord without the plugin package importing tree.
func (r *record) Level() uint8 { return r.node.Level() }
func (r *record) Count() int   { return r.node.Count() }

func (r *record) ItemKey(pos int) reiser4prim.Key { return r.node.ItemKey(pos) }

func (r *record) ItemBody(pos int) []byte {
	b, err := r.node.ItemBody(pos)
	if err != nil {
		return nil
	}
	return b
}

func (r *record) ItemPluginID(pos int) reiser4prim.PluginID { return r.node.ItemPluginID(pos) }

// registerChild inserts child into r's sorted children collection and
// rewires the left/right sibling pointers of child and its new
// immediate neighbors (spec.md §4.8.1: "Registering a child re-runs a
// sorted insert and rewires neighbor pointers").
func (r *record) registerChild(child *record) {
	child.parent = r
	key := child.leftKey()
	idx := sort.Search(len(r.children), func(i int) bool {
		return r.children[i].leftKey().Compare(key) >= 0
	})
	r.children = append(r.children, nil)
	copy(r.children[idx+1:], r.children[idx:])
	r.children[idx] = child

	child.left, child.right = nil, nil
	if idx > 0 {
		left := r.children[idx-1]
		left.right = child
		child.left = left
	}
	if idx+1 < len(r.children) {
		right := r.children[idx+1]
		right.left = child
		child.right = right
	}
}

// unregisterChild removes child from r's children and splices the
// sibling chain around it.
func (r *record) unregisterChild(child *record) {
	idx := -1
	for i, c := range r.children {
		if c == child {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	r.children = append(r.children[:idx], r.children[idx+1:]...)
	if child.left != nil {
		child.left.right = child.right
	}
	if child.right != nil {
		child.right.left = child.left
	}
	child.left, child.right, child.parent = nil, nil, nil
}

// findChildByFirstKey returns the already-cached child whose leftKey
// equals key, matching spec.md §4.8.2 step 5's "matched by the
// child's first key".
func (r *record) findChildByFirstKey(key reiser4prim.Key) (*record, bool) {
	idx := sort.Search(len(r.children), func(i int) bool {
		return r.children[i].leftKey().Compare(key) >= 0
	})
	if idx < len(r.children) && r.children[idx].leftKey().Compare(key) == 0 {
		return r.children[idx], true
	}
	return nil, false
}
