package tree

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/item"
	"github.com/edward6/reiser4-sub006/node40"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Insert places hint in the tree, following spec.md §4.8.3. A leaf
// that cannot fit the new item does not split its existing contents:
// a fresh leaf holding only the new item is allocated and wired into
// the parent as a new sibling, the same way at every level the
// recursion climbs — see DESIGN.md for why this module reads "so on
// up" that way instead of as a conventional half-split.
func (t *Tree) Insert(ctx context.Context, hint plugin.ItemHint) (plugin.Coord, error) {
	coord, found, err := t.Lookup(ctx, 1, hint.Key)
	if err != nil {
		return plugin.Coord{}, err
	}
	if found {
		return plugin.Coord{}, fmt.Errorf("tree: insert %v: %w", hint.Key, reiser4prim.ErrDuplicateKey)
	}
	rec := coord.Node.(*record)

	ip, err := t.itemPlugin(hint.PluginID)
	if err != nil {
		return plugin.Coord{}, err
	}
	length := ip.Estimate(coord.Pos, hint)
	need := length + node40.ItemHeaderSize

	if rec.node.FreeSpace() >= need {
		if err := rec.node.Insert(coord.Pos, hint.Key, hint.PluginID, make([]byte, length)); err != nil {
			return plugin.Coord{}, err
		}
		body, err := rec.node.ItemBody(coord.Pos)
		if err != nil {
			return plugin.Coord{}, err
		}
		if err := ip.Create(body, hint); err != nil {
			return plugin.Coord{}, err
		}
		return plugin.Coord{Node: rec, Pos: coord.Pos}, nil
	}

	dlog.Debugf(ctx, "tree: block %d has no room for key %v, allocating overflow node", rec.addr, hint.Key)
	newLeaf, err := t.newNodeSameLevel(rec)
	if err != nil {
		return plugin.Coord{}, err
	}
	if err := newLeaf.node.Insert(0, hint.Key, hint.PluginID, make([]byte, length)); err != nil {
		return plugin.Coord{}, err
	}
	body, err := newLeaf.node.ItemBody(0)
	if err != nil {
		return plugin.Coord{}, err
	}
	if err := ip.Create(body, hint); err != nil {
		return plugin.Coord{}, err
	}
	if err := t.insertNode(ctx, rec.parent, newLeaf); err != nil {
		return plugin.Coord{}, err
	}
	return plugin.Coord{Node: newLeaf, Pos: 0}, nil
}

// insertNode wires child into parent as a new internal pointer,
// splitting parent (by the same allocate-a-fresh-node rule Insert
// uses for leaves) or growing a new root if the recursion reaches the
// top (spec.md §4.8.3 step 3).
func (t *Tree) insertNode(ctx context.Context, parent *record, child *record) error {
	if parent == nil {
		return t.growRoot(ctx, child)
	}

	childKey := child.leftKey()
	ptrBody := item.EncodeInternalHint(uint64(child.addr))
	need := len(ptrBody) + node40.ItemHeaderSize

	if parent.node.FreeSpace() < need {
		dlog.Debugf(ctx, "tree: internal block %d full, allocating overflow node at level %d", parent.addr, parent.node.Level())
		newNode, err := t.newNodeSameLevel(parent)
		if err != nil {
			return err
		}
		if err := newNode.node.Insert(0, childKey, reiser4prim.ItemPluginInternal, ptrBody); err != nil {
			return err
		}
		newNode.registerChild(child)
		return t.insertNode(ctx, parent.parent, newNode)
	}

	pos, found, err := parent.node.Lookup(childKey)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("tree: internal key %v already present at block %d: %w", childKey, parent.addr, reiser4prim.ErrCorrupted)
	}
	if err := parent.node.Insert(pos, childKey, reiser4prim.ItemPluginInternal, ptrBody); err != nil {
		return err
	}
	parent.registerChild(child)
	return nil
}

// growRoot creates a new root one level above the current one,
// pointing at both the old root and newSibling (spec.md §4.8.3: "If
// the recursion reaches the root, a new root is created one level
// above and the format's tree_height and root_block are updated").
func (t *Tree) growRoot(ctx context.Context, newSibling *record) error {
	oldRoot := t.root
	addr, err := t.alloc.Allocate(0)
	if err != nil {
		return fmt.Errorf("tree: allocate new root: %w", err)
	}
	blk, err := diskio.NewBlock(t.dev, diskio.BlockAddr(addr))
	if err != nil {
		return err
	}
	newRootNode, err := node40.Create(blk, t.height+1)
	if err != nil {
		return err
	}
	newRoot := &record{addr: diskio.BlockAddr(addr), node: newRootNode}

	firstKey := oldRoot.leftKey()
	if err := newRootNode.Insert(0, firstKey, reiser4prim.ItemPluginInternal, item.EncodeInternalHint(uint64(oldRoot.addr))); err != nil {
		return err
	}
	secondKey := newSibling.leftKey()
	pos, _, err := newRootNode.Lookup(secondKey)
	if err != nil {
		return err
	}
	if err := newRootNode.Insert(pos, secondKey, reiser4prim.ItemPluginInternal, item.EncodeInternalHint(uint64(newSibling.addr))); err != nil {
		return err
	}

	newRoot.registerChild(oldRoot)
	newRoot.registerChild(newSibling)
	t.root = newRoot
	t.height++
	dlog.Debugf(ctx, "tree: grew root to block %d, height now %d", newRoot.addr, t.height)
	return nil
}
