package tree

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/edward6/reiser4-sub006/item"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Remove deletes the item at key. Removing the last item of a
// non-root node also removes its internal pointer from the parent,
// recursively (spec.md §4.8.4). Merging underfull neighbors via
// node40.ShiftLeft/ShiftRight is not attempted here: spec.md §4.8.4
// explicitly makes it an optimization, not a correctness requirement,
// so this module defers it (see DESIGN.md).
func (t *Tree) Remove(ctx context.Context, key reiser4prim.Key) error {
	coord, found, err := t.Lookup(ctx, 1, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("tree: remove %v: %w", key, reiser4prim.ErrNotFound)
	}
	rec := coord.Node.(*record)
	if err := rec.node.Remove(coord.Pos); err != nil {
		return err
	}
	if rec.node.Count() == 0 && rec.parent != nil {
		return t.removeNode(ctx, rec)
	}
	return nil
}

// removeNode drops child's internal pointer from its parent (found by
// matching the pointed-at block address, since a removed leaf no
// longer has a first key to look up by) and recurses if that empties
// the parent in turn.
func (t *Tree) removeNode(ctx context.Context, child *record) error {
	parent := child.parent
	if parent == nil {
		return nil
	}
	pos := -1
	for i := 0; i < parent.node.Count(); i++ {
		if parent.node.ItemPluginID(i) != reiser4prim.ItemPluginInternal {
			continue
		}
		body, err := parent.node.ItemBody(i)
		if err != nil {
			return err
		}
		var ip item.InternalPlugin
		if ip.Confirm(body) && ip.Target(body) == uint64(child.addr) {
			pos = i
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("tree: no internal pointer to block %d found in parent block %d: %w", child.addr, parent.addr, reiser4prim.ErrCorrupted)
	}
	if err := parent.node.Remove(pos); err != nil {
		return err
	}
	parent.unregisterChild(child)
	dlog.Debugf(ctx, "tree: removed internal pointer to block %d from block %d", child.addr, parent.addr)

	if parent.node.Count() == 0 && parent.parent != nil {
		return t.removeNode(ctx, parent)
	}
	return nil
}
