package tree

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/edward6/reiser4-sub006/item"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// descendChild resolves the child that internal item pos at parent
// points at: the cached record if one is already registered under
// parent (matched by first key, spec.md §4.8.2 step 5), otherwise the
// child block is opened fresh and registered.
func (t *Tree) descendChild(ctx context.Context, parent *record, pos int) (*record, error) {
	body, err := parent.node.ItemBody(pos)
	if err != nil {
		return nil, err
	}
	var ip item.InternalPlugin
	if !ip.Confirm(body) {
		return nil, fmt.Errorf("tree: item at %d,%d is not a valid internal pointer: %w", parent.addr, pos, reiser4prim.ErrCorrupted)
	}
	addr := diskio.BlockAddr(ip.Target(body))
	childKey := parent.node.ItemKey(pos)

	if child, ok := parent.findChildByFirstKey(childKey); ok {
		return child, nil
	}
	dlog.Debugf(ctx, "tree: opening block %d (parent %d pos %d)", addr, parent.addr, pos)
	node, err := openNode(t.dev, addr)
	if err != nil {
		return nil, err
	}
	child := &record{addr: addr, node: node}
	parent.registerChild(child)
	return child, nil
}

// Lookup descends from the root to stopLevel, following spec.md
// §4.8.2's algorithm: at each internal level, an overshot miss backs
// up one item to the preceding pointer before descending.
func (t *Tree) Lookup(ctx context.Context, stopLevel uint8, key reiser4prim.Key) (plugin.Coord, bool, error) {
	cur := t.root
	for {
		pos, found, err := cur.node.Lookup(key)
		if err != nil {
			return plugin.Coord{}, false, fmt.Errorf("tree: lookup at block %d: %w", cur.addr, err)
		}
		if cur.node.Level() == stopLevel {
			return plugin.Coord{Node: cur, Pos: pos}, found, nil
		}
		if cur.node.Count() == 0 {
			// An emptied-out root above leaf level (every item it ever
			// held has since been removed): nothing to descend into.
			return plugin.Coord{Node: cur, Pos: 0}, false, nil
		}
		if !found {
			pos--
		}
		if pos < 0 {
			return plugin.Coord{}, false, fmt.Errorf("tree: lookup key %v sorts before this subtree's coverage at block %d: %w", key, cur.addr, reiser4prim.ErrCorrupted)
		}
		child, err := t.descendChild(ctx, cur, pos)
		if err != nil {
			return plugin.Coord{}, false, err
		}
		cur = child
	}
}
