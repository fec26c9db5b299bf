package tree

import (
	"context"
	"fmt"

	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// siblingNode walks up from rec until an ancestor has the requested
// sibling direction, then walks back down that sibling along the
// rightmost (dir<0) or leftmost (dir>0) path until it reaches rec's
// level (spec.md §4.8.6).
func (t *Tree) siblingNode(ctx context.Context, rec *record, dir int) (*record, bool, error) {
	cur := rec
	for cur.parent != nil {
		if dir < 0 && cur.left != nil {
			break
		}
		if dir > 0 && cur.right != nil {
			break
		}
		cur = cur.parent
	}

	var target *record
	switch {
	case dir < 0 && cur.left != nil:
		target = cur.left
	case dir > 0 && cur.right != nil:
		target = cur.right
	default:
		return nil, false, nil
	}

	for target.node.Level() > rec.node.Level() {
		if target.node.Count() == 0 {
			return nil, false, fmt.Errorf("tree: empty internal block %d during neighbor descent: %w", target.addr, reiser4prim.ErrCorrupted)
		}
		pos := 0
		if dir < 0 {
			pos = target.node.Count() - 1
		}
		child, err := t.descendChild(ctx, target, pos)
		if err != nil {
			return nil, false, err
		}
		target = child
	}
	return target, true, nil
}

// LeftNeighbor returns the coord immediately to the left of coord,
// crossing node boundaries via the cache if needed (spec.md §4.8.6).
func (t *Tree) LeftNeighbor(ctx context.Context, coord plugin.Coord) (plugin.Coord, bool, error) {
	rec, ok := coord.Node.(*record)
	if !ok {
		return plugin.Coord{}, false, fmt.Errorf("tree: coord not owned by this tree")
	}
	if coord.Pos > 0 {
		return plugin.Coord{Node: rec, Pos: coord.Pos - 1}, true, nil
	}
	left, ok, err := t.siblingNode(ctx, rec, -1)
	if err != nil || !ok {
		return plugin.Coord{}, false, err
	}
	if left.node.Count() == 0 {
		return plugin.Coord{}, false, nil
	}
	return plugin.Coord{Node: left, Pos: left.node.Count() - 1}, true, nil
}

// RightNeighbor is LeftNeighbor's mirror.
func (t *Tree) RightNeighbor(ctx context.Context, coord plugin.Coord) (plugin.Coord, bool, error) {
	rec, ok := coord.Node.(*record)
	if !ok {
		return plugin.Coord{}, false, fmt.Errorf("tree: coord not owned by this tree")
	}
	if coord.Pos+1 < rec.node.Count() {
		return plugin.Coord{Node: rec, Pos: coord.Pos + 1}, true, nil
	}
	right, ok, err := t.siblingNode(ctx, rec, 1)
	if err != nil || !ok {
		return plugin.Coord{}, false, err
	}
	if right.node.Count() == 0 {
		return plugin.Coord{}, false, nil
	}
	return plugin.Coord{Node: right, Pos: 0}, true, nil
}
