package node40

import (
	"fmt"

	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// ShiftLeft moves the first itemCount items of n onto the end of
// left, growing a left neighbor at this node's expense (spec.md
// §4.6.2's `shift`). The tree package does not call it: its splits
// allocate a fresh node and it never merges neighbors.
//
// Implemented as a sequence of single-item Insert/Remove calls rather
// than one bulk memmove: item bodies vary in length, so a true bulk
// shift needs the same offset/header bookkeping Insert/Remove already
// do per item, and at the block sizes this format targets the extra
// header rewrites are immaterial next to the disk I/O they ride
// alongside.
func (n *Node) ShiftLeft(left *Node, itemCount int) error {
	if itemCount > n.Count() {
		return fmt.Errorf("node40: ShiftLeft count %d exceeds item count %d: %w", itemCount, n.Count(), reiser4prim.ErrInvalidArgument)
	}
	for i := 0; i < itemCount; i++ {
		ih, err := n.readItemHeader(0)
		if err != nil {
			return err
		}
		body, err := n.ItemBody(0)
		if err != nil {
			return err
		}
		bodyCopy := append([]byte(nil), body...)
		if err := left.Insert(left.Count(), ih.Key, reiser4prim.PluginID(ih.PluginID), bodyCopy); err != nil {
			return err
		}
		if err := n.Remove(0); err != nil {
			return err
		}
	}
	return nil
}

// ShiftRight moves the last itemCount items of n onto the front of
// right, the mirror of ShiftLeft.
func (n *Node) ShiftRight(right *Node, itemCount int) error {
	if itemCount > n.Count() {
		return fmt.Errorf("node40: ShiftRight count %d exceeds item count %d: %w", itemCount, n.Count(), reiser4prim.ErrInvalidArgument)
	}
	for i := 0; i < itemCount; i++ {
		srcPos := n.Count() - 1
		ih, err := n.readItemHeader(srcPos)
		if err != nil {
			return err
		}
		body, err := n.ItemBody(srcPos)
		if err != nil {
			return err
		}
		bodyCopy := append([]byte(nil), body...)
		if err := right.Insert(0, ih.Key, reiser4prim.PluginID(ih.PluginID), bodyCopy); err != nil {
			return err
		}
		if err := n.Remove(srcPos); err != nil {
			return err
		}
	}
	return nil
}
