package fsck

import (
	"github.com/edward6/reiser4-sub006/node40"
)

// checkGeometry implements spec.md §4.12 step 2's read-only half:
// rebuild the item array's (offset, length) spans from scratch and
// report whether any two overlap, any falls outside the node, or the
// free-space header disagrees with what the spans actually leave free.
// free_space is net of the item-header array (node40.Insert's need :=
// length+ItemHeaderSize check and node40.Remove's matching credit both
// treat it that way), so the expected value is block_size minus both
// the consumed body bytes and the header array, not just the former.
// Grounded in
// original_source/reiser4progs/librepair/node.c's repair_node_check,
// which walks the same array computing the same invariants before
// deciding whether a node needs repair.
func checkGeometry(n *node40.Node) (bad bool, err error) {
	bs := n.BlockSize()
	cursor := node40.HeaderSize
	for pos := 0; pos < n.Count(); pos++ {
		off, err := n.ItemOffset(pos)
		if err != nil {
			return true, err
		}
		length, err := n.ItemLength(pos)
		if err != nil {
			return true, err
		}
		if off != cursor || length <= 0 || off+length > bs {
			return true, nil
		}
		cursor = off + length
	}
	if cursor != n.FreeSpaceStart() {
		return true, nil
	}
	if n.FreeSpace() != bs-n.FreeSpaceStart()-n.Count()*node40.ItemHeaderSize {
		return true, nil
	}
	return false, nil
}

// repairGeometry implements spec.md §4.12 step 2's write half:
// repeatedly remove the first item whose (offset, length) cannot be
// reconciled with the items before it, same as repair_node_check's
// repair pass, until what remains is internally consistent. Returns
// the number of items dropped.
func repairGeometry(n *node40.Node) (removed int, err error) {
	for {
		bs := n.BlockSize()
		cursor := node40.HeaderSize
		badPos := -1
		for pos := 0; pos < n.Count(); pos++ {
			off, err := n.ItemOffset(pos)
			if err != nil {
				badPos = pos
				break
			}
			length, err := n.ItemLength(pos)
			if err != nil {
				badPos = pos
				break
			}
			if off != cursor || length <= 0 || off+length > bs {
				badPos = pos
				break
			}
			cursor = off + length
		}
		if badPos < 0 {
			return removed, nil
		}
		if err := n.Remove(badPos); err != nil {
			return removed, err
		}
		removed++
	}
}
