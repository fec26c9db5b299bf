package node40

import (
	"fmt"
	"sort"

	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Lookup runs a binary search over the item headers using the key's
// total order (spec.md §4.6.2). pos is the index of the first item
// whose key is >= key; found reports whether that item's key equals
// key exactly. pos == Count() means key sorts after every item.
func (n *Node) Lookup(key reiser4prim.Key) (pos int, found bool, err error) {
	count := n.Count()
	var lookupErr error
	pos = sort.Search(count, func(i int) bool {
		if lookupErr != nil {
			return true
		}
		k, e := n.GetKey(i)
		if e != nil {
			lookupErr = e
			return true
		}
		return k.Compare(key) >= 0
	})
	if lookupErr != nil {
		return 0, false, lookupErr
	}
	if pos < count {
		k, e := n.GetKey(pos)
		if e != nil {
			return 0, false, e
		}
		if k.Compare(key) == 0 {
			found = true
		}
	}
	return pos, found, nil
}

// bumpOffsetsFrom adds length to the stored offset of every item at
// index >= pos, before the header array itself is shifted (spec.md
// §4.6.2 step 3). length may be negative (Remove's shrink case); the
// uint16 conversion wraps exactly like the subtraction it represents.
func (n *Node) bumpOffsetsFrom(pos, length int) error {
	count := n.Count()
	for i := pos; i < count; i++ {
		ih, err := n.readItemHeader(i)
		if err != nil {
			return err
		}
		ih.Offset += uint16(length)
		if err := n.writeItemHeader(i, ih); err != nil {
			return err
		}
	}
	return nil
}

// openHeaderSlot moves every header at index >= pos one slot further
// from the block's end, to open position pos for a new header
// (spec.md §4.6.2 step 4). Must run after bumpOffsetsFrom and before
// the caller writes pos's new header.
func (n *Node) openHeaderSlot(pos int) error {
	count := n.Count()
	for i := count - 1; i >= pos; i-- {
		ih, err := n.readItemHeader(i)
		if err != nil {
			return err
		}
		if err := n.writeItemHeader(i+1, ih); err != nil {
			return err
		}
	}
	return nil
}

// closeHeaderSlot is openHeaderSlot's mirror for Remove: every header
// at index > pos moves one slot toward the block's end.
func (n *Node) closeHeaderSlot(pos int) error {
	count := n.Count()
	for i := pos + 1; i < count; i++ {
		ih, err := n.readItemHeader(i)
		if err != nil {
			return err
		}
		if err := n.writeItemHeader(i-1, ih); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) shiftBodyRight(start, length int) error {
	buf := n.blk.Bytes()
	end := n.FreeSpaceStart()
	if start < 0 || end > len(buf) || start > end || end+length > len(buf) {
		return fmt.Errorf("node40: shift-right out of range (start=%d end=%d length=%d): %w",
			start, end, length, reiser4prim.ErrCorrupted)
	}
	copy(buf[start+length:end+length], buf[start:end])
	n.blk.MarkDirty()
	return nil
}

func (n *Node) shiftBodyLeft(start, length int) error {
	buf := n.blk.Bytes()
	end := n.FreeSpaceStart()
	if start < 0 || end > len(buf) || start+length > end {
		return fmt.Errorf("node40: shift-left out of range (start=%d end=%d length=%d): %w",
			start, end, length, reiser4prim.ErrCorrupted)
	}
	copy(buf[start:end-length], buf[start+length:end])
	n.blk.MarkDirty()
	return nil
}

// Insert opens a new item slot at pos sized len(body), writes the new
// header, and copies body into the freshly reserved space (spec.md
// §4.6.2: insert's prepare routine, steps 1-6, followed by a plain
// memcpy of the caller-provided body).
func (n *Node) Insert(pos int, key reiser4prim.Key, pluginID reiser4prim.PluginID, body []byte) error {
	length := len(body)
	need := length + ItemHeaderSize
	if n.FreeSpace() < need {
		return fmt.Errorf("node40: insert needs %d bytes, have %d: %w", need, n.FreeSpace(), reiser4prim.ErrNoSpace)
	}
	start, err := n.offsetAt(pos)
	if err != nil {
		return err
	}
	if err := n.bumpOffsetsFrom(pos, length); err != nil {
		return err
	}
	if err := n.shiftBodyRight(start, length); err != nil {
		return err
	}
	if err := n.openHeaderSlot(pos); err != nil {
		return err
	}
	newHeader := ItemHeader{
		Key:      key,
		Offset:   uint16(start),
		Length:   uint16(length),
		PluginID: uint16(pluginID),
	}
	if err := n.writeItemHeader(pos, newHeader); err != nil {
		return err
	}
	copy(n.blk.Bytes()[start:start+length], body)
	if err := n.bumpNumItems(1); err != nil {
		return err
	}
	return n.setFreeSpace(n.FreeSpace()-need, n.FreeSpaceStart()+length)
}

// Paste extends the existing item at pos by appending extra bytes to
// its body (spec.md §4.6.2: paste's prepare routine, steps 1-3 and 7).
func (n *Node) Paste(pos int, extra []byte) error {
	length := len(extra)
	if n.FreeSpace() < length {
		return fmt.Errorf("node40: paste needs %d bytes, have %d: %w", length, n.FreeSpace(), reiser4prim.ErrNoSpace)
	}
	ih, err := n.readItemHeader(pos)
	if err != nil {
		return err
	}
	insertAt := int(ih.Offset) + int(ih.Length)
	if err := n.bumpOffsetsFrom(pos+1, length); err != nil {
		return err
	}
	if err := n.shiftBodyRight(insertAt, length); err != nil {
		return err
	}
	ih.Length += uint16(length)
	if err := n.writeItemHeader(pos, ih); err != nil {
		return err
	}
	copy(n.blk.Bytes()[insertAt:insertAt+length], extra)
	return n.setFreeSpace(n.FreeSpace()-length, n.FreeSpaceStart()+length)
}

// Remove deletes item pos, mirroring Insert: shift the body left,
// decrement following headers' offsets, close the header-array slot,
// and reclaim the freed space (spec.md §4.6.2).
func (n *Node) Remove(pos int) error {
	ih, err := n.readItemHeader(pos)
	if err != nil {
		return err
	}
	length := int(ih.Length)
	start := int(ih.Offset)
	if err := n.shiftBodyLeft(start, length); err != nil {
		return err
	}
	if err := n.bumpOffsetsFrom(pos+1, -length); err != nil {
		return err
	}
	if err := n.closeHeaderSlot(pos); err != nil {
		return err
	}
	if err := n.bumpNumItems(-1); err != nil {
		return err
	}
	return n.setFreeSpace(n.FreeSpace()+length+ItemHeaderSize, n.FreeSpaceStart()-length)
}
