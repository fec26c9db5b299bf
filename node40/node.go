package node40

import (
	"fmt"

	"github.com/edward6/reiser4-sub006/internal/binstruct"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Node wraps a block with the node40 layout (spec.md §4.6.1): a
// fixed header at byte 0, an item-header array growing backward from
// the block's tail, and item bodies growing forward from just past
// the header.
type Node struct {
	blk *diskio.Block
}

func blockSize(blk *diskio.Block) int { return len(blk.Bytes()) }

func (n *Node) readHeader() (Header, error) {
	var h Header
	buf := n.blk.Bytes()
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("node40: block shorter than header: %w", reiser4prim.ErrCorrupted)
	}
	if _, err := binstruct.Unmarshal(buf[:HeaderSize], &h); err != nil {
		return h, fmt.Errorf("node40: unmarshal header: %w", err)
	}
	return h, nil
}

func (n *Node) writeHeader(h Header) error {
	bs, err := binstruct.Marshal(h)
	if err != nil {
		return fmt.Errorf("node40: marshal header: %w", err)
	}
	copy(n.blk.Bytes()[:HeaderSize], bs)
	n.blk.MarkDirty()
	return nil
}

// itemHeaderOffset is the byte offset of item i's header, indexed
// from the block's end (spec.md §4.6.1).
func itemHeaderOffset(bs, i int) int { return bs - (i+1)*ItemHeaderSize }

func (n *Node) readItemHeader(pos int) (ItemHeader, error) {
	var ih ItemHeader
	bs := blockSize(n.blk)
	off := itemHeaderOffset(bs, pos)
	if off < 0 || off+ItemHeaderSize > bs {
		return ih, fmt.Errorf("node40: item header %d out of range: %w", pos, reiser4prim.ErrCorrupted)
	}
	buf := n.blk.Bytes()
	if _, err := binstruct.Unmarshal(buf[off:off+ItemHeaderSize], &ih); err != nil {
		return ih, fmt.Errorf("node40: unmarshal item header %d: %w", pos, err)
	}
	return ih, nil
}

func (n *Node) writeItemHeader(pos int, ih ItemHeader) error {
	bs := blockSize(n.blk)
	off := itemHeaderOffset(bs, pos)
	if off < 0 || off+ItemHeaderSize > bs {
		return fmt.Errorf("node40: item header %d out of range: %w", pos, reiser4prim.ErrCorrupted)
	}
	marshaled, err := binstruct.Marshal(ih)
	if err != nil {
		return fmt.Errorf("node40: marshal item header %d: %w", pos, err)
	}
	copy(n.blk.Bytes()[off:off+ItemHeaderSize], marshaled)
	n.blk.MarkDirty()
	return nil
}

// Open wraps blk as a node40 node, validating the common header's
// plugin id and magic (spec.md §4.6.2: "validates common header
// plugin id, rejects if different").
func Open(blk *diskio.Block) (*Node, error) {
	n := &Node{blk: blk}
	h, err := n.readHeader()
	if err != nil {
		return nil, err
	}
	if h.NodeMagic != Magic {
		return nil, fmt.Errorf("node40: bad magic %#x at block %v: %w", h.NodeMagic, blk.Addr(), reiser4prim.ErrCorrupted)
	}
	if reiser4prim.PluginID(h.CommonPluginID) != reiser4prim.NodePluginNode40 {
		return nil, fmt.Errorf("node40: unexpected node plugin id %v at block %v: %w",
			h.CommonPluginID, blk.Addr(), reiser4prim.ErrCorrupted)
	}
	return n, nil
}

// Create zeroes blk's header, writes the magic, level, and plugin id,
// and marks the whole body free (spec.md §4.6.2).
func Create(blk *diskio.Block, level uint8) (*Node, error) {
	n := &Node{blk: blk}
	bs := blockSize(blk)
	if bs <= HeaderSize {
		return nil, fmt.Errorf("node40: block size %d too small for header: %w", bs, reiser4prim.ErrInvalidArgument)
	}
	for i := range blk.Bytes() {
		blk.Bytes()[i] = 0
	}
	h := Header{
		CommonPluginID: uint16(reiser4prim.NodePluginNode40),
		FreeSpaceStart: uint16(HeaderSize),
		FreeSpace:      uint16(bs - HeaderSize),
		Level:          level,
		NodeMagic:      Magic,
		NumItems:       0,
	}
	if err := n.writeHeader(h); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) Block() *diskio.Block   { return n.blk }
func (n *Node) Addr() diskio.BlockAddr { return n.blk.Addr() }

// Count is the number of items stored in this node (spec.md §4.6.2:
// "O(1) header reads").
func (n *Node) Count() int {
	h, err := n.readHeader()
	if err != nil {
		return 0
	}
	return int(h.NumItems)
}

func (n *Node) Level() uint8 {
	h, err := n.readHeader()
	if err != nil {
		return 0
	}
	return h.Level
}

func (n *Node) FreeSpace() int {
	h, err := n.readHeader()
	if err != nil {
		return 0
	}
	return int(h.FreeSpace)
}

func (n *Node) FreeSpaceStart() int {
	h, err := n.readHeader()
	if err != nil {
		return 0
	}
	return int(h.FreeSpaceStart)
}

// MaxItemSize is the largest single item body that could ever fit in
// an otherwise-empty node of this size.
func (n *Node) MaxItemSize() int {
	return blockSize(n.blk) - HeaderSize - ItemHeaderSize
}

// MaxItemNum is the largest item count this node could ever hold,
// computed from each item plugin's minsize being at least 1 byte.
func (n *Node) MaxItemNum() int {
	return (blockSize(n.blk) - HeaderSize) / (ItemHeaderSize + 1)
}

func (n *Node) bumpNumItems(delta int) error {
	h, err := n.readHeader()
	if err != nil {
		return err
	}
	h.NumItems = uint16(int(h.NumItems) + delta)
	return n.writeHeader(h)
}

func (n *Node) setFreeSpace(freeSpace, freeSpaceStart int) error {
	h, err := n.readHeader()
	if err != nil {
		return err
	}
	h.FreeSpace = uint16(freeSpace)
	h.FreeSpaceStart = uint16(freeSpaceStart)
	return n.writeHeader(h)
}

// GetKey returns the key stored in item pos's header.
func (n *Node) GetKey(pos int) (reiser4prim.Key, error) {
	ih, err := n.readItemHeader(pos)
	if err != nil {
		return reiser4prim.Key{}, err
	}
	return ih.Key, nil
}

// SetKey overwrites item pos's header key, e.g. after the item
// plugin's own first unit changes (spec.md §4.6.2).
func (n *Node) SetKey(pos int, key reiser4prim.Key) error {
	ih, err := n.readItemHeader(pos)
	if err != nil {
		return err
	}
	ih.Key = key
	return n.writeItemHeader(pos, ih)
}

// ItemPluginID returns the plugin id stored in item pos's header.
func (n *Node) ItemPluginID(pos int) reiser4prim.PluginID {
	ih, err := n.readItemHeader(pos)
	if err != nil {
		return reiser4prim.PluginIDInvalid
	}
	return reiser4prim.PluginID(ih.PluginID)
}

// ItemBody returns the body bytes of item pos.
func (n *Node) ItemBody(pos int) ([]byte, error) {
	ih, err := n.readItemHeader(pos)
	if err != nil {
		return nil, err
	}
	buf := n.blk.Bytes()
	if int(ih.Offset)+int(ih.Length) > len(buf) {
		return nil, fmt.Errorf("node40: item %d body out of range: %w", pos, reiser4prim.ErrCorrupted)
	}
	return buf[ih.Offset : ih.Offset+ih.Length], nil
}

// offsetAt returns the start-of-body offset for pos, where pos==Count()
// is defined as free-space-start (spec.md §3.3).
func (n *Node) offsetAt(pos int) (int, error) {
	count := n.Count()
	if pos == count {
		return n.FreeSpaceStart(), nil
	}
	ih, err := n.readItemHeader(pos)
	if err != nil {
		return 0, err
	}
	return int(ih.Offset), nil
}

// ItemKey returns the key of item pos, satisfying plugin.NodeRef.
func (n *Node) ItemKey(pos int) reiser4prim.Key {
	k, err := n.GetKey(pos)
	if err != nil {
		return reiser4prim.Key{}
	}
	return k
}

// BlockSize exposes the node's backing block size, needed by the
// consistency checker to recompute free_space independently of the
// header it is validating (spec.md §4.12 step 2).
func (n *Node) BlockSize() int { return blockSize(n.blk) }

// ItemOffset and ItemLength expose the raw (offset, length) pair from
// item pos's header, which the consistency checker needs to rebuild a
// node's item-array geometry from scratch
// (original_source/reiser4progs/librepair/node.c's repair_node_check);
// ordinary callers only ever need the derived ItemBody slice.
func (n *Node) ItemOffset(pos int) (int, error) {
	ih, err := n.readItemHeader(pos)
	if err != nil {
		return 0, err
	}
	return int(ih.Offset), nil
}

func (n *Node) ItemLength(pos int) (int, error) {
	ih, err := n.readItemHeader(pos)
	if err != nil {
		return 0, err
	}
	return int(ih.Length), nil
}

// RepairFreeSpace recomputes free_space from block_size minus
// free_space_start and the item-header array's own footprint, and
// rewrites the header if it disagrees (spec.md §4.12 step 2's "fixes
// it if it disagrees with the header"). The header-array term matters:
// Insert/Paste/Remove all maintain free_space net of it, so omitting it
// here would write an inflated value that lets a later Insert's
// FreeSpace() < need guard pass when it shouldn't. Reports whether a
// fix was made.
func (n *Node) RepairFreeSpace() (bool, error) {
	want := blockSize(n.blk) - n.FreeSpaceStart() - n.Count()*ItemHeaderSize
	if want == n.FreeSpace() {
		return false, nil
	}
	if err := n.setFreeSpace(want, n.FreeSpaceStart()); err != nil {
		return false, err
	}
	return true, nil
}
