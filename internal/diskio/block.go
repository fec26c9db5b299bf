package diskio

import (
	"fmt"
)

// Block is the in-memory wrapper around one device block: a buffer,
// a dirty flag, and the logical address and device it was read from
// (spec.md §3.3, "A node is the in-memory wrapper around a block...").
type Block struct {
	dev   *Device
	addr  BlockAddr
	buf   []byte
	dirty bool
}

// NewBlock allocates an all-zero Block at addr, owned by dev. It does
// not touch the device; use ReadBlock to populate it from disk.
func NewBlock(dev *Device, addr BlockAddr) (*Block, error) {
	if addr >= dev.Len() {
		return nil, fmt.Errorf("diskio.NewBlock: address %v out of range [0, %v)", addr, dev.Len())
	}
	return &Block{
		dev:  dev,
		addr: addr,
		buf:  make([]byte, dev.blockSize),
	}, nil
}

// ReadBlock reads the block at addr from dev.
func ReadBlock(dev *Device, addr BlockAddr) (*Block, error) {
	buf, err := dev.ReadBlock(addr)
	if err != nil {
		return nil, err
	}
	return &Block{dev: dev, addr: addr, buf: buf}, nil
}

func (b *Block) Device() *Device    { return b.dev }
func (b *Block) Addr() BlockAddr    { return b.addr }
func (b *Block) Bytes() []byte      { return b.buf }
func (b *Block) Dirty() bool        { return b.dirty }
func (b *Block) MarkDirty()         { b.dirty = true }
func (b *Block) MarkClean()         { b.dirty = false }

// Offset returns the block's byte offset on its owning device.
func (b *Block) Offset() int64 {
	return int64(b.addr) * int64(b.dev.blockSize)
}

// Sync writes the block back to its device if dirty, then clears the
// dirty flag.
func (b *Block) Sync() error {
	if !b.dirty {
		return nil
	}
	if err := b.dev.WriteBlock(b.addr, b.buf); err != nil {
		return err
	}
	b.dirty = false
	return nil
}

// Reload discards in-memory contents and re-reads the block from
// disk, clearing the dirty flag regardless of whether it was set.
// This is how an aborted transaction's dirtied-but-unwritten blocks
// are discarded (spec.md §5, "Cancellation").
func (b *Block) Reload() error {
	buf, err := b.dev.ReadBlock(b.addr)
	if err != nil {
		return err
	}
	b.buf = buf
	b.dirty = false
	return nil
}
