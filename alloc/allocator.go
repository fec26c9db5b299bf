package alloc

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Allocator is the on-disk-backed block allocator of spec.md §4.3: a
// device, the first bitmap block number, the region's total block
// count, and the in-memory Bitmap mirroring it.
type Allocator struct {
	dev              *diskio.Device
	bitmap           *Bitmap
	firstBitmapBlock diskio.BlockAddr
}

// stride is the block span one bitmap block covers: `block_size * 8`
// (spec.md §4.3).
func stride(dev *diskio.Device) uint64 { return uint64(dev.BlockSize()) * 8 }

// bitmapBlockAddrs enumerates the bitmap block numbers first,
// first+stride, ... below totalBlocks. Each one covers the stride
// blocks starting at itself, so blocks below first fall in no window.
func bitmapBlockAddrs(first diskio.BlockAddr, totalBlocks uint64, dev *diskio.Device) []uint64 {
	var addrs []uint64
	s := stride(dev)
	for blk := uint64(first); blk < totalBlocks; blk += s {
		addrs = append(addrs, blk)
	}
	return addrs
}

// Create builds a fresh allocator over totalBlocks blocks of dev,
// eagerly marking every bitmap block itself used (spec.md §4.3: "each
// bitmap block itself is always marked used... the allocator does
// this eagerly at create time").
func Create(dev *diskio.Device, firstBitmapBlock diskio.BlockAddr, totalBlocks uint64) (*Allocator, error) {
	a := &Allocator{
		dev:              dev,
		bitmap:           NewBitmap(int(totalBlocks)),
		firstBitmapBlock: firstBitmapBlock,
	}
	for _, bmBlk := range bitmapBlockAddrs(firstBitmapBlock, totalBlocks, dev) {
		if err := a.bitmap.Mark(bmBlk); err != nil {
			return nil, fmt.Errorf("alloc: marking bitmap block %d used: %w", bmBlk, err)
		}
	}
	return a, nil
}

// Open reads every on-disk bitmap block covering totalBlocks into a
// fresh in-memory Bitmap, recomputes the used-block count from it, and
// logs (rather than fails) a mismatch against expectedFree — the
// bitmap is authoritative per spec.md §4.3.
func Open(ctx context.Context, dev *diskio.Device, firstBitmapBlock diskio.BlockAddr, totalBlocks, expectedFree uint64) (*Allocator, error) {
	a := &Allocator{
		dev:              dev,
		bitmap:           NewBitmap(int(totalBlocks)),
		firstBitmapBlock: firstBitmapBlock,
	}
	s := stride(dev)
	for _, bmBlk := range bitmapBlockAddrs(firstBitmapBlock, totalBlocks, dev) {
		blk, err := diskio.ReadBlock(dev, diskio.BlockAddr(bmBlk))
		if err != nil {
			return nil, fmt.Errorf("alloc: reading bitmap block %d: %w", bmBlk, err)
		}
		windowEnd := bmBlk + s
		if windowEnd > totalBlocks {
			windowEnd = totalBlocks
		}
		buf := blk.Bytes()
		for i := bmBlk; i < windowEnd; i++ {
			local := i - bmBlk
			byteIdx, bitIdx := local/8, local%8
			if int(byteIdx) >= len(buf) {
				break
			}
			if buf[byteIdx]&(1<<bitIdx) != 0 {
				if err := a.bitmap.Mark(i); err != nil {
					return nil, err
				}
			}
		}
	}
	a.bitmap.Recount()
	if used := uint64(a.bitmap.CountFree()); used != expectedFree {
		dlog.Warnf(ctx, "alloc: bitmap reports %d free blocks, superblock says %d; trusting the bitmap",
			a.bitmap.CountFree(), expectedFree)
	}
	return a, nil
}

// Sync writes the in-memory bitmap back to its on-disk blocks.
func (a *Allocator) Sync(ctx context.Context) error {
	s := stride(a.dev)
	for _, bmBlk := range bitmapBlockAddrs(a.firstBitmapBlock, uint64(a.bitmap.Len()), a.dev) {
		blk, err := diskio.ReadBlock(a.dev, diskio.BlockAddr(bmBlk))
		if err != nil {
			return fmt.Errorf("alloc: reading bitmap block %d for sync: %w", bmBlk, err)
		}
		buf := blk.Bytes()
		for i := range buf {
			buf[i] = 0
		}
		windowEnd := bmBlk + s
		if windowEnd > uint64(a.bitmap.Len()) {
			windowEnd = uint64(a.bitmap.Len())
		}
		for i := bmBlk; i < windowEnd; i++ {
			if a.bitmap.Test(i) {
				local := i - bmBlk
				buf[local/8] |= 1 << (local % 8)
			}
		}
		blk.MarkDirty()
		if err := blk.Sync(); err != nil {
			return fmt.Errorf("alloc: syncing bitmap block %d: %w", bmBlk, err)
		}
	}
	dlog.Debugf(ctx, "alloc: synced %d bitmap blocks, %d used / %d free",
		len(bitmapBlockAddrs(a.firstBitmapBlock, uint64(a.bitmap.Len()), a.dev)), a.bitmap.CountUsed(), a.bitmap.CountFree())
	return nil
}

func (a *Allocator) Mark(blk uint64) error  { return a.bitmap.Mark(blk) }
func (a *Allocator) Clear(blk uint64) error { return a.bitmap.Clear(blk) }
func (a *Allocator) Test(blk uint64) bool   { return a.bitmap.Test(blk) }

func (a *Allocator) FindFirstFree(from uint64) (uint64, bool) { return a.bitmap.FindFirstFree(from) }

func (a *Allocator) CountUsed() int { return a.bitmap.CountUsed() }
func (a *Allocator) CountFree() int { return a.bitmap.CountFree() }

// Len is the total block count the allocator covers, needed by the
// consistency checker to size the control bitmap it builds from
// scratch during a traversal (spec.md §4.12 step 6).
func (a *Allocator) Len() int { return a.bitmap.Len() }

// Allocate finds and marks the first free block at or after from
// (spec.md §4.3 composed with §4.4's allocation pattern: find, then
// mark).
func (a *Allocator) Allocate(from uint64) (uint64, error) {
	blk, ok := a.FindFirstFree(from)
	if !ok {
		return 0, fmt.Errorf("alloc: no free block at or after %d: %w", from, reiser4prim.ErrNoSpace)
	}
	if err := a.bitmap.Mark(blk); err != nil {
		return 0, err
	}
	return blk, nil
}

// Clone deep-copies the allocator's in-memory bitmap, marks included.
func (a *Allocator) Clone() *Bitmap { return a.bitmap.Clone() }

// Resize grows or shrinks the covered region and, when growing, marks
// any newly-introduced bitmap blocks used (spec.md §4.3: "A resize
// that grows the region marks the newly introduced bitmap blocks as
// used").
func (a *Allocator) Resize(deltaLeft, deltaRight int) error {
	oldTotal := uint64(a.bitmap.Len())
	if err := a.bitmap.Resize(deltaLeft, deltaRight); err != nil {
		return err
	}
	newTotal := uint64(a.bitmap.Len())
	if newTotal <= oldTotal {
		return nil
	}
	for _, bmBlk := range bitmapBlockAddrs(a.firstBitmapBlock, newTotal, a.dev) {
		if bmBlk < oldTotal {
			continue
		}
		if err := a.bitmap.Mark(bmBlk); err != nil {
			return err
		}
	}
	return nil
}
