package format40

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/edward6/reiser4-sub006/alloc"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/journal"
	"github.com/edward6/reiser4-sub006/oidalloc"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
	"github.com/edward6/reiser4-sub006/tree"
)

// journalAreaBlocks is the fixed number of blocks reserved
// immediately after the bitmap region for the journal's header and
// footer (spec.md §4.10, §6.1: "two fixed-offset blocks"). The
// journal package itself is what interprets their contents; format40
// only reserves and locates them (spec.md §4.9: "the disk-format
// plugin names the ids of the journal... plugins it requires").
const journalAreaBlocks = 2

// Format ties the master and format-specific superblocks to the live
// allocators and tree a mounted filesystem needs (spec.md §4.9).
type Format struct {
	dev *diskio.Device

	master Master
	sb     Superblock

	blockAlloc *alloc.Allocator
	oidAlloc   *oidalloc.Allocator
	tr         *tree.Tree
	jrnl       *journal.Journal
}

func firstBitmapBlock(dev *diskio.Device) (diskio.BlockAddr, error) {
	addr, err := superblockBlockAddr(dev)
	if err != nil {
		return 0, err
	}
	return addr + 1, nil
}

// Open mounts an existing format40 filesystem: reads both
// superblocks, reopens the bitmap allocator, the oid allocator, and
// the tree rooted at the persisted root block (spec.md §4.9 "Open").
func Open(ctx context.Context, dev *diskio.Device, reg *plugin.Registry) (*Format, error) {
	master, err := OpenMaster(dev)
	if err != nil {
		return nil, err
	}
	if reiser4prim.PluginID(master.FormatID) != reiser4prim.DiskFormatFormat40 {
		return nil, fmt.Errorf("format40: master names format plugin %d, not format40: %w", master.FormatID, reiser4prim.ErrCorrupted)
	}
	sb, err := OpenSuperblock(dev)
	if err != nil {
		return nil, err
	}

	bmFirst, err := firstBitmapBlock(dev)
	if err != nil {
		return nil, err
	}
	blockAlloc, err := alloc.Open(ctx, dev, bmFirst, sb.BlockCount, sb.FreeBlocks)
	if err != nil {
		return nil, fmt.Errorf("format40: opening block allocator: %w", err)
	}

	// The superblock has no dedicated in_use_count field; FileCount
	// is this module's stand-in (see DESIGN.md).
	oidAlloc, err := oidalloc.Open(reiser4prim.ObjID(sb.OIDNext), sb.FileCount)
	if err != nil {
		return nil, fmt.Errorf("format40: opening oid allocator: %w", err)
	}

	tr, err := tree.Open(dev, reg, blockAlloc, diskio.BlockAddr(sb.RootBlock), uint8(sb.TreeHeight))
	if err != nil {
		return nil, fmt.Errorf("format40: opening tree: %w", err)
	}

	sbAddr, err := superblockBlockAddr(dev)
	if err != nil {
		return nil, err
	}
	journalStart := sbAddr + 1 + diskio.BlockAddr(bitmapBlockCount(dev, sb.BlockCount))
	jrnl, err := journal.Open(ctx, dev, journalStart, journalStart+1)
	if err != nil {
		return nil, fmt.Errorf("format40: opening journal: %w", err)
	}

	dlog.Debugf(ctx, "format40: mounted, root block %d, height %d, %d free blocks", sb.RootBlock, sb.TreeHeight, sb.FreeBlocks)
	return &Format{
		dev:        dev,
		master:     master,
		sb:         sb,
		blockAlloc: blockAlloc,
		oidAlloc:   oidAlloc,
		tr:         tr,
		jrnl:       jrnl,
	}, nil
}

func bitmapBlockCount(dev *diskio.Device, totalBlocks uint64) uint64 {
	stride := uint64(dev.BlockSize()) * 8
	n := (totalBlocks + stride - 1) / stride
	if n == 0 {
		n = 1
	}
	return n
}

// Create formats dev as a fresh format40 filesystem: a master and
// superblock, a bitmap allocator with the skipped region, both
// superblocks, the journal area, and every bitmap block itself marked
// used, a fresh oid allocator, and a one-node root tree (spec.md §4.9
// "Create", §8.4 scenario 1).
func Create(ctx context.Context, dev *diskio.Device, reg *plugin.Registry, uuid, label [16]byte) (*Format, error) {
	master, err := CreateMaster(dev, reiser4prim.DiskFormatFormat40, uuid, label)
	if err != nil {
		return nil, err
	}

	totalBlocks := uint64(dev.Len())
	bmFirst, err := firstBitmapBlock(dev)
	if err != nil {
		return nil, err
	}
	blockAlloc, err := alloc.Create(dev, bmFirst, totalBlocks)
	if err != nil {
		return nil, fmt.Errorf("format40: creating block allocator: %w", err)
	}

	// Mark the skipped low region (everything below the master
	// block), the master block, and the superblock block used, per
	// spec.md §4.9's "mark as used the skipped region, the master
	// block, the format superblock...".
	masterAddr, err := masterBlockAddr(dev)
	if err != nil {
		return nil, err
	}
	for b := uint64(0); b <= uint64(masterAddr); b++ {
		if err := blockAlloc.Mark(b); err != nil {
			return nil, err
		}
	}
	sbAddr, err := superblockBlockAddr(dev)
	if err != nil {
		return nil, err
	}
	if err := blockAlloc.Mark(uint64(sbAddr)); err != nil {
		return nil, err
	}

	journalStart := sbAddr + 1 + diskio.BlockAddr(bitmapBlockCount(dev, totalBlocks))
	for i := 0; i < journalAreaBlocks; i++ {
		if err := blockAlloc.Mark(uint64(journalStart) + uint64(i)); err != nil {
			return nil, err
		}
	}
	jrnl, err := journal.Create(dev, journalStart, journalStart+1)
	if err != nil {
		return nil, fmt.Errorf("format40: creating journal: %w", err)
	}

	oidAlloc := oidalloc.New()

	tr, err := tree.Create(dev, reg, blockAlloc)
	if err != nil {
		return nil, fmt.Errorf("format40: creating tree: %w", err)
	}

	f := &Format{
		dev:        dev,
		master:     master,
		blockAlloc: blockAlloc,
		oidAlloc:   oidAlloc,
		tr:         tr,
		jrnl:       jrnl,
	}
	f.sb = Superblock{
		BlockCount: totalBlocks,
		FreeBlocks: uint64(blockAlloc.CountFree()),
		RootBlock:  uint64(tr.RootBlock()),
		OIDNext:    uint64(oidAlloc.NextToUse()),
		FileCount:  oidAlloc.InUseCount(),
		TreeHeight: uint16(tr.Height()),
	}
	if err := CreateSuperblock(dev, f.sb); err != nil {
		return nil, err
	}
	dlog.Debugf(ctx, "format40: created, %d total blocks, %d free, journal area starts at block %d", totalBlocks, f.sb.FreeBlocks, journalStart)
	return f, nil
}

// Tree, BlockAllocator, OIDAllocator, and Journal expose the live
// components Open/Create assembled, for object-level and fsck-level
// callers. Replaying the journal after Open is the caller's
// responsibility (via Journal().Replay with a Replayer that knows
// how to redo its own transactions) — format40 only locates and
// opens the journal, since the record contents are opaque to it
// (spec.md §4.10).
func (f *Format) Tree() *tree.Tree                  { return f.tr }
func (f *Format) BlockAllocator() *alloc.Allocator  { return f.blockAlloc }
func (f *Format) OIDAllocator() *oidalloc.Allocator { return f.oidAlloc }
func (f *Format) Journal() *journal.Journal         { return f.jrnl }

// Device exposes the raw device, which the consistency checker needs
// in order to read nodes directly by block address rather than
// through the tree's own (assumed-valid) lookup machinery (spec.md
// §4.12).
func (f *Format) Device() *diskio.Device { return f.dev }

// RepairFreeBlocks overwrites the superblock's free_blocks field and
// persists it, used by the consistency checker when its own traversal
// disagrees with the mounted count (spec.md §4.12 step 7: "if the
// on-disk superblock disagrees, repair it").
func (f *Format) RepairFreeBlocks(free uint64) error {
	f.sb.FreeBlocks = free
	return f.sb.Sync(f.dev)
}

// RootBlock, BlockCount, FreeBlocks, and TreeHeight are the O(1)
// superblock header accessors spec.md §4.9 requires.
func (f *Format) RootBlock() diskio.BlockAddr { return diskio.BlockAddr(f.sb.RootBlock) }
func (f *Format) BlockCount() uint64          { return f.sb.BlockCount }
func (f *Format) FreeBlocks() uint64          { return f.sb.FreeBlocks }
func (f *Format) TreeHeight() uint8           { return uint8(f.sb.TreeHeight) }
func (f *Format) Master() Master              { return f.master }

// RequiredPlugins names the journal, block-allocator, and oid-
// allocator plugin ids this disk format depends on (spec.md §4.9:
// "The disk-format plugin names the ids of the journal, block
// allocator, and oid allocator plugins it requires").
func (f *Format) RequiredPlugins() (journalPlugin, blockAllocator, oidAllocator reiser4prim.PluginID) {
	return reiser4prim.JournalDefault, reiser4prim.BlockAllocatorBitmap, reiser4prim.OIDAllocatorDefault
}

// Sync flushes the tree and bitmap, refreshes the superblock from
// their new state, and brackets the whole burst with a journal
// commit-then-flush (spec.md §4.8.5's "must respect the journal's
// current transaction bracket"; §4.10's two-phase sync).
func (f *Format) Sync(ctx context.Context) error {
	f.jrnl.BeginTxn()
	if err := f.tr.Sync(ctx); err != nil {
		return err
	}
	f.sb.FreeBlocks = uint64(f.blockAlloc.CountFree())
	f.sb.RootBlock = uint64(f.tr.RootBlock())
	f.sb.TreeHeight = uint16(f.tr.Height())
	f.sb.OIDNext = uint64(f.oidAlloc.NextToUse())
	f.sb.FileCount = f.oidAlloc.InUseCount()
	f.sb.Flushes++
	if err := f.sb.Sync(f.dev); err != nil {
		return err
	}
	if err := f.blockAlloc.Sync(ctx); err != nil {
		return err
	}
	if err := f.jrnl.Sync(ctx); err != nil {
		return err
	}
	dlog.Debugf(ctx, "format40: synced, flush #%d", f.sb.Flushes)
	return nil
}

var _ plugin.Descriptor = (*Descriptor)(nil)

// Descriptor lets format40 register itself in a plugin.Registry under
// PluginTypeDiskFormat, the way every other plugin kind in this
// module does (spec.md §4.1).
type Descriptor struct{}

func (Descriptor) PluginID() reiser4prim.PluginID     { return reiser4prim.DiskFormatFormat40 }
func (Descriptor) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeDiskFormat }
func (Descriptor) Label() string                      { return "format40" }
