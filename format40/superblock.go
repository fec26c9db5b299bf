package format40

import (
	"fmt"

	"github.com/edward6/reiser4-sub006/internal/binstruct"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// SuperblockOffset is the format40 superblock's fixed byte offset
// (spec.md §6.1: "byte offset 65536 + 4096 in the default format").
const SuperblockOffset = MasterOffset + MasterSlotSize

// SuperblockMagic identifies a format40 superblock (spec.md §6.1).
const SuperblockMagic = "R4Sb-Default"

// SuperblockSize is the fixed on-disk slot the superblock is padded
// to (spec.md §6.1: "padding to 512 bytes").
const SuperblockSize = 512

// Superblock is the format40 format-specific superblock (spec.md
// §6.1): block accounting, the tree's root and height, the next oid
// to hand out, and bookkeeping counters.
type Superblock struct {
	BlockCount    uint64    `bin:"off=0x0,  siz=0x8"`
	FreeBlocks    uint64    `bin:"off=0x8,  siz=0x8"`
	RootBlock     uint64    `bin:"off=0x10, siz=0x8"`
	OIDNext       uint64    `bin:"off=0x18, siz=0x8"`
	FileCount     uint64    `bin:"off=0x20, siz=0x8"`
	Flushes       uint64    `bin:"off=0x28, siz=0x8"`
	Magic         [16]byte  `bin:"off=0x30, siz=0x10"`
	TreeHeight    uint16    `bin:"off=0x40, siz=0x2"`
	Padding       [446]byte `bin:"off=0x42, siz=0x1be"`
	binstruct.End `bin:"off=0x200"`
}

func superblockBlockAddr(dev *diskio.Device) (diskio.BlockAddr, error) {
	bs := uint64(dev.BlockSize())
	if bs == 0 || SuperblockOffset%bs != 0 {
		return 0, fmt.Errorf("format40: blocksize %d does not divide superblock offset %d: %w", bs, uint64(SuperblockOffset), reiser4prim.ErrInvalidArgument)
	}
	return diskio.BlockAddr(SuperblockOffset / bs), nil
}

// OpenSuperblock reads and validates the format40 superblock,
// enforcing spec.md §4.9's "validate block_count <= device_len,
// root_block in [offset, device_len)".
func OpenSuperblock(dev *diskio.Device) (Superblock, error) {
	var sb Superblock
	addr, err := superblockBlockAddr(dev)
	if err != nil {
		return sb, err
	}
	blk, err := diskio.ReadBlock(dev, addr)
	if err != nil {
		return sb, fmt.Errorf("format40: reading superblock: %w", err)
	}
	if _, err := binstruct.Unmarshal(blk.Bytes()[:SuperblockSize], &sb); err != nil {
		return sb, fmt.Errorf("format40: unmarshal superblock: %w", err)
	}
	if string(sb.Magic[:len(SuperblockMagic)]) != SuperblockMagic {
		return sb, fmt.Errorf("format40: bad superblock magic %q: %w", sb.Magic, reiser4prim.ErrCorrupted)
	}
	if sb.BlockCount > uint64(dev.Len()) {
		return sb, fmt.Errorf("format40: block_count %d exceeds device length %d: %w", sb.BlockCount, uint64(dev.Len()), reiser4prim.ErrCorrupted)
	}
	if sb.RootBlock < uint64(addr)+1 || sb.RootBlock >= uint64(dev.Len()) {
		return sb, fmt.Errorf("format40: root_block %d out of range: %w", sb.RootBlock, reiser4prim.ErrCorrupted)
	}
	return sb, nil
}

func (sb Superblock) marshalAndWrite(dev *diskio.Device, blk *diskio.Block) error {
	copy(sb.Magic[:], SuperblockMagic)
	marshaled, err := binstruct.Marshal(sb)
	if err != nil {
		return fmt.Errorf("format40: marshal superblock: %w", err)
	}
	copy(blk.Bytes(), marshaled)
	blk.MarkDirty()
	if err := blk.Sync(); err != nil {
		return fmt.Errorf("format40: writing superblock: %w", err)
	}
	return nil
}

// CreateSuperblock allocates the superblock's fixed block and writes
// sb's initial contents.
func CreateSuperblock(dev *diskio.Device, sb Superblock) error {
	addr, err := superblockBlockAddr(dev)
	if err != nil {
		return err
	}
	blk, err := diskio.NewBlock(dev, addr)
	if err != nil {
		return fmt.Errorf("format40: allocating superblock block: %w", err)
	}
	return sb.marshalAndWrite(dev, blk)
}

// Sync rewrites sb to its fixed block (spec.md §4.9's O(1) header
// accessors are backed by rewriting the whole superblock; it is one
// block, so there is no finer granularity to exploit).
func (sb Superblock) Sync(dev *diskio.Device) error {
	addr, err := superblockBlockAddr(dev)
	if err != nil {
		return err
	}
	blk, err := diskio.ReadBlock(dev, addr)
	if err != nil {
		return fmt.Errorf("format40: reading superblock for sync: %w", err)
	}
	return sb.marshalAndWrite(dev, blk)
}
