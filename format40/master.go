// Package format40 is the default disk-format plugin (spec.md
// §3.6/§4.9): a master superblock at a fixed byte offset followed by
// a format-specific superblock, together carrying everything a mount
// needs before the tree itself can be opened.
package format40

import (
	"fmt"

	"github.com/edward6/reiser4-sub006/internal/binstruct"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// MasterOffset is the master superblock's fixed byte offset,
// regardless of the device's blocksize (spec.md §6.1).
const MasterOffset = 65536

// MasterSlotSize is the fixed slot the master superblock is always
// written within, even though Master itself is much smaller.
const MasterSlotSize = 4096

// MasterMagic identifies a reiser4 master superblock (spec.md §6.1).
const MasterMagic = "R4Sb"

// legacyMagic is the reiser3-family superblock magic. format40
// recognizes it only to distinguish "this is an older reiser
// filesystem" from "this is not a reiser filesystem at all" — it
// never mounts one (original_source/reiser4progs/libreiser4/master.c's
// fallback probe).
const legacyMagic = "ReIsEr2Fs"

// Master is the on-disk master superblock (spec.md §6.1): magic,
// chosen disk-format plugin id, device blocksize, and a uuid/label
// pair untouched by the core beyond storing them.
type Master struct {
	Magic         [4]byte  `bin:"off=0x0,  siz=0x4"`
	FormatID      uint16   `bin:"off=0x4,  siz=0x2"`
	BlockSize     uint16   `bin:"off=0x6,  siz=0x2"`
	UUID          [16]byte `bin:"off=0x8,  siz=0x10"`
	Label         [16]byte `bin:"off=0x18, siz=0x10"`
	binstruct.End `bin:"off=0x28"`
}

// MasterSize is Master's fixed on-disk size.
var MasterSize = binstruct.StaticSize(Master{})

func masterBlockAddr(dev *diskio.Device) (diskio.BlockAddr, error) {
	bs := uint64(dev.BlockSize())
	if bs == 0 || MasterOffset%bs != 0 {
		return 0, fmt.Errorf("format40: blocksize %d does not divide master offset %d: %w", bs, uint64(MasterOffset), reiser4prim.ErrInvalidArgument)
	}
	return diskio.BlockAddr(MasterOffset / bs), nil
}

// OpenMaster reads and validates the master superblock. A reiser3
// magic is recognized but rejected with ErrLegacyFormat rather than
// ErrCorrupted, so a caller can report "this is a reiser3 filesystem"
// instead of "this is garbage" (SPEC_FULL.md supplemented feature 1).
func OpenMaster(dev *diskio.Device) (Master, error) {
	var m Master
	addr, err := masterBlockAddr(dev)
	if err != nil {
		return m, err
	}
	blk, err := diskio.ReadBlock(dev, addr)
	if err != nil {
		return m, fmt.Errorf("format40: reading master block: %w", err)
	}
	buf := blk.Bytes()
	if len(buf) < MasterSize {
		return m, fmt.Errorf("format40: block shorter than master superblock: %w", reiser4prim.ErrCorrupted)
	}
	if _, err := binstruct.Unmarshal(buf[:MasterSize], &m); err != nil {
		return m, fmt.Errorf("format40: unmarshal master: %w", err)
	}
	if string(buf[:len(legacyMagic)]) == legacyMagic {
		return m, fmt.Errorf("format40: device carries a reiser3 superblock: %w", ErrLegacyFormat)
	}
	if string(m.Magic[:]) != MasterMagic {
		return m, fmt.Errorf("format40: bad master magic %q: %w", m.Magic, reiser4prim.ErrCorrupted)
	}
	if uint32(m.BlockSize) != dev.BlockSize() {
		return m, fmt.Errorf("format40: master blocksize %d does not match device blocksize %d: %w", m.BlockSize, dev.BlockSize(), reiser4prim.ErrCorrupted)
	}
	return m, nil
}

// CreateMaster writes a fresh master superblock naming formatID as
// the disk-format plugin this device was made with.
func CreateMaster(dev *diskio.Device, formatID reiser4prim.PluginID, uuid, label [16]byte) (Master, error) {
	m := Master{
		FormatID:  uint16(formatID),
		BlockSize: uint16(dev.BlockSize()),
		UUID:      uuid,
		Label:     label,
	}
	copy(m.Magic[:], MasterMagic)

	addr, err := masterBlockAddr(dev)
	if err != nil {
		return m, err
	}
	blk, err := diskio.NewBlock(dev, addr)
	if err != nil {
		return m, fmt.Errorf("format40: allocating master block: %w", err)
	}
	marshaled, err := binstruct.Marshal(m)
	if err != nil {
		return m, fmt.Errorf("format40: marshal master: %w", err)
	}
	copy(blk.Bytes(), marshaled)
	blk.MarkDirty()
	if err := blk.Sync(); err != nil {
		return m, fmt.Errorf("format40: writing master block: %w", err)
	}
	return m, nil
}
