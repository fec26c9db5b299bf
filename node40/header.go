// Package node40 is the sole node plugin this module ships (spec.md
// §4.6): the on-disk node layout (header forward, item headers
// backward from the block end, item bodies forward) and the
// operations the tree drives it through (lookup, insert/paste,
// remove, shift).
package node40

import (
	"github.com/edward6/reiser4-sub006/internal/binstruct"
)

// Magic identifies a node40 block (spec.md §6.1).
const Magic uint32 = 0x52344653

// FlushStamp records which mkfs run created the filesystem and when
// this node was last flushed, mirroring spec.md §6.1's
// `flush_stamp {mkfs_id u32, flush_time u64}`.
type FlushStamp struct {
	MkfsID        uint32 `bin:"off=0x0, siz=0x4"`
	FlushTime     uint64 `bin:"off=0x4, siz=0x8"`
	binstruct.End `bin:"off=0xc"`
}

// Header is the node40 common header (spec.md §4.6.1, §6.1), always
// at byte 0 of the block.
type Header struct {
	CommonPluginID uint16     `bin:"off=0x0,  siz=0x2"`
	FreeSpace      uint16     `bin:"off=0x2,  siz=0x2"`
	FreeSpaceStart uint16     `bin:"off=0x4,  siz=0x2"`
	Level          uint8      `bin:"off=0x6,  siz=0x1"`
	NodeMagic      uint32     `bin:"off=0x7,  siz=0x4"`
	NumItems       uint16     `bin:"off=0xb,  siz=0x2"`
	Flush          FlushStamp `bin:"off=0xd,  siz=0xc"`
	binstruct.End  `bin:"off=0x19"`
}

// HeaderSize is the fixed on-disk size of Header.
var HeaderSize = binstruct.StaticSize(Header{})
