package node40

import (
	"github.com/edward6/reiser4-sub006/internal/binstruct"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// ItemHeader is one entry of the item-header array that grows from
// the block's tail toward its head (spec.md §4.6.1, §6.1). Item i's
// header lives at offset `block_size - (i+1)*ItemHeaderSize`.
type ItemHeader struct {
	Key           reiser4prim.Key  `bin:"off=0x0,  siz=0x18"`
	Offset        uint16           `bin:"off=0x18, siz=0x2"`
	Length        uint16           `bin:"off=0x1a, siz=0x2"`
	PluginID      uint16           `bin:"off=0x1c, siz=0x2"`
	binstruct.End `bin:"off=0x1e"`
}

// ItemHeaderSize is the fixed on-disk size of ItemHeader.
var ItemHeaderSize = binstruct.StaticSize(ItemHeader{})
