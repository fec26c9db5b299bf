package tree

import (
	"fmt"

	"github.com/edward6/reiser4-sub006/alloc"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/node40"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Tree is one balanced tree over a device: the plugin registry it
// dispatches item operations through, the block allocator it draws
// new nodes from, and the in-memory cache rooted at root (spec.md
// §4.8).
type Tree struct {
	dev   *diskio.Device
	reg   *plugin.Registry
	alloc *alloc.Allocator

	root   *record
	height uint8
}

// Open wraps the node already at rootAddr as a tree's root.
func Open(dev *diskio.Device, reg *plugin.Registry, blkAlloc *alloc.Allocator, rootAddr diskio.BlockAddr, height uint8) (*Tree, error) {
	node, err := openNode(dev, rootAddr)
	if err != nil {
		return nil, err
	}
	return &Tree{
		dev:    dev,
		reg:    reg,
		alloc:  blkAlloc,
		root:   &record{addr: rootAddr, node: node},
		height: height,
	}, nil
}

// Create allocates a fresh, empty leaf and makes it the tree's root.
func Create(dev *diskio.Device, reg *plugin.Registry, blkAlloc *alloc.Allocator) (*Tree, error) {
	addr, err := blkAlloc.Allocate(0)
	if err != nil {
		return nil, fmt.Errorf("tree: allocate root block: %w", err)
	}
	blk, err := diskio.NewBlock(dev, diskio.BlockAddr(addr))
	if err != nil {
		return nil, err
	}
	node, err := node40.Create(blk, 1)
	if err != nil {
		return nil, err
	}
	return &Tree{
		dev:    dev,
		reg:    reg,
		alloc:  blkAlloc,
		root:   &record{addr: diskio.BlockAddr(addr), node: node},
		height: 1,
	}, nil
}

func openNode(dev *diskio.Device, addr diskio.BlockAddr) (*node40.Node, error) {
	blk, err := diskio.ReadBlock(dev, addr)
	if err != nil {
		return nil, err
	}
	return node40.Open(blk)
}

// RootBlock and Height expose the two fields format40's superblock
// persists across mounts (spec.md §4.9).
func (t *Tree) RootBlock() diskio.BlockAddr { return t.root.addr }
func (t *Tree) Height() uint8               { return t.height }

func (t *Tree) newNodeSameLevel(like *record) (*record, error) {
	addr, err := t.alloc.Allocate(0)
	if err != nil {
		return nil, fmt.Errorf("tree: allocate node: %w", err)
	}
	blk, err := diskio.NewBlock(t.dev, diskio.BlockAddr(addr))
	if err != nil {
		return nil, err
	}
	node, err := node40.Create(blk, like.node.Level())
	if err != nil {
		return nil, err
	}
	return &record{addr: diskio.BlockAddr(addr), node: node}, nil
}

func (t *Tree) itemPlugin(id reiser4prim.PluginID) (plugin.Item, error) {
	desc, ok := t.reg.FindByID(reiser4prim.PluginTypeItem, id)
	if !ok {
		return nil, fmt.Errorf("tree: item plugin %d not registered: %w", id, reiser4prim.ErrCorrupted)
	}
	ip, ok := desc.(plugin.Item)
	if !ok {
		return nil, fmt.Errorf("tree: plugin %d registered as item type does not implement plugin.Item", id)
	}
	return ip, nil
}

// ItemBody and ItemPluginID complete the read half of plugin.Core;
// Lookup/Insert/Remove/LeftNeighbor/RightNeighbor live in their own
// files alongside the algorithms spec.md §4.8 describes for them.
func (t *Tree) ItemBody(coord plugin.Coord) []byte {
	rec, ok := coord.Node.(*record)
	if !ok {
		return nil
	}
	return rec.ItemBody(coord.Pos)
}

func (t *Tree) ItemPluginID(coord plugin.Coord) reiser4prim.PluginID {
	rec, ok := coord.Node.(*record)
	if !ok {
		return reiser4prim.PluginIDInvalid
	}
	return rec.ItemPluginID(coord.Pos)
}

var _ plugin.Core = (*Tree)(nil)
