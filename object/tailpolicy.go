package object

import (
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// TailPolicy decides whether the bytes of one write should be stored
// as a tail item (byte-granular, packed directly in a leaf) or an
// extent item (whole blocks), given the file's size after that write
// (spec.md §4.7: "tail and extent plugins are file-body items; only
// one of them may describe any single byte range of a file").
type TailPolicy interface {
	plugin.Descriptor
	ShouldTail(size uint64) bool
}

// AlwaysTail never promotes a file to extents — the reiser3-era
// "notail=no" default.
type AlwaysTail struct{}

func (AlwaysTail) PluginID() reiser4prim.PluginID     { return reiser4prim.TailPolicyAlways }
func (AlwaysTail) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeTailPolicy }
func (AlwaysTail) Label() string                      { return "tail-always" }
func (AlwaysTail) ShouldTail(size uint64) bool         { return true }

// NeverTail always stores file bodies as extents, even a one-byte
// file — the "notail" mount option's policy.
type NeverTail struct{}

func (NeverTail) PluginID() reiser4prim.PluginID     { return reiser4prim.TailPolicyNever }
func (NeverTail) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeTailPolicy }
func (NeverTail) Label() string                      { return "tail-never" }
func (NeverTail) ShouldTail(size uint64) bool          { return false }

// SmartTail packs a file as a tail while it stays under Threshold
// bytes and promotes it to extents past that — reiserfs's default
// policy, trading the per-block overhead of sub-block files against
// the per-item overhead of storing large files byte-granular.
type SmartTail struct {
	Threshold uint64
}

// NewSmartTail returns a SmartTail that promotes to extents once a
// file would no longer fit packed in a single block of blockSize
// bytes.
func NewSmartTail(blockSize int) SmartTail {
	return SmartTail{Threshold: uint64(blockSize)}
}

func (SmartTail) PluginID() reiser4prim.PluginID     { return reiser4prim.TailPolicySmart }
func (SmartTail) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeTailPolicy }
func (SmartTail) Label() string                      { return "tail-smart" }
func (p SmartTail) ShouldTail(size uint64) bool        { return size <= p.Threshold }

var (
	_ TailPolicy = AlwaysTail{}
	_ TailPolicy = NeverTail{}
	_ TailPolicy = SmartTail{}
)
