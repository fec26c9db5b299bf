package item

import (
	"encoding/binary"
	"fmt"

	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// internalBodySize is the on-disk size of an internal (child-pointer)
// item's body: a single child block number (spec.md §4.7.3, §4.6.1's
// "internal items point at a child node by block number").
const internalBodySize = 8

// InternalPlugin is the internal item plugin: one unit, one child
// block pointer, used on every non-leaf level of the tree (spec.md
// §4.7.3).
type InternalPlugin struct{}

const internalPluginID = reiser4prim.ItemPluginInternal

func (InternalPlugin) PluginID() reiser4prim.PluginID     { return internalPluginID }
func (InternalPlugin) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeItem }
func (InternalPlugin) Label() string                      { return "nodeptr40" }
func (InternalPlugin) Kind() plugin.ItemKind               { return plugin.ItemKindInternal }

func (InternalPlugin) MinSize() int { return internalBodySize }

func (InternalPlugin) MaxKey(body []byte) reiser4prim.Key { return reiser4prim.Key{} }

func (InternalPlugin) Lookup(body []byte, key reiser4prim.Key) (int, bool) { return 0, true }
func (InternalPlugin) Count(body []byte) int                              { return 1 }

func (InternalPlugin) Confirm(body []byte) bool { return len(body) == internalBodySize }
func (p InternalPlugin) Valid(body []byte) bool { return p.Confirm(body) }

func (p InternalPlugin) Print(body []byte, opts plugin.ItemOptions) string {
	if !p.Confirm(body) {
		return "<internal: malformed body>"
	}
	return fmt.Sprintf("internal{child=%d}", p.Target(body))
}

func (p InternalPlugin) Check(body []byte, opts plugin.ItemOptions) error {
	if !p.Confirm(body) {
		return fmt.Errorf("item: internal body must be %d bytes: %w", internalBodySize, reiser4prim.ErrCorrupted)
	}
	return nil
}

func (InternalPlugin) Estimate(posHint int, hint plugin.ItemHint) int { return internalBodySize }

func (p InternalPlugin) Create(body []byte, hint plugin.ItemHint) error {
	if len(hint.Body) != internalBodySize || len(body) != internalBodySize {
		return fmt.Errorf("item: internal create size mismatch: %w", reiser4prim.ErrInvalidArgument)
	}
	copy(body, hint.Body)
	return nil
}

func (InternalPlugin) Insert(body []byte, unitPos int, hint plugin.ItemHint) error {
	return fmt.Errorf("item: internal is a single indivisible unit, cannot insert a sub-unit")
}

func (InternalPlugin) Remove(body []byte, unitPos int) error {
	return fmt.Errorf("item: internal is a single indivisible unit, cannot remove a sub-unit")
}

// Target decodes the pointed-at child block number (plugin.InternalItem).
// body must already have passed Confirm; a malformed body yields 0.
func (InternalPlugin) Target(body []byte) uint64 {
	if len(body) != internalBodySize {
		return 0
	}
	return binary.LittleEndian.Uint64(body)
}

// PointTo rewrites the child block number in place (plugin.InternalItem,
// used when a child node is relocated during balancing). A malformed
// body is a no-op.
func (InternalPlugin) PointTo(body []byte, addr uint64) {
	if len(body) != internalBodySize {
		return
	}
	binary.LittleEndian.PutUint64(body, addr)
}

// EncodeInternalHint builds the plugin.ItemHint.Body payload for a
// fresh internal item pointing at addr.
func EncodeInternalHint(addr uint64) []byte {
	buf := make([]byte, internalBodySize)
	binary.LittleEndian.PutUint64(buf, addr)
	return buf
}

var _ plugin.Item = InternalPlugin{}
var _ plugin.InternalItem = InternalPlugin{}
