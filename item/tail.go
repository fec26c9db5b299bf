package item

import (
	"fmt"

	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// TailPlugin is the tail file-body item plugin: raw file bytes stored
// directly in the item body, byte-granular (spec.md §3.4, §4.7.4). It
// is mutually exclusive with extent items over any one byte range.
//
// The item's own base logical offset lives in its node-header key,
// not in the body; Lookup therefore treats the whole item as one
// block and leaves sub-item byte addressing to the caller (the object
// layer already knows the item's base offset from the key it looked
// up to find this item).
type TailPlugin struct{}

const tailPluginID = reiser4prim.ItemPluginTail

func (TailPlugin) PluginID() reiser4prim.PluginID     { return tailPluginID }
func (TailPlugin) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeItem }
func (TailPlugin) Label() string                      { return "tail40" }
func (TailPlugin) Kind() plugin.ItemKind               { return plugin.ItemKindFileBody }

func (TailPlugin) MinSize() int { return 1 }

func (TailPlugin) MaxKey(body []byte) reiser4prim.Key { return reiser4prim.Key{} }

func (TailPlugin) Lookup(body []byte, key reiser4prim.Key) (int, bool) { return 0, true }
func (TailPlugin) Count(body []byte) int                              { return len(body) }

func (TailPlugin) Confirm(body []byte) bool { return len(body) >= 1 }
func (p TailPlugin) Valid(body []byte) bool { return p.Confirm(body) }

func (p TailPlugin) Print(body []byte, opts plugin.ItemOptions) string {
	return fmt.Sprintf("tail{bytes=%d}", len(body))
}

func (p TailPlugin) Check(body []byte, opts plugin.ItemOptions) error {
	if !p.Confirm(body) {
		return fmt.Errorf("item: tail body must be non-empty: %w", reiser4prim.ErrCorrupted)
	}
	return nil
}

func (TailPlugin) Estimate(posHint int, hint plugin.ItemHint) int { return len(hint.Body) }

func (p TailPlugin) Create(body []byte, hint plugin.ItemHint) error {
	if len(hint.Body) != len(body) {
		return fmt.Errorf("item: tail create size mismatch: %w", reiser4prim.ErrInvalidArgument)
	}
	copy(body, hint.Body)
	return nil
}

// Insert splices hint.Body into body at byte offset unitPos; body is
// already grown to its final size (len(body)==oldLen+len(hint.Body))
// by the time the node hands it to the plugin.
func (p TailPlugin) Insert(body []byte, unitPos int, hint plugin.ItemHint) error {
	extra := len(hint.Body)
	oldLen := len(body) - extra
	if oldLen < 0 || unitPos < 0 || unitPos > oldLen {
		return fmt.Errorf("item: tail insert position %d out of range: %w", unitPos, reiser4prim.ErrInvalidArgument)
	}
	// Shift the tail of the old content right by extra bytes, then drop
	// the new bytes into the gap — a byte-level analog of node40's
	// shiftBodyRight.
	copy(body[unitPos+extra:], body[unitPos:oldLen])
	copy(body[unitPos:unitPos+extra], hint.Body)
	return nil
}

// Remove deletes a single byte at unitPos, shifting the remainder left.
func (p TailPlugin) Remove(body []byte, unitPos int) error {
	if unitPos < 0 || unitPos >= len(body) {
		return fmt.Errorf("item: tail remove position %d out of range: %w", unitPos, reiser4prim.ErrInvalidArgument)
	}
	copy(body[unitPos:], body[unitPos+1:])
	body[len(body)-1] = 0
	return nil
}

var _ plugin.Item = TailPlugin{}
