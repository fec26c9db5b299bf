// Package object implements the file-object plugins of spec.md §3.5/
// §4.11 on top of the tree's plugin.Core vtable: a regular-file body
// stream (tail or extent items, chosen by a tail policy) and a
// directory (statdata plus a directory-entry item), both opened and
// created the way dir40/reg40 do in
// original_source/reiser4progs/plugin/{dir40,reg40}.
package object

import (
	"context"
	"fmt"

	"github.com/edward6/reiser4-sub006/alloc"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/item"
	"github.com/edward6/reiser4-sub006/oidalloc"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// leafLevel is the stop_level every lookup in this package targets:
// statdata and file-body items only ever live at the leaf (spec.md
// §4.6.2's level-legality rule), matching the convention tree.Create
// uses for a fresh one-node tree's root.
const leafLevel uint8 = 1

// Deps is the set of live components a created or opened object needs
// to read and mutate the tree (spec.md §4.1's "core" vtable, widened
// here with the allocator and device the object layer — unlike a pure
// item plugin — is allowed to reach past Core for, since extent
// bodies live in blocks the tree itself never addresses).
type Deps struct {
	Core   plugin.Core
	Reg    *plugin.Registry
	Dev    *diskio.Device
	Blocks *alloc.Allocator
	OIDs   *oidalloc.Allocator
	Tails  TailPolicy
	HashFn reiser4prim.HashFunc
}

// statDataKey and fileBodyKey are the two key shapes every object's
// items sort under (spec.md §3.5).
func statDataKey(locality, oid reiser4prim.ObjID) reiser4prim.Key {
	return reiser4prim.BuildGeneric(reiser4prim.MinorStatData, locality, oid, 0)
}

func fileBodyKey(locality, oid reiser4prim.ObjID, offset uint64) reiser4prim.Key {
	return reiser4prim.BuildGeneric(reiser4prim.MinorFileBody, locality, oid, offset)
}

// lookupStatData finds the statdata item coord and its decoded
// prologue for (locality, oid), failing not_found if the object
// doesn't exist (spec.md §4.11's "open" contract).
func lookupStatData(ctx context.Context, core plugin.Core, locality, oid reiser4prim.ObjID) (plugin.Coord, item.StatDataPrologue, error) {
	coord, found, err := core.Lookup(ctx, leafLevel, statDataKey(locality, oid))
	if err != nil {
		return plugin.Coord{}, item.StatDataPrologue{}, err
	}
	if !found {
		return plugin.Coord{}, item.StatDataPrologue{}, fmt.Errorf("object: no statdata for object %d/%d: %w", locality, oid, reiser4prim.ErrNotFound)
	}
	if core.ItemPluginID(coord) != reiser4prim.ItemPluginStatData {
		return plugin.Coord{}, item.StatDataPrologue{}, fmt.Errorf("object: item at statdata key for %d/%d is not a statdata item: %w", locality, oid, reiser4prim.ErrCorrupted)
	}
	pr, err := item.DecodeStatDataPrologue(core.ItemBody(coord))
	if err != nil {
		return plugin.Coord{}, item.StatDataPrologue{}, err
	}
	return coord, pr, nil
}

// rewriteStatData replaces an object's statdata item wholesale through
// Core.Remove+Core.Insert rather than mutating the item body bytes in
// place: Core exposes no "mark this block dirty after an out-of-band
// edit" operation, only whole-item insert/remove (spec.md §4.1's core
// vtable), so going back through it is what keeps a later Sync from
// silently dropping the change. Every statdata-extension payload
// currently present is preserved verbatim; mutate adjusts only the
// fields the caller is changing.
func rewriteStatData(ctx context.Context, reg *plugin.Registry, core plugin.Core, locality, oid reiser4prim.ObjID, mutate func(*item.StatDataPrologue)) error {
	coord, pr, err := lookupStatData(ctx, core, locality, oid)
	if err != nil {
		return err
	}
	oldBody := core.ItemBody(coord)

	extPayloads := map[reiser4prim.PluginID][]byte{}
	for i := 0; i < 64; i++ {
		if pr.ExtMask&(1<<uint(i)) == 0 {
			continue
		}
		id := reiser4prim.PluginID(i)
		payload, err := item.ReadStatDataExt(reg, oldBody, id)
		if err != nil {
			return fmt.Errorf("object: preserving statdata extension %d for %d/%d: %w", i, locality, oid, err)
		}
		extPayloads[id] = append([]byte(nil), payload...)
	}

	mutate(&pr)

	newBody, err := item.BuildStatData(reg, pr.Mode, pr.NLink, pr.Size, pr.ExtMask, extPayloads)
	if err != nil {
		return err
	}

	key := statDataKey(locality, oid)
	if err := core.Remove(ctx, key); err != nil {
		return fmt.Errorf("object: removing stale statdata for %d/%d: %w", locality, oid, err)
	}
	if _, err := core.Insert(ctx, plugin.ItemHint{Key: key, PluginID: reiser4prim.ItemPluginStatData, Body: newBody}); err != nil {
		return fmt.Errorf("object: reinserting statdata for %d/%d: %w", locality, oid, err)
	}
	return nil
}

func setStatDataSize(ctx context.Context, reg *plugin.Registry, core plugin.Core, locality, oid reiser4prim.ObjID, size uint64) error {
	return rewriteStatData(ctx, reg, core, locality, oid, func(pr *item.StatDataPrologue) { pr.Size = size })
}
