package object

import (
	"context"
	"fmt"

	"github.com/edward6/reiser4-sub006/item"
	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

const defaultDirMode = typeDirectory | 0755

// Directory is the directory object plugin (spec.md §3.5/§4.11): a
// statdata item plus one directory-entry item per name. Every name
// gets its own single-entry item, keyed the way
// original_source/reiser4progs/plugin/dir40/dir40.c keys its
// directory-entry item — same (locality, objectid) pair as the
// directory's own statdata — rather than dir40's one item shared by
// "." and "..": Core exposes no operation that pastes a second entry
// into an existing item (see rewriteStatData's doc comment in
// object.go for the same constraint applied to statdata), so a name
// that collides with an existing hash is given the next free
// generation counter and becomes its own item instead of a second
// unit within one.
type Directory struct {
	cursor

	deps     Deps
	locality reiser4prim.ObjID
	oid      reiser4prim.ObjID
}

// CreateDirectory allocates a fresh oid under the directory identified
// by parentKey (that directory's own statdata key) and emits three
// items: a statdata (mode = DIR | 0755, nlink = 2, size = 2, no
// statdata extensions) and one single-entry directory-entry item each
// for "." and ".." (see the Directory type's doc for why the two
// entries do not share an item). size counts entries, matching
// spec.md's explicit "size = 2" rather than
// dir40_create's "stat_hint->size = 0" — the deliberately-expanded
// instruction wins over the original's literal zero (see DESIGN.md).
func CreateDirectory(ctx context.Context, deps Deps, parentKey reiser4prim.Key) (*Directory, error) {
	grandparentLocality := parentKey.Locality()
	parentOid := parentKey.ObjectID()

	oid, err := deps.OIDs.Allocate()
	if err != nil {
		return nil, fmt.Errorf("object: allocating directory oid: %w", err)
	}

	sdBody, err := item.BuildStatData(deps.Reg, defaultDirMode, 2, 2, 0, nil)
	if err != nil {
		return nil, err
	}
	sdKey := statDataKey(parentOid, oid)
	if _, err := deps.Core.Insert(ctx, plugin.ItemHint{Key: sdKey, PluginID: reiser4prim.ItemPluginStatData, Body: sdBody}); err != nil {
		return nil, fmt.Errorf("object: inserting statdata for new directory %d/%d: %w", parentOid, oid, err)
	}

	d := &Directory{deps: deps, locality: parentOid, oid: oid}
	if err := d.insertEntry(ctx, ".", parentOid, oid); err != nil {
		return nil, err
	}
	if err := d.insertEntry(ctx, "..", grandparentLocality, parentOid); err != nil {
		return nil, err
	}
	return d, nil
}

// CreateRootDirectory creates the filesystem's root directory at the
// fixed (locality, oid) pair the oid allocator reserves for it
// (spec.md §4.4: "Root objects have fixed, reserved ids"), with both
// "." and ".." pointing at itself.
func CreateRootDirectory(ctx context.Context, deps Deps) (*Directory, error) {
	sdBody, err := item.BuildStatData(deps.Reg, defaultDirMode, 2, 2, 0, nil)
	if err != nil {
		return nil, err
	}
	sdKey := statDataKey(reiser4prim.RootLocality, reiser4prim.RootObjectID)
	if _, err := deps.Core.Insert(ctx, plugin.ItemHint{Key: sdKey, PluginID: reiser4prim.ItemPluginStatData, Body: sdBody}); err != nil {
		return nil, fmt.Errorf("object: inserting statdata for root directory: %w", err)
	}

	d := &Directory{deps: deps, locality: reiser4prim.RootLocality, oid: reiser4prim.RootObjectID}
	if err := d.insertEntry(ctx, ".", d.locality, d.oid); err != nil {
		return nil, err
	}
	if err := d.insertEntry(ctx, "..", d.locality, d.oid); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenDirectory resolves an existing (locality, oid) pair to a
// directory handle, rejecting anything whose statdata mode isn't a
// directory.
func OpenDirectory(ctx context.Context, deps Deps, locality, oid reiser4prim.ObjID) (*Directory, error) {
	_, pr, err := lookupStatData(ctx, deps.Core, locality, oid)
	if err != nil {
		return nil, err
	}
	if pr.Mode&typeMask != typeDirectory {
		return nil, fmt.Errorf("object: %d/%d is not a directory (mode %#o): %w", locality, oid, pr.Mode, reiser4prim.ErrInvalidArgument)
	}
	return &Directory{deps: deps, locality: locality, oid: oid}, nil
}

func (d *Directory) Close() error { return nil }

func (d *Directory) ObjectID() reiser4prim.ObjID { return d.oid }
func (d *Directory) Locality() reiser4prim.ObjID { return d.locality }

// StatDataKey returns the key under which this directory's own
// statdata lives — exactly the parentKey a child CreateDirectory call
// under this directory needs.
func (d *Directory) StatDataKey() reiser4prim.Key { return statDataKey(d.locality, d.oid) }

// entryKey builds the key of the directory-entry item that would hold
// name within this directory, at the given generation.
func (d *Directory) entryKey(name string, gen uint8) reiser4prim.Key {
	return reiser4prim.BuildDirectory(d.locality, d.oid, name, gen, d.deps.HashFn)
}

// insertEntry inserts a fresh single-entry item for name, walking the
// generation counter forward past any item already occupying a
// colliding hash (spec.md §3.2: "generation counter disambiguates two
// entries that land on the same hash").
func (d *Directory) insertEntry(ctx context.Context, name string, childLocality, childOid reiser4prim.ObjID) error {
	for gen := uint8(0); ; gen++ {
		key := d.entryKey(name, gen)
		coord, found, err := d.deps.Core.Lookup(ctx, leafLevel, key)
		if err != nil {
			return err
		}
		if !found {
			body := item.EncodeEntryHint(item.Entry{ParentLocality: childLocality, ObjectID: childOid, Name: name})
			if _, err := d.deps.Core.Insert(ctx, plugin.ItemHint{Key: key, PluginID: reiser4prim.ItemPluginDirEntry, Body: body}); err != nil {
				return fmt.Errorf("object: inserting entry %q into %d/%d: %w", name, d.locality, d.oid, err)
			}
			return nil
		}
		entries, err := item.DecodeEntries(d.deps.Core.ItemBody(coord))
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Name == name {
				return fmt.Errorf("object: entry %q already exists in %d/%d: %w", name, d.locality, d.oid, reiser4prim.ErrDuplicateKey)
			}
		}
		if gen == 255 {
			return fmt.Errorf("object: exhausted generation counters for a hash collision on %q in %d/%d: %w", name, d.locality, d.oid, reiser4prim.ErrNoSpace)
		}
	}
}

// Lookup resolves name to the (locality, oid) pair it names, walking
// the same generation sequence insertEntry fills.
func (d *Directory) Lookup(ctx context.Context, name string) (item.Entry, error) {
	for gen := uint8(0); ; gen++ {
		key := d.entryKey(name, gen)
		coord, found, err := d.deps.Core.Lookup(ctx, leafLevel, key)
		if err != nil {
			return item.Entry{}, err
		}
		if !found {
			return item.Entry{}, fmt.Errorf("object: no entry %q in %d/%d: %w", name, d.locality, d.oid, reiser4prim.ErrNotFound)
		}
		entries, err := item.DecodeEntries(d.deps.Core.ItemBody(coord))
		if err != nil {
			return item.Entry{}, err
		}
		for _, e := range entries {
			if e.Name == name {
				return e, nil
			}
		}
		if gen == 255 {
			return item.Entry{}, fmt.Errorf("object: no entry %q in %d/%d: %w", name, d.locality, d.oid, reiser4prim.ErrNotFound)
		}
	}
}

// AddEntry creates a new child link (regular file or directory) and
// keeps the directory's recorded size (entry count) current.
func (d *Directory) AddEntry(ctx context.Context, name string, childLocality, childOid reiser4prim.ObjID) error {
	if err := d.insertEntry(ctx, name, childLocality, childOid); err != nil {
		return err
	}
	return d.adjustSize(ctx, 1)
}

// RemoveEntry deletes name's directory-entry item.
func (d *Directory) RemoveEntry(ctx context.Context, name string) error {
	for gen := uint8(0); ; gen++ {
		key := d.entryKey(name, gen)
		coord, found, err := d.deps.Core.Lookup(ctx, leafLevel, key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("object: no entry %q in %d/%d: %w", name, d.locality, d.oid, reiser4prim.ErrNotFound)
		}
		entries, err := item.DecodeEntries(d.deps.Core.ItemBody(coord))
		if err != nil {
			return err
		}
		match := false
		for _, e := range entries {
			if e.Name == name {
				match = true
				break
			}
		}
		if match {
			if err := d.deps.Core.Remove(ctx, key); err != nil {
				return err
			}
			return d.adjustSize(ctx, -1)
		}
		if gen == 255 {
			return fmt.Errorf("object: no entry %q in %d/%d: %w", name, d.locality, d.oid, reiser4prim.ErrNotFound)
		}
	}
}

func (d *Directory) adjustSize(ctx context.Context, delta int64) error {
	return rewriteStatData(ctx, d.deps.Reg, d.deps.Core, d.locality, d.oid, func(pr *item.StatDataPrologue) {
		pr.Size = uint64(int64(pr.Size) + delta)
	})
}

// Entries lists every name currently in the directory, walking right
// from the smallest possible key for this directory across however
// many items and nodes its entries span (spec.md §4.8.6's neighbor
// links are what make this a single linear walk rather than a fresh
// lookup per item).
func (d *Directory) Entries(ctx context.Context) ([]item.Entry, error) {
	key := d.entryKey("", 0)
	coord, found, err := d.deps.Core.Lookup(ctx, leafLevel, key)
	if err != nil {
		return nil, err
	}

	cur := coord
	if !found {
		if cur.Node.Count() == 0 {
			return nil, nil
		}
		if cur.Pos >= cur.Node.Count() {
			next, ok, err := d.deps.Core.RightNeighbor(ctx, plugin.Coord{Node: cur.Node, Pos: cur.Node.Count() - 1})
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			cur = next
		}
	}

	var out []item.Entry
	for {
		key := cur.Node.ItemKey(cur.Pos)
		if key.MinorType() != reiser4prim.MinorFileName || key.Locality() != d.locality || key.ObjectID() != d.oid {
			break
		}
		entries, err := item.DecodeEntries(d.deps.Core.ItemBody(cur))
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
		next, ok, err := d.deps.Core.RightNeighbor(ctx, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		cur = next
	}
	return out, nil
}
