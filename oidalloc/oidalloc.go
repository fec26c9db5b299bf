// Package oidalloc is the object-id allocator of spec.md §4.4: a
// monotonic (next_to_use, in_use_count) pair persisted in the
// superblock, reserving a band at each end of the id space for the
// fixed root triplet and future plugin use
// (original_source/reiser4progs/libreiser4/oid.c).
package oidalloc

import (
	"fmt"

	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Allocator is the oid allocator state (spec.md §4.4): the zero value
// is not usable; use New or Open.
type Allocator struct {
	nextToUse  reiser4prim.ObjID
	inUseCount uint64
}

// New creates an allocator for a freshly formatted filesystem:
// next_to_use starts just past the reserved low band and the fixed
// root triplet, which are considered already in use.
func New() *Allocator {
	return &Allocator{
		nextToUse:  reiser4prim.LowReservedOIDs,
		inUseCount: 3, // the root triplet: parent-locality, locality, objectid
	}
}

// Open restores an allocator from its persisted superblock fields,
// validating the invariant next_to_use >= in_use_count (spec.md
// §4.4).
func Open(nextToUse reiser4prim.ObjID, inUseCount uint64) (*Allocator, error) {
	if uint64(nextToUse) < inUseCount {
		return nil, fmt.Errorf("oidalloc: next_to_use %d < in_use_count %d: %w", nextToUse, inUseCount, reiser4prim.ErrCorrupted)
	}
	return &Allocator{nextToUse: nextToUse, inUseCount: inUseCount}, nil
}

// NextToUse and InUseCount are the two persisted superblock fields.
func (a *Allocator) NextToUse() reiser4prim.ObjID { return a.nextToUse }
func (a *Allocator) InUseCount() uint64           { return a.inUseCount }

// highReservedStart is the first id of the high reserved band.
func highReservedStart() reiser4prim.ObjID {
	return reiser4prim.MaxOID - reiser4prim.HighReservedOIDs
}

// Allocate returns the next free object id and advances the
// allocator's state (spec.md §4.4: "`allocate` returns
// `next_to_use++` and `in_use_count++`").
func (a *Allocator) Allocate() (reiser4prim.ObjID, error) {
	if a.nextToUse >= highReservedStart() {
		return 0, fmt.Errorf("oidalloc: exhausted, next_to_use %d reached the high reserved band: %w", a.nextToUse, reiser4prim.ErrNoSpace)
	}
	id := a.nextToUse
	a.nextToUse++
	a.inUseCount++
	return id, nil
}

// Release decrements the in-use counter only; the numeric id is never
// reclaimed (spec.md §3.7, §4.4).
func (a *Allocator) Release(id reiser4prim.ObjID) error {
	if a.inUseCount == 0 {
		return fmt.Errorf("oidalloc: release of %d with in_use_count already 0: %w", id, reiser4prim.ErrCorrupted)
	}
	a.inUseCount--
	return nil
}

// RootParentLocality, RootLocality, and RootObjectID are the fixed,
// reserved root-object ids the allocator plugin supplies (spec.md
// §4.4).
func (a *Allocator) RootParentLocality() reiser4prim.ObjID { return reiser4prim.RootParentLocality }
func (a *Allocator) RootLocality() reiser4prim.ObjID       { return reiser4prim.RootLocality }
func (a *Allocator) RootObjectID() reiser4prim.ObjID       { return reiser4prim.RootObjectID }
