package reiser4prim

import "fmt"

// ObjID is a 64-bit monotonic filesystem-object identifier (spec.md
// §3.1).
type ObjID uint64

func (id ObjID) String() string { return fmt.Sprintf("%d", uint64(id)) }

// Reserved oid bands (spec.md §4.4, resolving Open Question §9.6 in
// favor of the symmetric-reserve model: a low reserve, a high
// reserve, and a fixed root triplet drawn from within the low
// reserve).
const (
	// LowReservedOIDs is the count of object ids at the bottom of
	// the numeric space that are never handed out by the oid
	// allocator.
	LowReservedOIDs = 64

	// HighReservedOIDs is the count of object ids at the top of
	// the numeric space that are never handed out.
	HighReservedOIDs = 64

	// MaxOID is the largest representable object id.
	MaxOID ObjID = ^ObjID(0)
)

// Root-object ids, fixed within the low reserve (spec.md §4.4: "Root
// objects have fixed, reserved ids... supplied by the allocator
// plugin").
const (
	RootParentLocality ObjID = 1
	RootLocality       ObjID = 2
	RootObjectID       ObjID = 3
)
