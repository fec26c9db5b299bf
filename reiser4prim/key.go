// Package reiser4prim holds the identifiers and the opaque composite
// key shared by every other package in this module: block numbers,
// object ids, plugin ids/types (spec.md §3.1), and the 3-word Key
// (spec.md §3.2, §4.5).
package reiser4prim

import (
	"fmt"
	"math"

	"github.com/edward6/reiser4-sub006/internal/binstruct"
	"github.com/edward6/reiser4-sub006/internal/containers"
)

// MinorType is the low 4 bits of a key's first word (spec.md §3.2).
// The order of these constants is load-bearing: within one object,
// sorting by minor type must put statdata before file body.
type MinorType uint8

const (
	MinorFileName MinorType = 0
	MinorStatData MinorType = 1
	MinorAttrName MinorType = 2
	MinorAttrBody MinorType = 3
	MinorFileBody MinorType = 4

	minorTypeInvalid MinorType = 0xF // 4-bit field: values >= this are malformed
)

func (t MinorType) String() string {
	switch t {
	case MinorFileName:
		return "FILE_NAME"
	case MinorStatData:
		return "STATDATA"
	case MinorAttrName:
		return "ATTR_NAME"
	case MinorAttrBody:
		return "ATTR_BODY"
	case MinorFileBody:
		return "FILE_BODY"
	default:
		return fmt.Sprintf("MINOR_%d", uint8(t))
	}
}

// shortNameLen is the number of bytes of a directory entry name that
// fit directly in the 56-bit hash field of word 2, letting very short
// names skip the hash plugin entirely (spec.md §3.2: "Names short
// enough to fit are packed into objectid+offset directly instead of
// hashed"). See DESIGN.md for why this module packs short names into
// the hash field alone rather than spanning objectid+offset.
const shortNameLen = 7

// Key is the opaque 3-word composite key of spec.md §3.2: each word
// is a plain 64-bit little-endian integer on disk; the locality/
// minor-type/band/objectid/offset/hash/generation fields are bit
// fields packed within those three words.
type Key struct {
	Word0         uint64 `bin:"off=0x0,  siz=0x8"`
	Word1         uint64 `bin:"off=0x8,  siz=0x8"`
	Word2         uint64 `bin:"off=0x10, siz=0x8"`
	binstruct.End `bin:"off=0x18"`
}

const (
	localityShift  = 4
	minorTypeMask  = 0xF
	bandShift      = 60
	objectIDMask   = (uint64(1) << bandShift) - 1
	hashShift      = 8
	generationMask = 0xFF
)

// Locality returns the clustering field: the oid of the directory
// that groups this key's object with its siblings.
func (k Key) Locality() ObjID { return ObjID(k.Word0 >> localityShift) }

// MinorType returns the key's item-kind discriminator.
func (k Key) MinorType() MinorType { return MinorType(k.Word0 & minorTypeMask) }

// Band returns the high 4 bits of word 1. The spec reserves this
// field for future plugin-selected key bands; it is currently always
// zero for every minor type this module produces.
func (k Key) Band() uint8 { return uint8(k.Word1 >> bandShift) }

// ObjectID returns this key's object id.
func (k Key) ObjectID() ObjID { return ObjID(k.Word1 & objectIDMask) }

// Offset returns word 2 verbatim, meaningful for FILE_BODY keys as an
// absolute byte offset.
func (k Key) Offset() uint64 { return k.Word2 }

// NameHash and Generation decompose word 2 for FILE_NAME keys.
func (k Key) NameHash() uint64    { return k.Word2 >> hashShift }
func (k Key) Generation() uint8   { return uint8(k.Word2 & generationMask) }

// Valid reports whether k's minor type is in the legal 4-bit range
// (spec.md §3.2: "A key with minor_type >= invalid_value is
// malformed").
func (k Key) Valid() bool { return k.MinorType() < minorTypeInvalid }

func (k Key) String() string {
	return fmt.Sprintf("[%#x:%v:%#x:%#x]", k.Locality(), k.MinorType(), k.ObjectID(), k.Word2)
}

// MinKey and MaxKey are the smallest and largest representable keys
// (spec.md §3.2).
var (
	MinKey = Key{}
	MaxKey = Key{Word0: math.MaxUint64, Word1: math.MaxUint64, Word2: math.MaxUint64}
)

// Compare implements the total order of spec.md §3.2: lexicographic
// comparison of the three stored words, which (because each word is
// itself a packed bit field compared as a plain integer) is
// equivalent to a raw memcmp of the on-disk bytes.
func (k Key) Compare(o Key) int {
	if d := containers.NativeCompare(k.Word0, o.Word0); d != 0 {
		return d
	}
	if d := containers.NativeCompare(k.Word1, o.Word1); d != 0 {
		return d
	}
	return containers.NativeCompare(k.Word2, o.Word2)
}

var _ containers.Ordered[Key] = Key{}

func assemble(minor MinorType, locality ObjID, oid ObjID, w2 uint64) Key {
	return Key{
		Word0: uint64(locality)<<localityShift | uint64(minor&minorTypeMask),
		Word1: uint64(oid) & objectIDMask,
		Word2: w2,
	}
}

// BuildGeneric builds a key for any non-directory-entry minor type:
// statdata, attribute, or file-body keys (spec.md §4.5).
func BuildGeneric(minor MinorType, locality ObjID, oid ObjID, offset uint64) Key {
	return assemble(minor, locality, oid, offset)
}

// HashFunc computes a directory entry name's 56-bit hash (the hash
// plugin of spec.md §4.1/§4.5).
type HashFunc func(name string) uint64

// BuildDirectory builds a FILE_NAME key for a directory entry. Names
// of at most shortNameLen bytes are packed into the hash field
// directly, little-endian, so key order for short names does not
// match name lexical order; longer names are hashed with hashFn.
// Neither is a problem in practice: directory entries are ordered by
// this packed/hashed value, not by name, and a lookup always
// recomputes the key from the full name rather than scanning by name
// order. gen disambiguates two entries that land on the same
// hash/short-name value (spec.md §3.2, §4.7.2).
func BuildDirectory(locality ObjID, oid ObjID, name string, gen uint8, hashFn HashFunc) Key {
	var hash uint64
	if len(name) <= shortNameLen {
		var buf [8]byte
		copy(buf[:], name)
		hash = uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
			uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48
	} else {
		const hashMask = (uint64(1) << 56) - 1
		hash = hashFn(name) & hashMask
	}
	w2 := (hash << hashShift) | uint64(gen)
	return assemble(MinorFileName, locality, oid, w2)
}
