// Package item holds the polymorphic item plugins of spec.md §3.4/
// §4.7: statdata (with its SDEXT sub-plugins), directory-entry,
// internal, tail, and extent.
package item

import (
	"fmt"

	"github.com/edward6/reiser4-sub006/plugin"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// Ext is a stat-data extension plugin (spec.md §4.7.1): a fixed-length
// payload keyed by its bit position in the statdata prologue's
// ext-mask.
type Ext interface {
	plugin.Descriptor
	Len() int
}

// unixStatExtID is bit 0 of the ext-mask, matching
// original_source/reiser4progs/plugin/stat40/stat40.h's UNIX_STAT
// (ordered first "by presumed frequency of use").
const unixStatExtID reiser4prim.PluginID = 0

// UnixStatExt carries the fields needed for a POSIX stat(2) call
// (original_source/reiser4progs/plugin/stat40/stat40.h's
// reiserfs_unix_stat): uid, gid, three timestamps, device number, and
// a block-usage counter.
type UnixStatExt struct{}

func (UnixStatExt) PluginID() reiser4prim.PluginID     { return unixStatExtID }
func (UnixStatExt) PluginType() reiser4prim.PluginType { return reiser4prim.PluginTypeStatDataExt }
func (UnixStatExt) Label() string                      { return "unix-stat" }
func (UnixStatExt) Len() int                           { return 4*6 + 8 }

// UnixStat is the decoded form of a UnixStatExt payload.
type UnixStat struct {
	UID, GID                 uint32
	ATime, MTime, CTime, Dev uint32
	Bytes                    uint64
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

// Encode packs s into a UnixStatExt.Len()-byte payload.
func (s UnixStat) Encode() []byte {
	buf := make([]byte, UnixStatExt{}.Len())
	putLE32(buf[0:4], s.UID)
	putLE32(buf[4:8], s.GID)
	putLE32(buf[8:12], s.ATime)
	putLE32(buf[12:16], s.MTime)
	putLE32(buf[16:20], s.CTime)
	putLE32(buf[20:24], s.Dev)
	putLE64(buf[24:32], s.Bytes)
	return buf
}

// DecodeUnixStat reverses UnixStat.Encode.
func DecodeUnixStat(buf []byte) (UnixStat, error) {
	if len(buf) < (UnixStatExt{}).Len() {
		return UnixStat{}, fmt.Errorf("item: short unix-stat payload: %w", reiser4prim.ErrCorrupted)
	}
	return UnixStat{
		UID:   le32(buf[0:4]),
		GID:   le32(buf[4:8]),
		ATime: le32(buf[8:12]),
		MTime: le32(buf[12:16]),
		CTime: le32(buf[16:20]),
		Dev:   le32(buf[20:24]),
		Bytes: le64(buf[24:32]),
	}, nil
}
