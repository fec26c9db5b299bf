// Package diskio is the Device I/O layer: fixed-size block read,
// write, and sync over an abstract device (spec.md §4.2).
package diskio

import (
	"fmt"
	"io"
	"os"
)

// File is the byte-oriented handle a Device is built on top of. It
// is satisfied by *os.File, and by anything else that looks like one
// (an in-memory buffer for tests, say).
type File interface {
	Name() string
	Size() int64
	Close() error
	Sync() error
	io.ReaderAt
	io.WriterAt
}

var _ File = (*osFile)(nil)

type osFile struct {
	*os.File
}

// OpenFile opens a device image on the host filesystem for use as a
// File. This, the mount-table/major-minor probing that would
// normally pick a path to pass here, and everything else about
// acquiring a host file descriptor, is the host-OS-glue collaborator
// named as out of scope in spec.md §1; this is the one seam where the
// core reaches across that boundary.
func OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("diskio.OpenFile: %w", err)
	}
	return &osFile{File: f}, nil
}

func (f *osFile) Size() int64 {
	fi, err := f.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}
