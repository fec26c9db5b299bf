package fsck

import (
	"bufio"
	"fmt"
	"io"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/datawire/dlib/derror"
	"github.com/davecgh/go-spew/spew"

	"github.com/edward6/reiser4-sub006/alloc"
)

// Report is the outcome of one Checker.Check call: every fatal finding
// (spec.md §4.12's per-node/per-item errors, accumulated the way
// journal.Replay accumulates per-transaction failures), every repair
// actually applied, and the control bitmap the traversal built.
type Report struct {
	Errors     error // a derror.MultiError, or nil if the tree checked out clean
	Repairs    []string
	Control    *alloc.Bitmap
	FreeBlocks uint64

	dumps []dumpedNode
}

type dumpedNode struct {
	Addr   uint64
	Reason string
	Node   any
}

// OK reports whether the traversal recorded no error. A finding that
// was recorded and then repaired (such as a superblock free_blocks
// mismatch in repair mode) still makes OK false.
func (r *Report) OK() bool { return r.Errors == nil }

// jsonReport is the shape written by WriteJSON: Report.Errors is an
// error interface and does not itself marshal usefully, so the
// machine-readable report flattens it to strings.
type jsonReport struct {
	OK         bool     `json:"ok"`
	Errors     []string `json:"errors,omitempty"`
	Repairs    []string `json:"repairs,omitempty"`
	FreeBlocks uint64   `json:"free_blocks"`
}

// WriteJSON streams a machine-readable report via lowmemjson, the same
// low-allocation streaming encoder the teacher's lib/jsonutil wraps for
// dumping btrfs structures (cmd/btrfs-rec's `list-nodes` inspector).
func (r *Report) WriteJSON(w io.Writer) error {
	jr := jsonReport{OK: r.OK(), Repairs: r.Repairs, FreeBlocks: r.FreeBlocks}
	for _, err := range flattenErrors(r.Errors) {
		jr.Errors = append(jr.Errors, err.Error())
	}
	buffer := bufio.NewWriter(w)
	cfg := lowmemjson.ReEncoderConfig{
		Out:                   buffer,
		Indent:                "\t",
		ForceTrailingNewlines: true,
	}
	if err := lowmemjson.Encode(&cfg, jr); err != nil {
		return err
	}
	return buffer.Flush()
}

// Dump renders every node captured in verbose mode via go-spew, the
// same deep pretty-printer the teacher's cmd/btrfs-rec
// inspect_spewitems.go uses for corrupted-item dumps.
func (r *Report) Dump(w io.Writer) {
	cfg := spew.NewDefaultConfig()
	cfg.DisablePointerAddresses = true
	for _, d := range r.dumps {
		fmt.Fprintf(w, "block %d (%s):\n", d.Addr, d.Reason)
		cfg.Fdump(w, d.Node)
	}
}

func flattenErrors(err error) []error {
	if err == nil {
		return nil
	}
	if multi, ok := err.(derror.MultiError); ok {
		return multi
	}
	return []error{err}
}
