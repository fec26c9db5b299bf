// Package journal is the minimal write-ahead log contract of spec.md
// §4.10: a header/footer block pair recording the last transaction
// id committed and the last one known flushed, with replay bringing
// the two back in sync after a crash between them.
package journal

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"

	"github.com/edward6/reiser4-sub006/internal/binstruct"
	"github.com/edward6/reiser4-sub006/internal/diskio"
	"github.com/edward6/reiser4-sub006/reiser4prim"
)

// record is the fixed layout shared by the header and footer blocks:
// one u64 transaction id at offset 0 (spec.md §6.1); the rest of the
// block is unused.
type record struct {
	TxnID         uint64 `bin:"off=0x0, siz=0x8"`
	binstruct.End `bin:"off=0x8"`
}

var recordSize = binstruct.StaticSize(record{})

// Replayer supplies and reapplies the format-specific transaction
// record for one committed-but-not-flushed txn id. spec.md §4.10
// treats that record as "an opaque per-transaction byte stream
// indexed by txn id" without specifying its shape; whatever mutator
// began the transaction is what can actually redo it, so this module
// leaves that to a caller-supplied Replayer rather than prescribing
// an encoding itself.
type Replayer interface {
	Replay(ctx context.Context, txnID uint64) error
}

// Journal is the header/footer block pair of spec.md §4.10.
type Journal struct {
	dev        *diskio.Device
	headerAddr diskio.BlockAddr
	footerAddr diskio.BlockAddr

	pendingTxnID  uint64
	lastCommitted uint64
	lastFlushed   uint64
}

func readRecord(dev *diskio.Device, addr diskio.BlockAddr) (uint64, error) {
	blk, err := diskio.ReadBlock(dev, addr)
	if err != nil {
		return 0, err
	}
	var r record
	if _, err := binstruct.Unmarshal(blk.Bytes()[:recordSize], &r); err != nil {
		return 0, fmt.Errorf("journal: unmarshal record at block %d: %w", addr, err)
	}
	return r.TxnID, nil
}

func writeRecord(dev *diskio.Device, addr diskio.BlockAddr, txnID uint64) error {
	blk, err := diskio.ReadBlock(dev, addr)
	if err != nil {
		return err
	}
	marshaled, err := binstruct.Marshal(record{TxnID: txnID})
	if err != nil {
		return fmt.Errorf("journal: marshal record: %w", err)
	}
	copy(blk.Bytes(), marshaled)
	blk.MarkDirty()
	if err := blk.Sync(); err != nil {
		return fmt.Errorf("journal: writing block %d: %w", addr, err)
	}
	return nil
}

// Open reads the header and footer, validating that both blocks are
// device-resident (spec.md §4.10: "validates that both recorded
// transaction ids lie within the device").
func Open(ctx context.Context, dev *diskio.Device, headerAddr, footerAddr diskio.BlockAddr) (*Journal, error) {
	if headerAddr >= dev.Len() || footerAddr >= dev.Len() {
		return nil, fmt.Errorf("journal: header/footer block out of device range: %w", reiser4prim.ErrCorrupted)
	}
	committed, err := readRecord(dev, headerAddr)
	if err != nil {
		return nil, fmt.Errorf("journal: reading header: %w", err)
	}
	flushed, err := readRecord(dev, footerAddr)
	if err != nil {
		return nil, fmt.Errorf("journal: reading footer: %w", err)
	}
	if flushed > committed {
		return nil, fmt.Errorf("journal: last_flushed %d exceeds last_committed %d: %w", flushed, committed, reiser4prim.ErrCorrupted)
	}
	dlog.Debugf(ctx, "journal: opened, last_committed=%d last_flushed=%d", committed, flushed)
	return &Journal{
		dev:           dev,
		headerAddr:    headerAddr,
		footerAddr:    footerAddr,
		pendingTxnID:  committed,
		lastCommitted: committed,
		lastFlushed:   flushed,
	}, nil
}

// Create formats fresh header and footer blocks, both starting at
// transaction id 0.
func Create(dev *diskio.Device, headerAddr, footerAddr diskio.BlockAddr) (*Journal, error) {
	if err := writeRecord(dev, headerAddr, 0); err != nil {
		return nil, err
	}
	if err := writeRecord(dev, footerAddr, 0); err != nil {
		return nil, err
	}
	return &Journal{dev: dev, headerAddr: headerAddr, footerAddr: footerAddr}, nil
}

// BeginTxn returns the id of a new transaction the caller is about to
// perform. Nothing is written to disk: per spec.md §4.10's failure
// model, "crash before end_txn discards the partial work," and no
// work has been recorded here for a crash to discard.
func (j *Journal) BeginTxn() uint64 {
	j.pendingTxnID++
	return j.pendingTxnID
}

// Sync commits then flushes the journal: the header is written (and
// durably synced) with the pending transaction id first, then the
// footer follows, so a crash between the two always leaves
// last_committed > last_flushed — a state Replay knows how to resolve
// (spec.md §4.10 "sync()"). Calling Sync twice in succession with no
// intervening BeginTxn is a no-op, satisfying spec.md §8.2's
// idempotence property.
func (j *Journal) Sync(ctx context.Context) error {
	if j.pendingTxnID == j.lastFlushed {
		return nil
	}
	if err := writeRecord(j.dev, j.headerAddr, j.pendingTxnID); err != nil {
		return fmt.Errorf("journal: committing header: %w", err)
	}
	if err := j.dev.Sync(); err != nil {
		return fmt.Errorf("journal: syncing device after header commit: %w", err)
	}
	j.lastCommitted = j.pendingTxnID

	if err := writeRecord(j.dev, j.footerAddr, j.lastCommitted); err != nil {
		return fmt.Errorf("journal: committing footer: %w", err)
	}
	if err := j.dev.Sync(); err != nil {
		return fmt.Errorf("journal: syncing device after footer commit: %w", err)
	}
	j.lastFlushed = j.lastCommitted
	dlog.Debugf(ctx, "journal: synced, last_committed=last_flushed=%d", j.lastFlushed)
	return nil
}

// Replay re-applies every transaction committed but not yet flushed,
// then brings the footer up to match the header (spec.md §4.10
// "replay()"). Each record's replay is attempted even if an earlier
// one fails, and the failures are reported together — matching how
// this module's ambient error-accumulation style
// (github.com/datawire/dlib/derror.MultiError) is used anywhere a
// routine legitimately collects more than one independent failure
// before returning, the way the teacher's broken-tree walker
// accumulates per-span errors.
func (j *Journal) Replay(ctx context.Context, r Replayer) error {
	if j.lastCommitted <= j.lastFlushed {
		return nil
	}
	var errs derror.MultiError
	for id := j.lastFlushed + 1; id <= j.lastCommitted; id++ {
		if err := r.Replay(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("journal: replaying transaction %d: %w", id, err))
			continue
		}
	}
	if len(errs) > 0 {
		return errs
	}
	if err := writeRecord(j.dev, j.footerAddr, j.lastCommitted); err != nil {
		return fmt.Errorf("journal: committing footer after replay: %w", err)
	}
	if err := j.dev.Sync(); err != nil {
		return fmt.Errorf("journal: syncing device after replay: %w", err)
	}
	dlog.Debugf(ctx, "journal: replay brought last_flushed up to %d", j.lastCommitted)
	j.lastFlushed = j.lastCommitted
	return nil
}

// LastCommitted and LastFlushed expose the persisted header/footer
// state.
func (j *Journal) LastCommitted() uint64 { return j.lastCommitted }
func (j *Journal) LastFlushed() uint64   { return j.lastFlushed }

// Area reports the contiguous block range the journal occupies, in
// ascending order, so the allocator can mark it used (spec.md §4.10
// "area()").
func (j *Journal) Area() (lo, hi diskio.BlockAddr) {
	if j.footerAddr < j.headerAddr {
		return j.footerAddr, j.headerAddr
	}
	return j.headerAddr, j.footerAddr
}
