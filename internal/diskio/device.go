package diskio

import (
	"fmt"
)

// BlockAddr is a 64-bit block-number index into a Device, in
// blocksize units (spec.md §3.1).
type BlockAddr uint64

// Flags describes how a Device was opened; plugins consult it to
// decide whether they may write (e.g. fsck's read-only mode).
type Flags struct {
	ReadOnly bool
}

// Device is an abstract block-addressed handle over a File: a fixed
// block size, a block count, and the four device-level operations of
// spec.md §4.2 (read, write, sync, len).
type Device struct {
	file      File
	blockSize uint32
	flags     Flags
}

// NewDevice wraps file as a Device with the given block size. It is
// an error for the file to not be an exact multiple of blockSize
// bytes long, or for blockSize to be zero.
func NewDevice(file File, blockSize uint32, flags Flags) (*Device, error) {
	if blockSize == 0 {
		return nil, fmt.Errorf("diskio.NewDevice: blockSize must be nonzero")
	}
	size := file.Size()
	if size%int64(blockSize) != 0 {
		return nil, fmt.Errorf("diskio.NewDevice: device size %v is not a multiple of block size %v", size, blockSize)
	}
	return &Device{file: file, blockSize: blockSize, flags: flags}, nil
}

func (d *Device) BlockSize() uint32 { return d.blockSize }

// Len returns the device's length in blocks.
func (d *Device) Len() BlockAddr {
	return BlockAddr(d.file.Size() / int64(d.blockSize))
}

func (d *Device) Flags() Flags { return d.flags }

func (d *Device) Name() string { return d.file.Name() }

// offset returns addr's byte offset on the device, after asserting
// that addr is in-bounds (spec.md §4.2: "a block's address MUST NOT
// be set outside [0, device_len)").
func (d *Device) offset(addr BlockAddr) (int64, error) {
	if addr >= d.Len() {
		return 0, fmt.Errorf("diskio: block address %v out of range [0, %v)", addr, d.Len())
	}
	return int64(addr) * int64(d.blockSize), nil
}

// ReadBlock reads the block at addr into a freshly allocated buffer.
func (d *Device) ReadBlock(addr BlockAddr) ([]byte, error) {
	off, err := d.offset(addr)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, d.blockSize)
	if _, err := d.file.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("diskio: read block %v: %w", addr, err)
	}
	return buf, nil
}

// WriteBlock writes buf (which must be exactly one block long) to
// addr.
func (d *Device) WriteBlock(addr BlockAddr, buf []byte) error {
	if d.flags.ReadOnly {
		return fmt.Errorf("diskio: device %q is read-only", d.Name())
	}
	if uint32(len(buf)) != d.blockSize {
		return fmt.Errorf("diskio: WriteBlock: buffer is %v bytes, block size is %v", len(buf), d.blockSize)
	}
	off, err := d.offset(addr)
	if err != nil {
		return err
	}
	if _, err := d.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("diskio: write block %v: %w", addr, err)
	}
	return nil
}

// Sync flushes any buffered writes to the underlying file.
func (d *Device) Sync() error {
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("diskio: sync: %w", err)
	}
	return nil
}

func (d *Device) Close() error {
	return d.file.Close()
}
