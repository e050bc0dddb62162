package ciso

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magic = "CISO"

	// HeaderSize is the fixed on-disk size of Header, in bytes.
	HeaderSize = 24

	// BlockSize is the fixed uncompressed size of every block except
	// possibly the last.
	BlockSize = 0x800

	formatVersion = 1
)

// Header is the fixed 24-byte CISO container header, little-endian on disk
// regardless of host platform.
type Header struct {
	Magic      [4]byte
	HeaderSize uint32
	TotalBytes uint64
	BlockSize  uint32
	Version    uint8
	Align      uint8
	Reserved   [2]byte
}

// NewHeader builds the canonical header for an image of the given size.
// Align is always 0 in this design; TotalBytes is the only field callers
// choose.
func NewHeader(totalBytes uint64) Header {
	var h Header
	copy(h.Magic[:], magic)
	h.HeaderSize = HeaderSize
	h.TotalBytes = totalBytes
	h.BlockSize = BlockSize
	h.Version = formatVersion
	return h
}

// TotalBlocks returns ceil(TotalBytes / BlockSize), the convention shared
// by the compressor, the checker, and (per SPEC_FULL.md's resolution of
// the format's floor/ceil open question) the decompressor.
func (h Header) TotalBlocks() uint64 {
	bs := uint64(h.BlockSize)
	return (h.TotalBytes + bs - 1) / bs
}

// BlockLen returns the uncompressed length of block i: BlockSize for every
// block except a final, possibly-shorter one.
func (h Header) BlockLen(i uint64) uint64 {
	bs := uint64(h.BlockSize)
	if i+1 == h.TotalBlocks() {
		if rem := h.TotalBytes % bs; rem != 0 {
			return rem
		}
	}
	return bs
}

// ReadFrom decodes a Header from the front of r, bit-exact and
// little-endian. It fails with ErrMalformedHeader on a short read.
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return int64(n), fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	copy(h.Magic[:], buf[0:4])
	h.HeaderSize = binary.LittleEndian.Uint32(buf[4:8])
	h.TotalBytes = binary.LittleEndian.Uint64(buf[8:16])
	h.BlockSize = binary.LittleEndian.Uint32(buf[16:20])
	h.Version = buf[20]
	h.Align = buf[21]
	copy(h.Reserved[:], buf[22:24])
	return int64(n), nil
}

// WriteTo encodes h as 24 little-endian bytes. Each field is packed by
// hand at its fixed on-disk offset, so the layout is spelled out here
// rather than derived from the struct definition.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.HeaderSize)
	binary.LittleEndian.PutUint64(buf[8:16], h.TotalBytes)
	binary.LittleEndian.PutUint32(buf[16:20], h.BlockSize)
	buf[20] = h.Version
	buf[21] = h.Align
	copy(buf[22:24], h.Reserved[:])

	n, err := w.Write(buf)
	return int64(n), err
}
