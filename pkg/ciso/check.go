package ciso

import (
	"fmt"
	"os"

	"github.com/falk/ciso-go/pkg/deflate"
)

// Check validates the structural invariants of a CISO container, returning
// the first violation found. When full is true it additionally inflates
// every compressed block and verifies the decoded size, at the cost of a
// full pass over the compressed data. A compressed block whose stream
// decodes to fewer or more bytes than the block's expected size fails
// inside deflate.Inflate and is reported as ErrInvalidDeflate, the same as
// a corrupt stream; Check does not return ErrDecompressedSizeMismatch.
func Check(input *os.File, full bool) error {
	info, err := input.Stat()
	if err != nil {
		return fmt.Errorf("ciso: stat input: %w", err)
	}
	fileLen := info.Size()

	var header Header
	if _, err := header.ReadFrom(input); err != nil {
		return err
	}

	totalBlocks := header.TotalBlocks()
	index, err := readIndex(input, totalBlocks)
	if err != nil {
		return err
	}

	dataStart := int64(HeaderSize) + int64(len(index))*4

	endOff := int64(index[totalBlocks]&0x7fff_ffff) << header.Align
	if endOff > fileLen {
		return fmt.Errorf("%w: end offset %d > file length %d", ErrIndexPastEOF, endOff, fileLen)
	}

	var inflateBuf []byte
	if full {
		inflateBuf = make([]byte, header.BlockSize)
	}

	prevOff := dataStart
	for i := uint64(0); i < totalBlocks; i++ {
		raw := index[i]
		plain := raw&0x8000_0000 != 0

		off := int64(raw&0x7fff_ffff) << header.Align
		next := int64(index[i+1]&0x7fff_ffff) << header.Align

		if off < dataStart {
			return fmt.Errorf("%w: block %d offset %d", ErrBlockBeforeData, i, off)
		}
		if off < prevOff {
			return fmt.Errorf("%w: block %d offset %d < previous %d", ErrNonMonotonic, i, off, prevOff)
		}

		expected := int64(header.BlockLen(i))

		size := next - off
		if size < 0 {
			return fmt.Errorf("%w: block %d", ErrNegativeSize, i)
		}

		if plain && size != expected {
			return fmt.Errorf("%w: block %d size %d != expected %d", ErrPlainSizeMismatch, i, size, expected)
		}

		if off+size > fileLen {
			return fmt.Errorf("%w: block %d", ErrTruncatedBlock, i)
		}

		if full && !plain {
			if size > 2*int64(header.BlockSize) {
				return fmt.Errorf("%w: block %d size %d", ErrOversizedCompressed, i, size)
			}

			payload := make([]byte, size)
			if _, err := input.ReadAt(payload, off); err != nil {
				return fmt.Errorf("ciso: read block %d: %w", i, err)
			}

			tile := inflateBuf[:expected]
			if err := deflate.Inflate(tile, payload); err != nil {
				return fmt.Errorf("%w: block %d: %v", ErrInvalidDeflate, i, err)
			}
			if int64(len(tile)) != expected {
				return fmt.Errorf("%w: block %d", ErrDecompressedSizeMismatch, i)
			}
		}

		prevOff = off
	}

	return nil
}
