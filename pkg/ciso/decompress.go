package ciso

import (
	"fmt"
	"io"
	"os"

	"github.com/falk/ciso-go/pkg/deflate"
)

// Decompress reads a complete CISO container from input and writes the
// reconstructed image to output. Blocks are processed sequentially in
// index order, each either copied verbatim (plain) or inflated (deflate).
//
// Per SPEC_FULL.md §6.4, total block count uses the same ceil convention
// as Compress and Check: a final, shorter block is truncated to its
// expected size rather than silently dropped.
func Decompress(input *os.File, output *os.File) error {
	var header Header
	if _, err := header.ReadFrom(input); err != nil {
		return err
	}

	totalBlocks := header.TotalBlocks()
	index, err := readIndex(input, totalBlocks)
	if err != nil {
		return err
	}

	inBuf := make([]byte, header.BlockSize*2)
	outBuf := make([]byte, header.BlockSize)

	for i := uint64(0); i < totalBlocks; i++ {
		raw := index[i]
		plain := raw&0x8000_0000 != 0
		off := int64(raw&0x7fff_ffff) << header.Align

		n := header.BlockLen(i)
		tile := outBuf[:n]

		if _, err := input.Seek(off, io.SeekStart); err != nil {
			return fmt.Errorf("ciso: seek block %d: %w", i, err)
		}

		if plain {
			if _, err := io.ReadFull(input, tile); err != nil {
				return fmt.Errorf("ciso: read plain block %d: %w", i, err)
			}
		} else {
			nextOff := int64(index[i+1]&0x7fff_ffff) << header.Align
			size := nextOff - off
			if size < 0 {
				return fmt.Errorf("%w: block %d", ErrNegativeSize, i)
			}

			payload := inBuf
			if int64(len(payload)) < size {
				payload = make([]byte, size)
			}
			payload = payload[:size]

			if _, err := io.ReadFull(input, payload); err != nil {
				return fmt.Errorf("ciso: read compressed block %d: %w", i, err)
			}
			if err := deflate.Inflate(tile, payload); err != nil {
				return fmt.Errorf("%w: block %d: %v", ErrDecompression, i, err)
			}
		}

		if _, err := output.Write(tile); err != nil {
			return fmt.Errorf("ciso: write block %d: %w", i, err)
		}
	}

	return nil
}

// readIndex reads the totalBlocks+1 little-endian index words immediately
// following the header. The caller is assumed to have just read the
// header, leaving the stream positioned at the start of the index.
func readIndex(r io.Reader, totalBlocks uint64) ([]uint32, error) {
	buf := make([]byte, (totalBlocks+1)*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("ciso: read index: %w", err)
	}

	index := make([]uint32, totalBlocks+1)
	for i := range index {
		index[i] = uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
	}
	return index, nil
}
