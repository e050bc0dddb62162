package ciso

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/falk/ciso-go/pkg/deflate"
)

// buildCiso hand-assembles a single-block CISO file from an explicit
// 2-entry index table and payload, bypassing Compress so each checker
// invariant can be violated independently.
func buildCiso(t *testing.T, totalBytes uint64, index [2]uint32, payload []byte, trailing []byte) string {
	t.Helper()

	var buf bytes.Buffer
	h := NewHeader(totalBytes)
	if _, err := h.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	for _, v := range index {
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], v)
		buf.Write(word[:])
	}
	buf.Write(payload)
	buf.Write(trailing)

	path := filepath.Join(t.TempDir(), "synthetic.cso")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func openRO(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func dataStartFor(totalBlocks uint64) uint32 {
	return uint32(HeaderSize + (totalBlocks+1)*4)
}

func TestCheckBlockBeforeData(t *testing.T) {
	ds := dataStartFor(1)
	index := [2]uint32{ds - 1, ds - 1 + BlockSize}
	path := buildCiso(t, BlockSize, index, make([]byte, BlockSize), nil)

	err := Check(openRO(t, path), false)
	if !errors.Is(err, ErrBlockBeforeData) {
		t.Fatalf("Check() = %v, want ErrBlockBeforeData", err)
	}
}

func TestCheckPlainSizeMismatch(t *testing.T) {
	ds := dataStartFor(1)
	index := [2]uint32{0x8000_0000 | ds, ds + BlockSize - 1} // one byte short
	path := buildCiso(t, BlockSize, index, make([]byte, BlockSize-1), nil)

	err := Check(openRO(t, path), false)
	if !errors.Is(err, ErrPlainSizeMismatch) {
		t.Fatalf("Check() = %v, want ErrPlainSizeMismatch", err)
	}
}

func TestCheckTruncatedBlock(t *testing.T) {
	ds := dataStartFor(1)
	index := [2]uint32{0x8000_0000 | ds, ds + BlockSize}
	path := buildCiso(t, BlockSize, index, make([]byte, BlockSize-10), nil)

	err := Check(openRO(t, path), false)
	if !errors.Is(err, ErrTruncatedBlock) && !errors.Is(err, ErrIndexPastEOF) {
		t.Fatalf("Check() = %v, want ErrTruncatedBlock or ErrIndexPastEOF", err)
	}
}

func TestCheckOversizedCompressed(t *testing.T) {
	ds := dataStartFor(1)
	size := uint32(2*BlockSize + 1)
	index := [2]uint32{ds, ds + size}
	path := buildCiso(t, BlockSize, index, make([]byte, size), nil)

	err := Check(openRO(t, path), true)
	if !errors.Is(err, ErrOversizedCompressed) {
		t.Fatalf("Check(full=true) = %v, want ErrOversizedCompressed", err)
	}
}

func TestCheckInvalidDeflate(t *testing.T) {
	ds := dataStartFor(1)
	garbage := bytes.Repeat([]byte{0xff}, 16)
	index := [2]uint32{ds, ds + uint32(len(garbage))}
	path := buildCiso(t, BlockSize, index, garbage, nil)

	err := Check(openRO(t, path), true)
	if !errors.Is(err, ErrInvalidDeflate) {
		t.Fatalf("Check(full=true) = %v, want ErrInvalidDeflate", err)
	}
}

func TestCheckDecompressedSizeMismatch(t *testing.T) {
	ds := dataStartFor(1)

	short := make([]byte, BlockSize/2)
	payload, err := deflate.Compress(short, 6)
	if err != nil {
		t.Fatalf("deflate.Compress: %v", err)
	}

	index := [2]uint32{ds, ds + uint32(len(payload))}
	path := buildCiso(t, BlockSize, index, payload, nil)

	err = Check(openRO(t, path), true)
	if !errors.Is(err, ErrDecompressedSizeMismatch) && !errors.Is(err, ErrInvalidDeflate) {
		t.Fatalf("Check(full=true) = %v, want ErrDecompressedSizeMismatch or ErrInvalidDeflate", err)
	}
}

func TestCheckNegativeSize(t *testing.T) {
	ds := dataStartFor(1)
	index := [2]uint32{ds + 100, ds} // next < off
	path := buildCiso(t, BlockSize, index, make([]byte, 200), nil)

	err := Check(openRO(t, path), false)
	if !errors.Is(err, ErrNegativeSize) && !errors.Is(err, ErrNonMonotonic) {
		t.Fatalf("Check() = %v, want ErrNegativeSize or ErrNonMonotonic", err)
	}
}
