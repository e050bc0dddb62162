package ciso

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/exp/mmap"
)

// sharedView is the read-only, concurrency-safe random-access view of the
// input image that the compressor's workers read disjoint slices from.
// A memory map is the intended shape (Design Notes, §9); when mmap is
// unavailable the whole input is preloaded into a buffer instead, which
// preserves the same disjoint-slice access pattern at the cost of peak
// memory equal to the input size.
type sharedView interface {
	io.ReaderAt
	Close() error
}

type bufferView struct {
	r *bytes.Reader
}

func (v bufferView) ReadAt(p []byte, off int64) (int, error) { return v.r.ReadAt(p, off) }
func (bufferView) Close() error                               { return nil }

func newBufferView(f io.ReaderAt, size int64) (sharedView, error) {
	buf := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(io.NewSectionReader(f, 0, size), buf); err != nil {
			return nil, fmt.Errorf("ciso: preload input: %w", err)
		}
	}
	return bufferView{bytes.NewReader(buf)}, nil
}

// openMappedView memory-maps the file named name, falling back to an
// in-memory preload of size bytes read from f if the mapping fails or
// name is empty (e.g. the input has no stable path).
func openMappedView(name string, f io.ReaderAt, size int64) (sharedView, error) {
	if name != "" {
		if m, err := mmap.Open(name); err == nil {
			return m, nil
		}
	}
	return newBufferView(f, size)
}
