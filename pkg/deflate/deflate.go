// Package deflate wraps raw (headerless) RFC 1951 deflate, the on-disk
// payload codec for CISO blocks. No zlib or gzip framing is ever produced
// or expected.
package deflate

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

var (
	writerPools   = make(map[int]*sync.Pool)
	writerPoolsMu sync.RWMutex
)

func writerPool(level int) *sync.Pool {
	writerPoolsMu.RLock()
	pool, ok := writerPools[level]
	writerPoolsMu.RUnlock()
	if ok {
		return pool
	}

	writerPoolsMu.Lock()
	defer writerPoolsMu.Unlock()

	if pool, ok = writerPools[level]; ok {
		return pool
	}

	pool = &sync.Pool{
		New: func() any {
			w, err := flate.NewWriter(io.Discard, level)
			if err != nil {
				// level is validated by callers (1..9) before this pool is touched.
				panic(fmt.Sprintf("deflate: invalid level %d: %v", level, err))
			}
			return w
		},
	}
	writerPools[level] = pool
	return pool
}

// Compress deflates src at the given level (1-9) into a freshly allocated
// slice containing a raw deflate stream.
func Compress(src []byte, level int) ([]byte, error) {
	pool := writerPool(level)
	w := pool.Get().(*flate.Writer)
	defer pool.Put(w)

	var buf bytes.Buffer
	buf.Grow(len(src))
	w.Reset(&buf)

	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("deflate: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate: compress: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Inflate decodes a raw deflate stream from src into dst, requiring the
// stream to produce exactly len(dst) bytes and then end.
func Inflate(dst, src []byte) error {
	r := flate.NewReader(bytes.NewReader(src))
	defer r.Close()

	n, err := io.ReadFull(r, dst)
	if err != nil {
		return fmt.Errorf("deflate: inflate: %w", err)
	}
	if n != len(dst) {
		return fmt.Errorf("deflate: inflate: short output (%d of %d bytes)", n, len(dst))
	}

	var extra [1]byte
	m, err := r.Read(extra[:])
	if m != 0 || err != io.EOF {
		return fmt.Errorf("deflate: inflate: trailing data after stream end")
	}
	return nil
}
