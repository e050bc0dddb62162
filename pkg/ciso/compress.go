package ciso

import (
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/falk/ciso-go/pkg/deflate"
)

// job is a unit of work handed to a compression worker: compress block
// Index, or (if End) exit.
type job struct {
	index uint64
	end   bool
}

// blockResult is what a worker reports back for a single job. Payload is
// nil for a block that should be stored plain (the deflate output was not
// strictly smaller than the raw block), and Err carries the first failure
// a worker observed so it can be propagated instead of panicking.
type blockResult struct {
	index   uint64
	payload []byte
	err     error
}

// Compress reads the whole of input (os.File.Stat determines its size),
// deflates it in block_size-sized blocks using one worker per logical
// core, and writes a complete CISO container to output at level (1-9).
func Compress(input *os.File, output *os.File, level int) error {
	if level < 1 || level > 9 {
		return fmt.Errorf("ciso: compression level must be 1..9, got %d", level)
	}

	info, err := input.Stat()
	if err != nil {
		return fmt.Errorf("ciso: stat input: %w", err)
	}
	totalBytes := uint64(info.Size())

	header := NewHeader(totalBytes)
	totalBlocks := header.TotalBlocks()
	indexSize := (totalBlocks + 1) * 4

	if _, err := header.WriteTo(output); err != nil {
		return fmt.Errorf("ciso: write header: %w", err)
	}
	if _, err := output.Write(make([]byte, indexSize)); err != nil {
		return fmt.Errorf("ciso: write index placeholder: %w", err)
	}
	writePos := uint64(HeaderSize) + indexSize

	view, err := openMappedView(input.Name(), input, info.Size())
	if err != nil {
		return fmt.Errorf("ciso: open shared view: %w", err)
	}
	defer view.Close()

	numWorkers := runtime.NumCPU()
	if numWorkers < 1 {
		numWorkers = 1
	}
	queueCap := 2 * numWorkers

	jobs := NewBoundedQueue[job](queueCap)
	results := NewBoundedQueue[blockResult](queueCap)

	var wg sync.WaitGroup

	// Producer.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(0); i < totalBlocks; i++ {
			jobs.Push(job{index: i})
		}
		for i := 0; i < numWorkers; i++ {
			jobs.Push(job{end: true})
		}
	}()

	// Workers.
	var cancelled atomic.Bool
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			compressWorker(&header, view, jobs, results, level, &cancelled)
		}()
	}

	index := make([]uint32, totalBlocks+1)
	var firstErr error
	next := uint64(0)
	pending := make(map[uint64]blockResult, queueCap*2)

	for next < totalBlocks {
		res := results.Pop()
		pending[res.index] = res

		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)

			if firstErr == nil {
				if r.err != nil {
					firstErr = r.err
					cancelled.Store(true)
				} else if err := placeBlock(&header, view, output, index, next, r, &writePos); err != nil {
					firstErr = err
					cancelled.Store(true)
				}
			}
			next++
		}
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	if writePos>>header.Align > math.MaxInt32 {
		return ErrOffsetOverflow
	}
	index[totalBlocks] = uint32(writePos >> header.Align)

	if _, err := output.Seek(HeaderSize, io.SeekStart); err != nil {
		return fmt.Errorf("ciso: seek to index: %w", err)
	}
	if err := writeIndex(output, index); err != nil {
		return fmt.Errorf("ciso: write index: %w", err)
	}

	return nil
}

// compressWorker pulls jobs until it sees End, deflating each block
// against the shared view and reporting the plain-vs-compressed decision.
// Once cancelled is observed it stops compressing but keeps draining jobs
// (each with an empty, error-free result) so the bounded queues never
// deadlock the producer or the serializer.
func compressWorker(h *Header, view sharedView, jobs *BoundedQueue[job], results *BoundedQueue[blockResult], level int, cancelled *atomic.Bool) {
	buf := make([]byte, h.BlockSize)

	for {
		j := jobs.Pop()
		if j.end {
			return
		}
		if cancelled.Load() {
			results.Push(blockResult{index: j.index})
			continue
		}

		n := h.BlockLen(j.index)
		chunk := buf[:n]
		off := int64(j.index) * int64(h.BlockSize)
		if _, err := view.ReadAt(chunk, off); err != nil && err != io.EOF {
			results.Push(blockResult{index: j.index, err: fmt.Errorf("%w: read block %d: %v", ErrCompression, j.index, err)})
			continue
		}

		compressed, err := deflate.Compress(chunk, level)
		if err != nil {
			results.Push(blockResult{index: j.index, err: fmt.Errorf("%w: block %d: %v", ErrCompression, j.index, err)})
			continue
		}

		var payload []byte
		if uint64(len(compressed)) < n {
			payload = compressed
		}
		results.Push(blockResult{index: j.index, payload: payload})
	}
}

// placeBlock writes the payload for block i (raw bytes if r.payload is
// nil, the deflated payload otherwise), records its index entry, and
// advances *writePos.
func placeBlock(h *Header, view sharedView, output io.Writer, index []uint32, i uint64, r blockResult, writePos *uint64) error {
	if *writePos>>h.Align > math.MaxInt32 {
		return ErrOffsetOverflow
	}
	index[i] = uint32(*writePos >> h.Align)

	if r.payload == nil {
		index[i] |= 0x8000_0000
		n := h.BlockLen(i)
		raw := make([]byte, n)
		off := int64(i) * int64(h.BlockSize)
		if _, err := view.ReadAt(raw, off); err != nil && err != io.EOF {
			return fmt.Errorf("%w: read plain block %d: %v", ErrCompression, i, err)
		}
		if _, err := output.Write(raw); err != nil {
			return fmt.Errorf("ciso: write block %d: %w", i, err)
		}
		*writePos += n
		return nil
	}

	if _, err := output.Write(r.payload); err != nil {
		return fmt.Errorf("ciso: write block %d: %w", i, err)
	}
	*writePos += uint64(len(r.payload))
	return nil
}

func writeIndex(w io.Writer, index []uint32) error {
	buf := make([]byte, len(index)*4)
	for i, v := range index {
		buf[i*4+0] = byte(v)
		buf[i*4+1] = byte(v >> 8)
		buf[i*4+2] = byte(v >> 16)
		buf[i*4+3] = byte(v >> 24)
	}
	_, err := w.Write(buf)
	return err
}
