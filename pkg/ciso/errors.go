package ciso

import "errors"

// Sentinel errors for the distinct failure kinds named in the format spec.
// Callers match with errors.Is; contextual detail is added with fmt.Errorf's
// %w at the call site.
var (
	// ErrMalformedHeader is returned when fewer than HeaderSize bytes are
	// available while reading a header.
	ErrMalformedHeader = errors.New("ciso: malformed header")

	// ErrOffsetOverflow is returned when a computed write position, after
	// the align shift, would not fit in 31 bits.
	ErrOffsetOverflow = errors.New("ciso: offset overflow")

	// ErrCompression wraps a worker-side deflate failure.
	ErrCompression = errors.New("ciso: compression failed")

	// ErrDecompression wraps an inflate failure during decompression.
	ErrDecompression = errors.New("ciso: decompression failed")

	// Integrity errors, returned by Check. ErrDecompressedSizeMismatch is
	// the exception: Check reports a wrong decoded length as
	// ErrInvalidDeflate (see Check).
	ErrBlockBeforeData          = errors.New("ciso: block offset before data region")
	ErrNonMonotonic             = errors.New("ciso: non-monotonic index")
	ErrNegativeSize             = errors.New("ciso: negative compressed block size")
	ErrPlainSizeMismatch        = errors.New("ciso: plain block size mismatch")
	ErrTruncatedBlock           = errors.New("ciso: block extends past end of file")
	ErrOversizedCompressed      = errors.New("ciso: compressed block exceeds maximum size")
	ErrInvalidDeflate           = errors.New("ciso: invalid deflate stream")
	ErrDecompressedSizeMismatch = errors.New("ciso: decompressed size mismatch")
	ErrIndexPastEOF             = errors.New("ciso: index end exceeds file length")
)
