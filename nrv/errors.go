package nrv

import "errors"

// Sentinel errors returned by the decompression functions. Compression
// has no error path: any byte sequence that fits the format's 32-bit
// length field can be compressed.
var (
	// ErrTruncatedStream is returned when the input ends in the middle of
	// a code, before the end-of-stream marker was seen.
	ErrTruncatedStream = errors.New("nrv: truncated stream")

	// ErrCorruptStream is returned when a decoded distance or length is
	// impossible (for example a back-reference past the start of the
	// output), or when the stream disagrees with its own header.
	ErrCorruptStream = errors.New("nrv: corrupt stream")

	// ErrLengthMismatch is returned when the length declared in the
	// stream header does not fit the destination supplied by the caller.
	ErrLengthMismatch = errors.New("nrv: length mismatch")

	// ErrTooLarge is returned when a stream's header declares more data
	// than the platform can hold in a single slice. It is also the panic
	// value used by Encode when the input does not fit the format's
	// 32-bit length field.
	ErrTooLarge = errors.New("nrv: data too large")

	// ErrOverlapViolation is returned by DecompressInPlace when the write
	// cursor would overwrite compressed bytes that have not been read
	// yet. It indicates that the buffer was laid out with less than
	// RequiredOverlapMargin of slack.
	ErrOverlapViolation = errors.New("nrv: overlap violation")
)
