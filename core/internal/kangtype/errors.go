package kangtype

import "errors"

// Sentinel errors for archive operations.
var (
	// ErrTruncated is returned when an archive or source file ends before a
	// required field.
	ErrTruncated = errors.New("kang: truncated input")

	// ErrBadSignature is returned when the archive signature does not match.
	ErrBadSignature = errors.New("kang: invalid signature")

	// ErrSizeMismatch is returned when a declared size disagrees with the
	// size reported by the compression backend.
	ErrSizeMismatch = errors.New("kang: size mismatch")

	// ErrBackend is returned when the compression backend reports a fault.
	ErrBackend = errors.New("kang: compression backend failed")

	// ErrIO is returned when a path cannot be opened, created, read or written.
	ErrIO = errors.New("kang: i/o failure")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("kang: size overflow")

	// ErrInvalidChunkSize is returned when a chunk size of zero is configured.
	ErrInvalidChunkSize = errors.New("kang: invalid chunk size")
)
