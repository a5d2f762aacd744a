package kang

import "github.com/meigma/kang/core/internal/kangtype"

// Sentinel errors re-exported from internal/kangtype.
var (
	// ErrTruncated is returned when input ends before a required field.
	ErrTruncated = kangtype.ErrTruncated

	// ErrBadSignature is returned when the archive signature does not match.
	ErrBadSignature = kangtype.ErrBadSignature

	// ErrSizeMismatch is returned when a declared size disagrees with the
	// size reported by the codec.
	ErrSizeMismatch = kangtype.ErrSizeMismatch

	// ErrBackend is returned when the codec reports a fault.
	ErrBackend = kangtype.ErrBackend

	// ErrIO is returned when a path cannot be opened, created, read or written.
	ErrIO = kangtype.ErrIO

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = kangtype.ErrSizeOverflow

	// ErrInvalidChunkSize is returned when a zero chunk size is configured.
	ErrInvalidChunkSize = kangtype.ErrInvalidChunkSize
)
