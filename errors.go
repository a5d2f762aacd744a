package kang

import (
	"errors"

	kangcore "github.com/meigma/kang/core"
)

// Errors re-exported from core.
var (
	// ErrTruncated is returned when input ends before a required field.
	ErrTruncated = kangcore.ErrTruncated

	// ErrBadSignature is returned when the archive signature does not match.
	ErrBadSignature = kangcore.ErrBadSignature

	// ErrSizeMismatch is returned when a declared size disagrees with the codec.
	ErrSizeMismatch = kangcore.ErrSizeMismatch

	// ErrBackend is returned when the compression codec reports a fault.
	ErrBackend = kangcore.ErrBackend

	// ErrIO is returned when a path cannot be opened, created, read or written.
	ErrIO = kangcore.ErrIO

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = kangcore.ErrSizeOverflow

	// ErrInvalidChunkSize is returned when a zero chunk size is configured.
	ErrInvalidChunkSize = kangcore.ErrInvalidChunkSize
)

// Errors specific to the kang package.
var (
	// ErrDigestMismatch is returned by Verify when the restored content
	// differs from the original file.
	ErrDigestMismatch = errors.New("kang: digest mismatch")

	// ErrNotFileOrDir is returned when an input path is neither a regular
	// file nor a directory.
	ErrNotFileOrDir = errors.New("kang: input is not a file or directory")

	// ErrInvalidHeader is returned by Inspect when the decoded header is not
	// a JSON object.
	ErrInvalidHeader = errors.New("kang: invalid header")
)
