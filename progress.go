package kang

import kangcore "github.com/meigma/kang/core"

// Re-export progress types from core package.
type (
	// ProgressEvent represents a progress update during an operation.
	ProgressEvent = kangcore.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = kangcore.ProgressStage

	// ProgressFunc receives progress updates during operations.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = kangcore.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageReading indicates the input file is being read.
	StageReading = kangcore.StageReading

	// StageCompressing indicates chunks are being compressed.
	StageCompressing = kangcore.StageCompressing

	// StageDecompressing indicates chunks are being decompressed.
	StageDecompressing = kangcore.StageDecompressing

	// StageWriting indicates the output file is being written.
	StageWriting = kangcore.StageWriting
)
