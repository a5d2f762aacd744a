package kang

import (
	"github.com/meigma/kang/core/internal/backend"
	"github.com/meigma/kang/core/internal/kangtype"
	"github.com/meigma/kang/core/internal/plan"
)

// Re-export types from internal packages for the public API.
type (
	// ChunkInfo describes one compressed tensor chunk.
	ChunkInfo = kangtype.ChunkInfo

	// Codec is a one-shot block compressor used for the header and each chunk.
	Codec = backend.Codec

	// ProgressEvent represents a progress update during an operation.
	ProgressEvent = kangtype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = kangtype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = kangtype.ProgressFunc
)

// Re-export progress stage constants.
const (
	StageReading       = kangtype.StageReading
	StageCompressing   = kangtype.StageCompressing
	StageDecompressing = kangtype.StageDecompressing
	StageWriting       = kangtype.StageWriting
)

// Defaults.
const (
	// DefaultChunkSize is the tensor chunk size used when none is configured.
	DefaultChunkSize = plan.DefaultChunkSize

	// DefaultLevel is the codec compression level used when none is configured.
	DefaultLevel = backend.DefaultLevel

	// DefaultBackend is the codec used when none is configured.
	DefaultBackend = backend.NameZstd
)

// Backends returns the names of the built-in codecs.
func Backends() []string {
	return backend.Names()
}

// NewCodec returns the built-in codec registered under name.
// The caller must Close it.
func NewCodec(name string, level, blockSize, concurrency int) (Codec, error) {
	return backend.New(name, backend.Config{Level: level, BlockSize: blockSize, Concurrency: concurrency})
}
