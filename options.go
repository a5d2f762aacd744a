package kang

import (
	"log/slog"
	"slices"

	kangcore "github.com/meigma/kang/core"
)

// Option configures compression and decompression of a single file.
type Option = kangcore.Option

// Re-exported file options.
var (
	// WithChunkSize sets the tensor chunk size in bytes.
	WithChunkSize = kangcore.WithChunkSize

	// WithBackend selects a built-in codec by name.
	WithBackend = kangcore.WithBackend

	// WithCodec supplies a codec directly.
	WithCodec = kangcore.WithCodec

	// WithLevel sets the codec compression level.
	WithLevel = kangcore.WithLevel

	// WithBlockSize sets the codec's internal block size.
	WithBlockSize = kangcore.WithBlockSize

	// WithWorkers sets how many chunks of one file are processed at once.
	WithWorkers = kangcore.WithWorkers

	// WithProgress sets a callback for progress updates.
	WithProgress = kangcore.WithProgress
)

// Default file extensions used in directory mode.
const (
	SourceExt  = ".safetensors"
	ArchiveExt = ".kang"
)

// batchConfig holds configuration for CompressPath and DecompressPath.
type batchConfig struct {
	fileOpts    []Option
	fileWorkers int
	logger      *slog.Logger
}

// BatchOption configures CompressPath and DecompressPath.
type BatchOption func(*batchConfig)

// WithOptions adds per-file options applied to every file.
func WithOptions(opts ...Option) BatchOption {
	return func(c *batchConfig) {
		c.fileOpts = append(c.fileOpts, opts...)
	}
}

// WithFileWorkers sets how many files are converted at once in directory
// mode. Values <= 1 convert files one at a time.
func WithFileWorkers(n int) BatchOption {
	return func(c *batchConfig) {
		c.fileWorkers = n
	}
}

// WithLogger sets the logger for batch and per-file operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) BatchOption {
	return func(c *batchConfig) {
		c.logger = logger
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (c *batchConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// options returns the per-file options including the batch logger. The
// result is shared by concurrent file workers and has no spare capacity.
func (c *batchConfig) options() []Option {
	opts := make([]Option, 0, len(c.fileOpts)+1)
	if c.logger != nil {
		opts = append(opts, kangcore.WithLogger(c.logger))
	}
	return slices.Clip(append(opts, c.fileOpts...))
}
