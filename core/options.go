package kang

import (
	"fmt"
	"log/slog"

	"github.com/meigma/kang/core/internal/backend"
)

// config holds settings shared by compression and decompression.
type config struct {
	chunkSize uint64
	backend   string
	codec     Codec
	level     int
	blockSize int
	workers   int
	label     string
	progress  ProgressFunc
	logger    *slog.Logger
}

// Option configures Compress, Decompress and the file helpers.
type Option func(*config)

func newConfig(opts []Option) config {
	cfg := config{
		chunkSize: DefaultChunkSize,
		backend:   DefaultBackend,
		level:     DefaultLevel,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithChunkSize sets the tensor chunk size in bytes (default 64 MiB).
// Decompression ignores it; chunk boundaries come from the archive.
func WithChunkSize(n uint64) Option {
	return func(cfg *config) {
		cfg.chunkSize = n
	}
}

// WithBackend selects a built-in codec by name ("zstd" or "lz4").
func WithBackend(name string) Option {
	return func(cfg *config) {
		cfg.backend = name
	}
}

// WithCodec supplies a codec directly, overriding WithBackend, WithLevel
// and WithBlockSize. The caller keeps ownership and must Close it.
func WithCodec(c Codec) Option {
	return func(cfg *config) {
		cfg.codec = c
	}
}

// WithLevel sets the codec compression level (default 10). The value is
// passed to the codec unchecked.
func WithLevel(level int) Option {
	return func(cfg *config) {
		cfg.level = level
	}
}

// WithBlockSize sets the codec's internal block size in bytes.
// Zero uses the codec default.
func WithBlockSize(n int) Option {
	return func(cfg *config) {
		cfg.blockSize = n
	}
}

// WithWorkers sets how many chunks are processed at once.
// Values <= 1 process chunks sequentially.
func WithWorkers(n int) Option {
	return func(cfg *config) {
		cfg.workers = n
	}
}

// WithLabel names the file being processed in log records and progress events.
func WithLabel(label string) Option {
	return func(cfg *config) {
		cfg.label = label
	}
}

// WithProgress sets a callback for progress updates.
// The callback may be invoked concurrently when WithWorkers is above one.
func WithProgress(fn ProgressFunc) Option {
	return func(cfg *config) {
		cfg.progress = fn
	}
}

// WithLogger sets the logger. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// openCodec returns the configured codec and a release function.
func (c *config) openCodec() (Codec, func(), error) {
	if c.codec != nil {
		return c.codec, func() {}, nil
	}
	codec, err := backend.New(c.backend, backend.Config{
		Level:       c.level,
		BlockSize:   c.blockSize,
		Concurrency: max(c.workers, 1),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open codec: %w", err)
	}
	return codec, func() { _ = codec.Close() }, nil //nolint:errcheck // close errors carry no data
}

// report sends a progress event if a callback is configured.
func (c *config) report(stage ProgressStage, bytesDone, bytesTotal uint64, chunksDone, chunksTotal int) {
	if c.progress == nil {
		return
	}
	c.progress(ProgressEvent{
		Stage:       stage,
		Path:        c.label,
		BytesDone:   bytesDone,
		BytesTotal:  bytesTotal,
		ChunksDone:  chunksDone,
		ChunksTotal: chunksTotal,
	})
}
