// Package backend provides the block compression codecs the chunk engines
// drive.
//
// A Codec compresses and decompresses whole buffers in one call. It must
// be able to report the decompressed size of a compressed buffer from the
// buffer's own metadata, without decoding it, so callers can validate the
// size they expect before trusting the output.
package backend

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultLevel is the compression level used when none is configured.
const DefaultLevel = 10

// Names of the built-in codecs.
const (
	NameZstd = "zstd"
	NameLZ4  = "lz4"
)

// ErrUnknownCodec is returned by New for an unregistered codec name.
var ErrUnknownCodec = errors.New("backend: unknown codec")

// ErrCorrupt is returned when a compressed buffer cannot be parsed.
var ErrCorrupt = errors.New("backend: corrupt block")

// Codec is a one-shot block compressor.
//
// Implementations must be safe for concurrent use. Buffers passed as dst
// are appended to; callers reuse them by passing dst[:0].
type Codec interface {
	// Name returns the stable codec name.
	Name() string

	// CompressBound returns the largest compressed size for n input bytes.
	CompressBound(n int) int

	// Compress appends the compressed form of src to dst.
	Compress(dst, src []byte) ([]byte, error)

	// DecompressedSize reports the decompressed size recorded in src.
	DecompressedSize(src []byte) (uint64, error)

	// Decompress appends the decoded form of src to dst.
	Decompress(dst, src []byte) ([]byte, error)

	// Close releases resources held by the codec.
	Close() error
}

// Config configures a codec.
type Config struct {
	// Level is an opaque compression level. Each codec maps it onto its own
	// scale; values are not range-checked here. Zero selects DefaultLevel.
	Level int

	// BlockSize is the codec's internal block or window size in bytes.
	// Zero selects the codec default.
	BlockSize int

	// Concurrency is the number of calls expected to run at once.
	// Values < 1 are treated as 1.
	Concurrency int
}

func (c Config) level() int {
	if c.Level == 0 {
		return DefaultLevel
	}
	return c.Level
}

func (c Config) concurrency() int {
	return max(c.Concurrency, 1)
}

// New returns the codec registered under name.
func New(name string, cfg Config) (Codec, error) {
	switch name {
	case NameZstd, "":
		return newZstd(cfg)
	case NameLZ4:
		return newLZ4(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Names returns the names of the built-in codecs.
func Names() []string {
	return slices.Clone(names)
}

var names = []string{NameZstd, NameLZ4}
