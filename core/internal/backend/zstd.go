package backend

import (
	"fmt"
	"math/bits"

	"github.com/klauspost/compress/zstd"
)

// zstdCodec encodes each buffer as a single zstd frame carrying its
// content size.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstd(cfg Config) (*zstdCodec, error) {
	encOpts := []zstd.EOption{
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.level())),
		zstd.WithEncoderConcurrency(cfg.concurrency()),
		zstd.WithEncoderCRC(true),
	}
	if cfg.BlockSize > 0 {
		encOpts = append(encOpts, zstd.WithWindowSize(windowSize(cfg.BlockSize)))
	}
	enc, err := zstd.NewWriter(nil, encOpts...)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(cfg.concurrency()),
		zstd.WithDecoderLowmem(false),
	)
	if err != nil {
		_ = enc.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

// windowSize rounds n up to a power of two within the window limits zstd accepts.
func windowSize(n int) int {
	if n <= zstd.MinWindowSize {
		return zstd.MinWindowSize
	}
	if n >= zstd.MaxWindowSize {
		return zstd.MaxWindowSize
	}
	return 1 << bits.Len(uint(n-1))
}

// zstdMaxContent bounds the content of a frame of n bytes: every block
// costs at least a 3-byte header and decodes to at most 128 KiB.
func zstdMaxContent(n int) uint64 {
	const maxBlockSize = 128 << 10
	return (uint64(n)/3 + 1) * maxBlockSize //nolint:gosec // n is a slice length
}

func (c *zstdCodec) Name() string { return NameZstd }

func (c *zstdCodec) CompressBound(n int) int {
	return c.enc.MaxEncodedSize(n)
}

func (c *zstdCodec) Compress(dst, src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, dst), nil
}

func (c *zstdCodec) DecompressedSize(src []byte) (uint64, error) {
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if !h.HasFCS {
		return 0, fmt.Errorf("%w: zstd frame has no content size", ErrCorrupt)
	}
	if h.FrameContentSize > zstdMaxContent(len(src)) {
		return 0, fmt.Errorf("%w: implausible zstd content size %d for %d input bytes", ErrCorrupt, h.FrameContentSize, len(src))
	}
	return h.FrameContentSize, nil
}

func (c *zstdCodec) Decompress(dst, src []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, dst)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

func (c *zstdCodec) Close() error {
	c.dec.Close()
	return c.enc.Close()
}
