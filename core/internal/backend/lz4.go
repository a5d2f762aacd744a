package backend

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/pierrec/lz4/v4"
)

// lz4 blocks carry no size of their own, so every block is framed as
// mode(1) + decompressed size(8, little-endian) + payload.
const lz4FrameSize = 1 + 8

// lz4MaxExpansion bounds the decoded size of a block per input byte.
const lz4MaxExpansion = 255

const (
	lz4ModeRaw byte = 0
	lz4ModeLZ4 byte = 1
)

// hcLevels maps levels 2 and up onto the lz4 high-compression depths.
var hcLevels = []lz4.CompressionLevel{
	lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
	lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

type lz4Codec struct {
	fast  bool
	depth lz4.CompressionLevel
}

func newLZ4(cfg Config) *lz4Codec {
	level := cfg.level()
	if level <= 1 {
		return &lz4Codec{fast: true}
	}
	idx := min(level-2, len(hcLevels)-1)
	return &lz4Codec{depth: hcLevels[idx]}
}

func (c *lz4Codec) Name() string { return NameLZ4 }

func (c *lz4Codec) CompressBound(n int) int {
	return lz4FrameSize + max(lz4.CompressBlockBound(n), n)
}

func (c *lz4Codec) Compress(dst, src []byte) ([]byte, error) {
	start := len(dst)
	dst = slices.Grow(dst, c.CompressBound(len(src)))
	dst = dst[:start+lz4FrameSize]
	binary.LittleEndian.PutUint64(dst[start+1:], uint64(len(src)))

	body := dst[len(dst):cap(dst)]
	var n int
	var err error
	if c.fast {
		n, err = lz4.CompressBlock(src, body, nil)
	} else {
		n, err = lz4.CompressBlockHC(src, body, c.depth, nil, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// Zero means incompressible; store the block as-is.
	if n == 0 || n >= len(src) {
		dst[start] = lz4ModeRaw
		return append(dst, src...), nil
	}
	dst[start] = lz4ModeLZ4
	return dst[:len(dst)+n], nil
}

func (c *lz4Codec) DecompressedSize(src []byte) (uint64, error) {
	if len(src) < lz4FrameSize {
		return 0, fmt.Errorf("%w: lz4 block shorter than frame", ErrCorrupt)
	}
	size := binary.LittleEndian.Uint64(src[1:lz4FrameSize])
	payload := uint64(len(src) - lz4FrameSize)
	switch src[0] {
	case lz4ModeRaw:
		if size != payload {
			return 0, fmt.Errorf("%w: raw lz4 block holds %d bytes, frame says %d", ErrCorrupt, payload, size)
		}
	case lz4ModeLZ4:
		// lz4 cannot expand input by more than 255x.
		if size > payload*lz4MaxExpansion {
			return 0, fmt.Errorf("%w: implausible lz4 block size %d for %d input bytes", ErrCorrupt, size, payload)
		}
	default:
		return 0, fmt.Errorf("%w: unknown lz4 block mode %d", ErrCorrupt, src[0])
	}
	return size, nil
}

func (c *lz4Codec) Decompress(dst, src []byte) ([]byte, error) {
	size64, err := c.DecompressedSize(src)
	if err != nil {
		return nil, err
	}
	payload := src[lz4FrameSize:]
	if src[0] == lz4ModeRaw {
		return append(dst, payload...), nil
	}

	size := int(size64) //nolint:gosec // bounded by DecompressedSize
	start := len(dst)
	dst = slices.Grow(dst, size)
	out := dst[start : start+size]
	n, err := lz4.UncompressBlock(payload, out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return dst[:start+n], nil
}

func (c *lz4Codec) Close() error { return nil }
