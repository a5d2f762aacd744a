package kang

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/meigma/kang/core/internal/plan"
	"github.com/meigma/kang/core/internal/sizing"
)

// Compress compresses a header and tensor payload into an archive.
//
// An empty header yields an empty compressed header and an empty tensor
// payload yields an empty chunk table; the codec is never called with an
// empty buffer. Every chunk is compressed independently. Any codec fault
// aborts the call with ErrBackend and no archive is returned.
func Compress(ctx context.Context, header, tensors []byte, opts ...Option) (*Archive, error) {
	cfg := newConfig(opts)
	if cfg.chunkSize == 0 {
		return nil, ErrInvalidChunkSize
	}
	p, err := plan.New(uint64(len(tensors)), cfg.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidChunkSize, err)
	}

	codec, release, err := cfg.openCodec()
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	a := &Archive{}
	if len(header) > 0 {
		a.Header, err = codec.Compress(nil, header)
		if err != nil {
			return nil, fmt.Errorf("%w: compress header: %w", ErrBackend, err)
		}
	}

	c := &compressor{cfg: &cfg, codec: codec, plan: p, tensors: tensors}
	if err := c.run(ctx); err != nil {
		return nil, err
	}
	a.Chunks, a.Tensors = c.chunks, c.block

	cfg.log().Debug("compressed",
		"label", cfg.label,
		"codec", codec.Name(),
		"header_size", len(header),
		"tensor_size", len(tensors),
		"chunks", len(a.Chunks),
		"compressed_size", len(a.Header)+len(a.Tensors),
		"elapsed", time.Since(start),
	)
	return a, nil
}

// compressor holds the state of one chunked compression call.
type compressor struct {
	cfg     *config
	codec   Codec
	plan    plan.Plan
	tensors []byte

	chunks []ChunkInfo
	block  []byte

	mu         sync.Mutex
	chunksDone int
	bytesDone  uint64
}

func (c *compressor) run(ctx context.Context) error {
	n := c.plan.Len()
	if n == 0 {
		return nil
	}
	maxChunk, err := sizing.ToInt(c.plan.Max(), ErrSizeOverflow)
	if err != nil {
		return err
	}
	bound := c.codec.CompressBound(maxChunk)
	newScratch := func() []byte { return make([]byte, 0, bound) }

	c.chunks = make([]ChunkInfo, n)
	if c.cfg.workers <= 1 {
		return forEachChunk(ctx, n, 1, newScratch, func(scratch []byte, i int) error {
			out, err := c.compressChunk(scratch, i)
			if err != nil {
				return err
			}
			c.block = append(c.block, out...)
			return nil
		})
	}

	// Workers reuse their scratch, so each result is copied out and the
	// block is assembled in chunk order afterwards.
	results := make([][]byte, n)
	err = forEachChunk(ctx, n, c.cfg.workers, newScratch, func(scratch []byte, i int) error {
		out, err := c.compressChunk(scratch, i)
		if err != nil {
			return err
		}
		results[i] = slices.Clone(out)
		return nil
	})
	if err != nil {
		return err
	}
	var total int
	for _, r := range results {
		total += len(r)
	}
	c.block = make([]byte, 0, total)
	for _, r := range results {
		c.block = append(c.block, r...)
	}
	return nil
}

// compressChunk compresses chunk i into scratch and records its sizes.
func (c *compressor) compressChunk(scratch []byte, i int) ([]byte, error) {
	r := c.plan.Range(i)
	src := c.tensors[r.Start:r.End]
	out, err := c.codec.Compress(scratch[:0], src)
	if err != nil {
		return nil, fmt.Errorf("%w: compress chunk %d: %w", ErrBackend, i, err)
	}
	c.chunks[i] = ChunkInfo{OriginalSize: r.Len(), CompressedSize: uint64(len(out))}
	c.cfg.log().Debug("chunk compressed", "label", c.cfg.label, "chunk", i, "original_size", r.Len(), "compressed_size", len(out))
	c.advance(r.Len())
	return out, nil
}

func (c *compressor) advance(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunksDone++
	c.bytesDone += n
	c.cfg.report(StageCompressing, c.bytesDone, c.plan.PayloadSize(), c.chunksDone, c.plan.Len())
}
