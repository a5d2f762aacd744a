package kang

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meigma/kang/core/internal/sizing"
)

// Decompress reconstructs the header and tensor payload from an archive.
//
// Chunks are decoded in table order. Before decoding a chunk, the size the
// codec reads from the chunk's own metadata is checked against the table's
// original size; any disagreement fails the whole call with
// ErrSizeMismatch. A tensor block shorter than the table requires fails
// with ErrTruncated. No partial output is ever returned.
func Decompress(ctx context.Context, a *Archive, opts ...Option) (*Source, error) {
	cfg := newConfig(opts)

	codec, release, err := cfg.openCodec()
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	src := &Source{}
	if len(a.Header) > 0 {
		src.Header, err = decompressHeader(codec, a.Header)
		if err != nil {
			return nil, err
		}
	}

	d := &decompressor{cfg: &cfg, codec: codec, archive: a}
	if err := d.run(ctx); err != nil {
		return nil, err
	}
	src.Tensors = d.out

	cfg.log().Debug("decompressed",
		"label", cfg.label,
		"codec", codec.Name(),
		"header_size", len(src.Header),
		"tensor_size", len(src.Tensors),
		"chunks", len(a.Chunks),
		"elapsed", time.Since(start),
	)
	return src, nil
}

// DecompressHeader decodes only the archive's header. An empty stored
// header yields nil without consulting the codec.
func DecompressHeader(a *Archive, opts ...Option) ([]byte, error) {
	if len(a.Header) == 0 {
		return nil, nil
	}
	cfg := newConfig(opts)
	codec, release, err := cfg.openCodec()
	if err != nil {
		return nil, err
	}
	defer release()
	return decompressHeader(codec, a.Header)
}

// maxTensorSize is the largest tensor payload Decompress will allocate.
const maxTensorSize = 1 << 46 // 64 TiB

// maxHeaderPrealloc caps the header buffer allocated before decoding.
const maxHeaderPrealloc = 1 << 20

// decompressHeader decodes the header. The archive stores no uncompressed
// header length, so the codec-reported size is the only reference.
func decompressHeader(codec Codec, compressed []byte) ([]byte, error) {
	size, err := codec.DecompressedSize(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: header size: %w", ErrBackend, err)
	}
	n, err := sizing.ToInt(size, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	// n is codec-reported; the codec grows dst past the capped prealloc.
	header, err := codec.Decompress(make([]byte, 0, min(n, maxHeaderPrealloc)), compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress header: %w", ErrBackend, err)
	}
	if len(header) != n {
		return nil, fmt.Errorf("%w: header decoded to %d bytes, codec reported %d", ErrSizeMismatch, len(header), n)
	}
	return header, nil
}

// decompressor holds the state of one chunked decompression call.
type decompressor struct {
	cfg     *config
	codec   Codec
	archive *Archive

	// Running offsets of each chunk in the compressed block and the output.
	compressedOff []int
	originalOff   []int
	out           []byte
	total         uint64

	mu         sync.Mutex
	chunksDone int
	bytesDone  uint64
}

func (d *decompressor) run(ctx context.Context) error {
	a := d.archive
	if len(a.Chunks) == 0 {
		if len(a.Tensors) != 0 {
			return fmt.Errorf("%w: %d tensor bytes but no chunks", ErrSizeMismatch, len(a.Tensors))
		}
		return nil
	}

	totals, ok := a.totals()
	if !ok {
		return fmt.Errorf("chunk table: %w", ErrSizeOverflow)
	}
	block := uint64(len(a.Tensors))
	switch {
	case totals.Compressed > block:
		return fmt.Errorf("%w: chunk table needs %d compressed bytes, tensor block has %d", ErrTruncated, totals.Compressed, block)
	case totals.Compressed < block:
		return fmt.Errorf("%w: tensor block has %d bytes beyond the chunk table", ErrSizeMismatch, block-totals.Compressed)
	}

	n := len(a.Chunks)
	d.compressedOff = make([]int, n)
	d.originalOff = make([]int, n)
	var cOff, oOff int
	for i, c := range a.Chunks {
		d.compressedOff[i], d.originalOff[i] = cOff, oOff
		cOff += int(c.CompressedSize) //nolint:gosec // sum bounded by len(a.Tensors)
		oOff += int(c.OriginalSize)   //nolint:gosec // sum bounded by total
	}
	// Every chunk's size is checked before the output is allocated, so a
	// tampered table cannot drive the allocation.
	for i := range n {
		if err := d.checkChunkSize(i); err != nil {
			return err
		}
	}
	if totals.Original > maxTensorSize {
		return fmt.Errorf("%w: chunk table declares %d tensor bytes", ErrSizeOverflow, totals.Original)
	}
	total, err := sizing.ToInt(totals.Original, ErrSizeOverflow)
	if err != nil {
		return err
	}
	maxOriginal, err := sizing.ToInt(totals.MaxOriginal, ErrSizeOverflow)
	if err != nil {
		return err
	}
	d.total = totals.Original
	d.out = make([]byte, total)

	newScratch := func() []byte { return make([]byte, 0, maxOriginal) }
	if err := forEachChunk(ctx, n, d.cfg.workers, newScratch, d.decompressChunk); err != nil {
		d.out = nil
		return err
	}
	return nil
}

// segment returns chunk i's compressed bytes.
func (d *decompressor) segment(i int) []byte {
	off := d.compressedOff[i]
	return d.archive.Tensors[off : off+int(d.archive.Chunks[i].CompressedSize)] //nolint:gosec // validated in run
}

// checkChunkSize compares the size the codec reads from chunk i's own
// metadata with the table, without decoding.
func (d *decompressor) checkChunkSize(i int) error {
	c := d.archive.Chunks[i]
	size, err := d.codec.DecompressedSize(d.segment(i))
	if err != nil {
		return fmt.Errorf("%w: chunk %d size: %w", ErrBackend, i, err)
	}
	if size != c.OriginalSize {
		return fmt.Errorf("%w: chunk %d: table says %d bytes, codec reports %d", ErrSizeMismatch, i, c.OriginalSize, size)
	}
	return nil
}

// decompressChunk decodes chunk i through scratch into its output range.
func (d *decompressor) decompressChunk(scratch []byte, i int) error {
	c := d.archive.Chunks[i]
	seg := d.segment(i)

	decoded, err := d.codec.Decompress(scratch[:0], seg)
	if err != nil {
		return fmt.Errorf("%w: decompress chunk %d: %w", ErrBackend, i, err)
	}
	if uint64(len(decoded)) != c.OriginalSize {
		return fmt.Errorf("%w: chunk %d: decoded %d bytes, expected %d", ErrSizeMismatch, i, len(decoded), c.OriginalSize)
	}
	copy(d.out[d.originalOff[i]:], decoded)

	d.cfg.log().Debug("chunk decompressed", "label", d.cfg.label, "chunk", i, "original_size", c.OriginalSize, "compressed_size", c.CompressedSize)
	d.advance(c.OriginalSize)
	return nil
}

func (d *decompressor) advance(n uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chunksDone++
	d.bytesDone += n
	d.cfg.report(StageDecompressing, d.bytesDone, d.total, d.chunksDone, len(d.archive.Chunks))
}
