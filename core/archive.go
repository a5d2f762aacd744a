package kang

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/meigma/kang/core/internal/sizing"
)

// Signature identifies a kang archive. It is the first 8 bytes of every archive.
const Signature = "KANGCOMP"

const (
	signatureSize  = len(Signature)
	chunkEntrySize = 16

	// maxTablePrealloc caps how many chunk entries are allocated up front
	// from an untrusted count; larger tables grow as entries are read.
	maxTablePrealloc = 1 << 16
)

// Archive is a compressed tensor weight file.
//
// Chunk boundaries in Tensors are implied by the running sum of
// CompressedSize over Chunks; the block carries no delimiters.
type Archive struct {
	// Header is the compressed header, empty when the source header was empty.
	Header []byte

	// Chunks is the chunk table, in production order.
	Chunks []ChunkInfo

	// Tensors is the concatenation of every chunk's compressed bytes.
	Tensors []byte
}

// ArchiveStats summarizes an archive's chunk table.
type ArchiveStats struct {
	// EncodedSize is the archive size on disk.
	EncodedSize uint64

	// HeaderSize is the compressed header size.
	HeaderSize uint64

	// ChunkCount is the number of tensor chunks.
	ChunkCount int

	// TensorSize is the total uncompressed tensor size.
	TensorSize uint64

	// CompressedTensorSize is the total compressed tensor size.
	CompressedTensorSize uint64

	// MaxChunkSize is the largest uncompressed chunk.
	MaxChunkSize uint64
}

// Stats summarizes the archive. It returns ErrSizeOverflow if the chunk
// table sums overflow.
func (a *Archive) Stats() (ArchiveStats, error) {
	totals, ok := a.totals()
	if !ok {
		return ArchiveStats{}, ErrSizeOverflow
	}
	return ArchiveStats{
		EncodedSize:          a.EncodedSize(),
		HeaderSize:           uint64(len(a.Header)),
		ChunkCount:           len(a.Chunks),
		TensorSize:           totals.Original,
		CompressedTensorSize: totals.Compressed,
		MaxChunkSize:         totals.MaxOriginal,
	}, nil
}

// EncodedSize returns the number of bytes WriteTo produces.
func (a *Archive) EncodedSize() uint64 {
	return uint64(signatureSize) + 8 + uint64(len(a.Header)) + 8 +
		uint64(len(a.Chunks))*chunkEntrySize + uint64(len(a.Tensors))
}

func (a *Archive) totals() (sizing.Totals, bool) {
	return sizing.Sum(len(a.Chunks), func(i int) (uint64, uint64) {
		return a.Chunks[i].OriginalSize, a.Chunks[i].CompressedSize
	})
}

// WriteTo writes the archive in its on-disk layout.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriterSize(cw, 64<<10)

	var u64 [8]byte
	putU64 := func(v uint64) error {
		binary.LittleEndian.PutUint64(u64[:], v)
		_, err := bw.Write(u64[:])
		return err
	}

	if _, err := bw.WriteString(Signature); err != nil {
		return cw.n, err
	}
	if err := putU64(uint64(len(a.Header))); err != nil {
		return cw.n, err
	}
	if _, err := bw.Write(a.Header); err != nil {
		return cw.n, err
	}
	if err := putU64(uint64(len(a.Chunks))); err != nil {
		return cw.n, err
	}
	for _, c := range a.Chunks {
		if err := putU64(c.OriginalSize); err != nil {
			return cw.n, err
		}
		if err := putU64(c.CompressedSize); err != nil {
			return cw.n, err
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	// The tensor block bypasses the buffer; it is usually far larger.
	if len(a.Tensors) > 0 {
		if _, err := cw.Write(a.Tensors); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

// ReadArchive parses an archive from r, reading r to end of stream.
//
// Short reads anywhere before the tensor block return ErrTruncated and a
// wrong signature returns ErrBadSignature. The tensor block is not checked
// against the chunk table here; Decompress does that.
func ReadArchive(r io.Reader) (*Archive, error) {
	br := bufio.NewReaderSize(r, 64<<10)

	var sig [signatureSize]byte
	if err := readFull(br, sig[:], "signature"); err != nil {
		return nil, err
	}
	if string(sig[:]) != Signature {
		return nil, fmt.Errorf("%w: got %q", ErrBadSignature, sig[:])
	}

	headerSize, err := readU64(br, "header size")
	if err != nil {
		return nil, err
	}
	header, err := readN(br, headerSize, "header")
	if err != nil {
		return nil, err
	}

	count, err := readU64(br, "chunk count")
	if err != nil {
		return nil, err
	}
	if count > math.MaxInt/chunkEntrySize {
		return nil, fmt.Errorf("%w: chunk count %d", ErrTruncated, count)
	}
	chunks := make([]ChunkInfo, 0, min(count, maxTablePrealloc))
	var entry [chunkEntrySize]byte
	for i := range count {
		if _, err := io.ReadFull(br, entry[:]); err != nil {
			return nil, readError(err, fmt.Sprintf("chunk entry %d of %d", i, count))
		}
		chunks = append(chunks, ChunkInfo{
			OriginalSize:   binary.LittleEndian.Uint64(entry[:8]),
			CompressedSize: binary.LittleEndian.Uint64(entry[8:]),
		})
	}

	tensors, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("%w: read tensor block: %w", ErrIO, err)
	}
	if len(tensors) == 0 {
		tensors = nil
	}
	return &Archive{Header: header, Chunks: chunks, Tensors: tensors}, nil
}

// readFull fills buf, mapping short reads to ErrTruncated.
func readFull(r io.Reader, buf []byte, field string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return readError(err, field)
	}
	return nil
}

func readError(err error, field string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrTruncated, field)
	}
	return fmt.Errorf("%w: read %s: %w", ErrIO, field, err)
}

func readU64(r io.Reader, field string) (uint64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:], field); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// readN reads exactly n bytes. Memory grows with the data actually read,
// so a corrupt length cannot force a huge allocation.
func readN(r io.Reader, n uint64, field string) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	lr := &io.LimitedReader{R: r, N: math.MaxInt64}
	if n < math.MaxInt64 {
		lr.N = int64(n)
	}
	data, err := sizing.ReadAllWithLimit(lr, n, ErrTruncated)
	if err != nil {
		if errors.Is(err, ErrTruncated) {
			return nil, fmt.Errorf("%w: %s of %d bytes", ErrTruncated, field, n)
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, field, err)
	}
	if uint64(len(data)) < n {
		return nil, fmt.Errorf("%w: %s has %d of %d bytes", ErrTruncated, field, len(data), n)
	}
	return data, nil
}
