package kang

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/kang/core/testutil"
)

func encodeArchive(t *testing.T, a *Archive) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := a.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	require.Equal(t, a.EncodedSize(), uint64(n))
	return buf.Bytes()
}

func TestArchive_Layout(t *testing.T) {
	t.Parallel()

	a := &Archive{
		Header:  []byte("HDR"),
		Chunks:  []ChunkInfo{{OriginalSize: 64, CompressedSize: 2}, {OriginalSize: 8, CompressedSize: 1}},
		Tensors: []byte{0xaa, 0xbb, 0xcc},
	}
	data := encodeArchive(t, a)

	assert.Equal(t, Signature, string(data[:8]))
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, []byte("HDR"), data[16:19])
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(data[19:27]))
	assert.Equal(t, uint64(64), binary.LittleEndian.Uint64(data[27:35]))
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(data[35:43]))
	assert.Equal(t, uint64(8), binary.LittleEndian.Uint64(data[43:51]))
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(data[51:59]))
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, data[59:])

	got, err := ReadArchive(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestArchive_EmptyLayout(t *testing.T) {
	t.Parallel()

	data := encodeArchive(t, &Archive{})
	assert.Len(t, data, 24)

	got, err := ReadArchive(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, got.Header)
	assert.Empty(t, got.Chunks)
	assert.Empty(t, got.Tensors)

	src, err := Decompress(context.Background(), got)
	require.NoError(t, err)
	assert.Empty(t, src.Header)
	assert.Empty(t, src.Tensors)
}

func TestReadArchive_BadSignature(t *testing.T) {
	t.Parallel()

	data := encodeArchive(t, compressTestArchive(t))
	for i := range signatureSize {
		tampered := bytes.Clone(data)
		tampered[i] ^= 0x01
		_, err := ReadArchive(bytes.NewReader(tampered))
		require.ErrorIs(t, err, ErrBadSignature, "byte %d", i)
	}
}

func TestReadArchive_TruncatedBeforeTensorBlock(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	data := encodeArchive(t, a)
	blockStart := len(data) - len(a.Tensors)

	for n := range blockStart {
		_, err := ReadArchive(bytes.NewReader(data[:n]))
		require.ErrorIs(t, err, ErrTruncated, "length %d", n)
	}

	// Cutting at or inside the tensor block parses, but cannot decompress.
	for _, n := range []int{blockStart, blockStart + 1, len(data) - 1} {
		got, err := ReadArchive(bytes.NewReader(data[:n]))
		require.NoError(t, err, "length %d", n)
		_, err = Decompress(context.Background(), got)
		require.ErrorIs(t, err, ErrTruncated, "length %d", n)
	}
}

func TestReadArchive_HugeDeclaredSizes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.WriteString(Signature)
	_ = binary.Write(&buf, binary.LittleEndian, uint64(1<<62))
	_, err := ReadArchive(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, ErrTruncated)

	buf.Reset()
	buf.WriteString(Signature)
	_ = binary.Write(&buf, binary.LittleEndian, uint64(0))
	_ = binary.Write(&buf, binary.LittleEndian, ^uint64(0))
	_, err = ReadArchive(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, ErrTruncated)

	buf.Reset()
	buf.WriteString(Signature)
	_ = binary.Write(&buf, binary.LittleEndian, uint64(0))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(1<<40))
	_, err = ReadArchive(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, ErrTruncated)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestReadArchive_ReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	_, err := ReadArchive(failingReader{err: boom})
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, boom)
}

type shortWriter struct{ limit int }

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		n := w.limit
		w.limit = 0
		return n, io.ErrShortWrite
	}
	w.limit -= len(p)
	return len(p), nil
}

func TestArchive_WriteError(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	_, err := a.WriteTo(&shortWriter{limit: 10})
	require.ErrorIs(t, err, io.ErrShortWrite)
}

func TestArchive_Stats(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	stats, err := a.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.ChunkCount)
	assert.Equal(t, uint64(200), stats.TensorSize)
	assert.Equal(t, uint64(64), stats.MaxChunkSize)
	assert.Equal(t, uint64(len(a.Tensors)), stats.CompressedTensorSize)
	assert.Equal(t, uint64(len(a.Header)), stats.HeaderSize)
	assert.Equal(t, a.EncodedSize(), stats.EncodedSize)

	overflow := &Archive{Chunks: []ChunkInfo{{OriginalSize: ^uint64(0)}, {OriginalSize: 1}}}
	_, err = overflow.Stats()
	require.ErrorIs(t, err, ErrSizeOverflow)
}

func TestArchive_FullRoundTripThroughBytes(t *testing.T) {
	t.Parallel()

	header := []byte(`{"__metadata__":{"format":"pt"}}`)
	tensors := append(testutil.Pattern(1000), testutil.Random(777, 9)...)
	a, err := Compress(context.Background(), header, tensors, WithChunkSize(300))
	require.NoError(t, err)

	got, err := ReadArchive(bytes.NewReader(encodeArchive(t, a)))
	require.NoError(t, err)
	src, err := Decompress(context.Background(), got)
	require.NoError(t, err)
	assert.Equal(t, header, src.Header)
	assert.Equal(t, tensors, src.Tensors)
}
