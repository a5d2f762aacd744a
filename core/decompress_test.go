package kang

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/kang/core/testutil"
)

func compressTestArchive(t *testing.T, opts ...Option) *Archive {
	t.Helper()
	opts = append([]Option{WithChunkSize(64)}, opts...)
	a, err := Compress(context.Background(), []byte(`{"a":1}`), testutil.Pattern(200), opts...)
	require.NoError(t, err)
	return a
}

func TestDecompress_SizeMismatchFromCodec(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	for _, delta := range []int64{-1, 1} {
		codec := &testutil.LyingCodec{Codec: testutil.NewCodec(t, DefaultBackend), Delta: delta}
		_, err := Decompress(context.Background(), &Archive{Chunks: a.Chunks, Tensors: a.Tensors}, WithCodec(codec))
		require.ErrorIs(t, err, ErrSizeMismatch)
	}
}

func TestDecompress_SizeMismatchFromTable(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	chunks := append([]ChunkInfo(nil), a.Chunks...)
	// Keep the total intact so only the per-chunk check can catch it.
	chunks[0].OriginalSize--
	chunks[1].OriginalSize++

	src, err := Decompress(context.Background(), &Archive{Header: a.Header, Chunks: chunks, Tensors: a.Tensors})
	require.ErrorIs(t, err, ErrSizeMismatch)
	assert.Nil(t, src)
}

func TestDecompress_CorruptChunkIsNeverSilent(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t, WithChunkSize(64))
	for i := range a.Tensors {
		tensors := bytes.Clone(a.Tensors)
		tensors[i] ^= 0xff
		src, err := Decompress(context.Background(), &Archive{Header: a.Header, Chunks: a.Chunks, Tensors: tensors})
		if err != nil {
			continue
		}
		// zstd frames carry a checksum, so every surviving decode must be exact.
		assert.Equal(t, testutil.Pattern(200), src.Tensors, "byte %d", i)
	}
}

func TestDecompress_BlockShorterThanTable(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	_, err := Decompress(context.Background(), &Archive{Header: a.Header, Chunks: a.Chunks, Tensors: a.Tensors[:len(a.Tensors)-1]})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestDecompress_TrailingBytes(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	tensors := append(bytes.Clone(a.Tensors), 0)
	_, err := Decompress(context.Background(), &Archive{Header: a.Header, Chunks: a.Chunks, Tensors: tensors})
	require.ErrorIs(t, err, ErrSizeMismatch)

	_, err = Decompress(context.Background(), &Archive{Tensors: []byte{1, 2, 3}})
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestDecompress_TableOverflow(t *testing.T) {
	t.Parallel()

	chunks := []ChunkInfo{{OriginalSize: ^uint64(0), CompressedSize: 1}, {OriginalSize: 1, CompressedSize: 1}}
	_, err := Decompress(context.Background(), &Archive{Chunks: chunks, Tensors: []byte{0, 0}})
	require.ErrorIs(t, err, ErrSizeOverflow)
}

func TestDecompress_BackendFault(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	for _, workers := range []int{1, 3} {
		// Call 1 is the header; call 3 is the second chunk.
		codec := &testutil.FaultyCodec{Codec: testutil.NewCodec(t, DefaultBackend), FailDecompressAt: 3}
		src, err := Decompress(context.Background(), a, WithCodec(codec), WithWorkers(workers))
		require.ErrorIs(t, err, ErrBackend)
		require.ErrorIs(t, err, testutil.ErrInjected)
		assert.Nil(t, src)
	}
}

func TestDecompress_CorruptHeader(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	_, err := Decompress(context.Background(), &Archive{Header: []byte("not zstd"), Chunks: a.Chunks, Tensors: a.Tensors})
	require.ErrorIs(t, err, ErrBackend)
}

func TestDecompress_WrongBackend(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t, WithBackend("lz4"))
	_, err := Decompress(context.Background(), a, WithBackend("zstd"))
	require.Error(t, err)
}

func TestDecompress_Progress(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	var last ProgressEvent
	calls := 0
	_, err := Decompress(context.Background(), a, WithProgress(func(e ProgressEvent) {
		calls++
		last = e
	}))
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, StageDecompressing, last.Stage)
	assert.Equal(t, uint64(200), last.BytesDone)
	assert.Equal(t, 4, last.ChunksDone)
}

func TestDecompressHeader(t *testing.T) {
	t.Parallel()

	a := compressTestArchive(t)
	header, err := DecompressHeader(a)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), header)

	header, err = DecompressHeader(&Archive{})
	require.NoError(t, err)
	assert.Nil(t, header)
}

// forgedZstdFrame is a single raw-block zstd frame holding content whose
// header declares fcs bytes.
func forgedZstdFrame(fcs uint64, content []byte) []byte {
	frame := []byte{0x28, 0xb5, 0x2f, 0xfd, 0xe0}
	frame = binary.LittleEndian.AppendUint64(frame, fcs)
	bh := uint32(1) | uint32(len(content))<<3
	frame = append(frame, byte(bh), byte(bh>>8), byte(bh>>16))
	return append(frame, content...)
}

func TestDecompress_InflatedHeaderSize(t *testing.T) {
	t.Parallel()

	lz4Header := make([]byte, 9+16)
	lz4Header[0] = 1
	binary.LittleEndian.PutUint64(lz4Header[1:], 1<<62)

	tests := []struct {
		name    string
		header  []byte
		opts    []Option
		wantErr error
	}{
		{name: "zstd content size", header: forgedZstdFrame(1<<62, []byte(`{"a":1}`)), wantErr: ErrBackend},
		{name: "lz4 frame size", header: lz4Header, opts: []Option{WithBackend("lz4")}, wantErr: ErrBackend},
		{
			name:    "codec reports huge size",
			header:  compressTestArchive(t).Header,
			opts:    []Option{WithCodec(&testutil.LyingCodec{Codec: testutil.NewCodec(t, DefaultBackend), Delta: 1 << 40})},
			wantErr: ErrSizeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := &Archive{Header: tt.header}
			_, err := Decompress(context.Background(), a, tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)

			_, err = DecompressHeader(a, tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecompress_InflatedChunkSize(t *testing.T) {
	t.Parallel()

	t.Run("table only", func(t *testing.T) {
		t.Parallel()

		a := compressTestArchive(t)
		a.Chunks[0].OriginalSize = 1 << 50
		src, err := Decompress(context.Background(), a, WithWorkers(2))
		require.ErrorIs(t, err, ErrSizeMismatch)
		assert.Nil(t, src)
	})

	t.Run("table and lz4 frame", func(t *testing.T) {
		t.Parallel()

		a := compressTestArchive(t, WithBackend("lz4"))
		a.Chunks[0].OriginalSize = 1 << 50
		binary.LittleEndian.PutUint64(a.Tensors[1:9], 1<<50)
		_, err := Decompress(context.Background(), a, WithBackend("lz4"))
		require.ErrorIs(t, err, ErrBackend)
	})

	t.Run("last chunk checked before any decode", func(t *testing.T) {
		t.Parallel()

		a := compressTestArchive(t)
		a.Chunks[len(a.Chunks)-1].OriginalSize = 1 << 50
		codec := testutil.NewCountingCodec(testutil.NewCodec(t, DefaultBackend))
		_, err := Decompress(context.Background(), &Archive{Chunks: a.Chunks, Tensors: a.Tensors}, WithCodec(codec))
		require.ErrorIs(t, err, ErrSizeMismatch)
		assert.Zero(t, codec.DecompressCalls())
	})

	t.Run("payload beyond limit", func(t *testing.T) {
		t.Parallel()

		inner := testutil.NewCodec(t, DefaultBackend)
		seg, err := inner.Compress(nil, []byte{'x'})
		require.NoError(t, err)
		codec := &testutil.LyingCodec{Codec: inner, Delta: 1<<47 - 1}
		chunks := []ChunkInfo{{OriginalSize: 1 << 47, CompressedSize: uint64(len(seg))}}
		_, err = Decompress(context.Background(), &Archive{Chunks: chunks, Tensors: seg}, WithCodec(codec))
		require.ErrorIs(t, err, ErrSizeOverflow)
	})
}
