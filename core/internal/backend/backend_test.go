package backend

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayloads() map[string][]byte {
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic test data
	random := make([]byte, 4096)
	rng.Read(random)
	return map[string][]byte{
		"single byte": {0x7f},
		"short text":  []byte(`{"a":1}`),
		"repetitive":  bytes.Repeat([]byte("tensor"), 10_000),
		"random":      random,
	}
}

func newCodecs(t *testing.T) []Codec {
	t.Helper()
	var codecs []Codec
	for _, name := range Names() {
		for _, level := range []int{1, DefaultLevel, 19} {
			c, err := New(name, Config{Level: level})
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })
			codecs = append(codecs, c)
		}
	}
	return codecs
}

func TestCodecs_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range newCodecs(t) {
		for name, payload := range testPayloads() {
			t.Run(c.Name()+"/"+name, func(t *testing.T) {
				compressed, err := c.Compress(nil, payload)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(compressed), c.CompressBound(len(payload)))

				size, err := c.DecompressedSize(compressed)
				require.NoError(t, err)
				assert.Equal(t, uint64(len(payload)), size)

				out, err := c.Decompress(nil, compressed)
				require.NoError(t, err)
				assert.Equal(t, payload, out)
			})
		}
	}
}

func TestCodecs_ReuseScratch(t *testing.T) {
	t.Parallel()

	for _, c := range newCodecs(t) {
		payload := bytes.Repeat([]byte{1, 2, 3, 4}, 1024)
		scratch := make([]byte, 0, c.CompressBound(len(payload)))

		compressed, err := c.Compress(scratch[:0], payload)
		require.NoError(t, err)
		assert.Equal(t, &scratch[:1][0], &compressed[0], "%s: compress should write into scratch", c.Name())

		out := make([]byte, 0, len(payload))
		decoded, err := c.Decompress(out[:0], compressed)
		require.NoError(t, err)
		assert.Equal(t, payload, decoded)
		assert.Equal(t, &out[:1][0], &decoded[0], "%s: decompress should write into scratch", c.Name())
	}
}

func TestCodecs_Deterministic(t *testing.T) {
	t.Parallel()

	for _, c := range newCodecs(t) {
		payload := bytes.Repeat([]byte("weights"), 5000)
		a, err := c.Compress(nil, payload)
		require.NoError(t, err)
		b, err := c.Compress(nil, payload)
		require.NoError(t, err)
		assert.Equal(t, a, b, c.Name())
	}
}

func TestCodecs_CorruptSize(t *testing.T) {
	t.Parallel()

	for _, c := range newCodecs(t) {
		_, err := c.DecompressedSize([]byte{0xde, 0xad})
		require.Error(t, err, c.Name())
	}
}

func TestNew_UnknownCodec(t *testing.T) {
	t.Parallel()

	_, err := New("brotli", Config{})
	require.ErrorIs(t, err, ErrUnknownCodec)
}

func TestNew_EmptyNameIsZstd(t *testing.T) {
	t.Parallel()

	c, err := New("", Config{})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, NameZstd, c.Name())
}

func TestZstd_BlockSize(t *testing.T) {
	t.Parallel()

	c, err := New(NameZstd, Config{BlockSize: 3000})
	require.NoError(t, err)
	defer c.Close()

	payload := bytes.Repeat([]byte("abcdefgh"), 4096)
	compressed, err := c.Compress(nil, payload)
	require.NoError(t, err)
	out, err := c.Decompress(nil, compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestWindowSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1<<10, windowSize(1))
	assert.Equal(t, 4096, windowSize(3000))
	assert.Equal(t, 4096, windowSize(4096))
	assert.Equal(t, 1<<29, windowSize(1<<30))
}

func TestLZ4_RawFallback(t *testing.T) {
	t.Parallel()

	c := newLZ4(Config{Level: 1})
	rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data
	payload := make([]byte, 512)
	rng.Read(payload)

	compressed, err := c.Compress(nil, payload)
	require.NoError(t, err)
	assert.Equal(t, lz4ModeRaw, compressed[0])
	assert.Len(t, compressed, lz4FrameSize+len(payload))

	out, err := c.Decompress(nil, compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestLZ4_RejectsInconsistentRawBlock(t *testing.T) {
	t.Parallel()

	c := newLZ4(Config{})
	block := make([]byte, lz4FrameSize+3)
	block[0] = lz4ModeRaw
	binary.LittleEndian.PutUint64(block[1:], 4)

	_, err := c.Decompress(nil, block)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestLZ4_UnknownMode(t *testing.T) {
	t.Parallel()

	c := newLZ4(Config{})
	block := make([]byte, lz4FrameSize)
	block[0] = 9
	_, err := c.DecompressedSize(block)
	require.ErrorIs(t, err, ErrCorrupt)
}

// zstdFrame builds a single raw-block zstd frame around content whose
// header declares fcs as the content size.
func zstdFrame(fcs uint64, content []byte) []byte {
	frame := []byte{0x28, 0xb5, 0x2f, 0xfd, 0xe0} // magic, single segment, 8-byte FCS
	frame = binary.LittleEndian.AppendUint64(frame, fcs)
	bh := uint32(1) | uint32(len(content))<<3 // last block, raw
	frame = append(frame, byte(bh), byte(bh>>8), byte(bh>>16))
	return append(frame, content...)
}

func TestZstd_ImplausibleContentSize(t *testing.T) {
	t.Parallel()

	c, err := New(NameZstd, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	size, err := c.DecompressedSize(zstdFrame(7, []byte(`{"a":1}`)))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), size)

	_, err = c.DecompressedSize(zstdFrame(1<<62, []byte(`{"a":1}`)))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestLZ4_ImplausibleBlockSize(t *testing.T) {
	t.Parallel()

	c := newLZ4(Config{})
	block := make([]byte, lz4FrameSize+16)
	block[0] = lz4ModeLZ4
	binary.LittleEndian.PutUint64(block[1:], 1<<62)

	_, err := c.DecompressedSize(block)
	require.ErrorIs(t, err, ErrCorrupt)
	_, err = c.Decompress(nil, block)
	require.ErrorIs(t, err, ErrCorrupt)

	binary.LittleEndian.PutUint64(block[1:], 16*lz4MaxExpansion)
	size, err := c.DecompressedSize(block)
	require.NoError(t, err)
	assert.Equal(t, uint64(16*lz4MaxExpansion), size)
}
