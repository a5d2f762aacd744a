package kang

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	gojson "github.com/goccy/go-json"
	"github.com/opencontainers/go-digest"

	kangcore "github.com/meigma/kang/core"
)

// metadataKey is the reserved header entry holding free-form string metadata.
const metadataKey = "__metadata__"

// TensorInfo describes one tensor declared in a source header.
type TensorInfo struct {
	Name        string    `json:"-"`
	DType       string    `json:"dtype"`
	Shape       []uint64  `json:"shape"`
	DataOffsets [2]uint64 `json:"data_offsets"`
}

// Len returns the tensor's byte length within the tensor payload.
func (t TensorInfo) Len() uint64 {
	if t.DataOffsets[1] < t.DataOffsets[0] {
		return 0
	}
	return t.DataOffsets[1] - t.DataOffsets[0]
}

// InspectResult describes an archive without restoring its tensor payload.
type InspectResult struct {
	// Path is the inspected archive file.
	Path string

	// Digest is the SHA-256 digest of the archive file.
	Digest digest.Digest

	// Stats holds the archive's size accounting.
	Stats kangcore.ArchiveStats

	// Chunks is the archive's chunk table.
	Chunks []kangcore.ChunkInfo

	// Header is the decoded header text.
	Header []byte

	// Tensors lists the header's tensor entries sorted by name.
	Tensors []TensorInfo

	// Metadata holds the header's __metadata__ entries, if any.
	Metadata map[string]string
}

// Ratio returns the tensor payload's compression ratio, or zero for an
// empty payload.
func (r *InspectResult) Ratio() float64 {
	if r.Stats.CompressedTensorSize == 0 {
		return 0
	}
	return float64(r.Stats.TensorSize) / float64(r.Stats.CompressedTensorSize)
}

// DTypes counts tensors by dtype.
func (r *InspectResult) DTypes() map[string]int {
	counts := make(map[string]int)
	for _, t := range r.Tensors {
		counts[t.DType]++
	}
	return counts
}

// Inspect reads the archive at path, decodes its header and reports its
// layout. The tensor payload is not decompressed.
//
// A decoded header that is not a JSON object of tensor entries returns
// ErrInvalidHeader. An empty header is reported with no tensors.
func Inspect(ctx context.Context, path string, opts ...Option) (*InspectResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	digester := digest.Canonical.Digester()
	a, err := kangcore.ReadArchive(io.TeeReader(f, digester.Hash()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	stats, err := a.Stats()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	header, err := kangcore.DecompressHeader(a, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	res := &InspectResult{
		Path:   path,
		Digest: digester.Digest(),
		Stats:  stats,
		Chunks: a.Chunks,
		Header: header,
	}
	if len(header) > 0 {
		res.Tensors, res.Metadata, err = parseHeader(header)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return res, nil
}

// parseHeader splits a source header into tensor entries and metadata.
func parseHeader(header []byte) ([]TensorInfo, map[string]string, error) {
	var entries map[string]gojson.RawMessage
	if err := gojson.Unmarshal(header, &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	var metadata map[string]string
	if raw, ok := entries[metadataKey]; ok {
		if err := gojson.Unmarshal(raw, &metadata); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrInvalidHeader, metadataKey, err)
		}
		delete(entries, metadataKey)
	}

	tensors := make([]TensorInfo, 0, len(entries))
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		var t TensorInfo
		if err := gojson.Unmarshal(entries[name], &t); err != nil {
			return nil, nil, fmt.Errorf("%w: tensor %q: %w", ErrInvalidHeader, name, err)
		}
		t.Name = name
		tensors = append(tensors, t)
	}
	return tensors, metadata, nil
}
