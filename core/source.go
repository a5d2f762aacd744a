package kang

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/meigma/kang/core/internal/sizing"
)

// headerLenSize is the width of the header length prefix in a source file.
const headerLenSize = 8

// Source is a tensor weight file split into its header and tensor data.
type Source struct {
	// Header is the raw header blob, typically JSON.
	Header []byte

	// Tensors is the raw tensor data following the header.
	Tensors []byte
}

// ParseSource splits a source file into header and tensor bytes.
//
// The returned slices alias data. Files shorter than the length prefix, or
// shorter than the header the prefix declares, are rejected with
// ErrTruncated.
func ParseSource(data []byte) (*Source, error) {
	if len(data) < headerLenSize {
		return nil, fmt.Errorf("%w: source is %d bytes, need at least %d", ErrTruncated, len(data), headerLenSize)
	}
	headerLen := binary.LittleEndian.Uint64(data[:headerLenSize])
	avail := uint64(len(data) - headerLenSize)
	if headerLen > avail {
		return nil, fmt.Errorf("%w: header declares %d bytes, %d available", ErrTruncated, headerLen, avail)
	}
	end := headerLenSize + int(headerLen) //nolint:gosec // headerLen <= len(data)
	return &Source{Header: data[headerLenSize:end], Tensors: data[end:]}, nil
}

// Size returns the encoded size of the source file.
func (s *Source) Size() uint64 {
	return headerLenSize + uint64(len(s.Header)) + uint64(len(s.Tensors))
}

// WriteTo writes the source file layout: length prefix, header, tensors.
func (s *Source) WriteTo(w io.Writer) (int64, error) {
	var prefix [headerLenSize]byte
	binary.LittleEndian.PutUint64(prefix[:], uint64(len(s.Header)))

	cw := &countingWriter{w: w}
	for _, part := range [][]byte{prefix[:], s.Header, s.Tensors} {
		if len(part) == 0 {
			continue
		}
		if _, err := cw.Write(part); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

// Bytes returns the encoded source file.
func (s *Source) Bytes() ([]byte, error) {
	size, err := sizing.ToInt(s.Size(), ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, headerLenSize, size)
	binary.LittleEndian.PutUint64(buf, uint64(len(s.Header)))
	buf = append(buf, s.Header...)
	return append(buf, s.Tensors...), nil
}

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
