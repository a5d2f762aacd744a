// Package kang converts tensor weight files into compact chunked archives
// and back.
//
// A source file is an 8-byte little-endian header length, a header blob
// (typically JSON) and raw tensor bytes. Compression splits the tensor
// bytes into fixed-size chunks and compresses each one independently with
// a block codec. The archive records the compressed header, a table of
// (original, compressed) sizes per chunk and the concatenated compressed
// chunks:
//
//	offset  field
//	0       signature "KANGCOMP"           8 bytes
//	8       compressed header size N       uint64 LE
//	16      compressed header              N bytes
//	16+N    chunk count C                  uint64 LE
//	24+N    chunk table                    C × (original uint64 LE, compressed uint64 LE)
//	...     compressed tensor block        to end of file
//
// Chunk boundaries inside the tensor block are derived from the chunk table
// alone. Decompression validates every chunk's decoded size against the
// table and fails the whole file on any mismatch; it never returns partial
// tensor data.
package kang
