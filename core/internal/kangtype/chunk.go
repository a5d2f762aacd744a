package kangtype

// ChunkInfo describes one compressed tensor chunk.
//
// Chunks carry no index of their own; their position in the chunk table
// is their identity.
type ChunkInfo struct {
	// OriginalSize is the number of tensor bytes the chunk covers.
	OriginalSize uint64

	// CompressedSize is the number of bytes the chunk occupies in the
	// compressed tensor block.
	CompressedSize uint64
}
