package kangtype

// ProgressEvent represents a progress update during compression or decompression.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the file currently being processed, if known.
	Path string

	// BytesDone is the number of uncompressed bytes completed so far.
	BytesDone uint64

	// BytesTotal is the total uncompressed bytes for the operation.
	// Zero indicates the total is unknown.
	BytesTotal uint64

	// ChunksDone is the number of tensor chunks completed.
	ChunksDone int

	// ChunksTotal is the total number of tensor chunks.
	ChunksTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for compression and decompression.
const (
	// StageReading indicates the input file is being read.
	StageReading ProgressStage = iota

	// StageCompressing indicates chunks are being compressed.
	StageCompressing

	// StageDecompressing indicates chunks are being decompressed.
	StageDecompressing

	// StageWriting indicates the output file is being written.
	StageWriting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageReading:
		return "reading"
	case StageCompressing:
		return "compressing"
	case StageDecompressing:
		return "decompressing"
	case StageWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
