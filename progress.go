package littleexport

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageEnumerating indicates sources are being walked.
	StageEnumerating ProgressStage = iota

	// StageArchiving indicates entries are being framed, compressed and
	// written to the sink.
	StageArchiving

	// StageRestoring indicates decoded entries are being dispatched to
	// consumers.
	StageRestoring
)

func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageArchiving:
		return "archiving"
	case StageRestoring:
		return "restoring"
	default:
		return "unknown"
	}
}

// ProgressEvent represents a progress update during export or import.
type ProgressEvent struct {
	Stage ProgressStage

	// Path is the full archive path of the entry being processed, empty
	// for stage-transition events.
	Path string

	// BytesDone is the cumulative payload bytes processed so far.
	BytesDone uint64

	// EntriesDone is the number of entries fully processed so far.
	EntriesDone int
}

// ProgressFunc receives progress updates during operations. Calls are
// made from the pipeline's own goroutine; implementations should return
// quickly to avoid stalling the stream.
type ProgressFunc func(ProgressEvent)
