package blobtype

// ProgressEvent represents a progress update during archive creation.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Name is the payload currently being processed, if applicable.
	Name string

	// BytesDone is the number of payload bytes appended so far.
	BytesDone uint64

	// RecordsDone is the number of index records written so far.
	RecordsDone int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageEnumerating indicates the source directory is being listed.
	StageEnumerating ProgressStage = iota

	// StageWriting indicates payloads are being appended.
	StageWriting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
type ProgressFunc func(ProgressEvent)
