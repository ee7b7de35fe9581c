package blobpack

import (
	"github.com/meigma/blobpack/internal/blobtype"
	"github.com/meigma/blobpack/internal/file"
	"github.com/meigma/blobpack/internal/record"
	"github.com/meigma/blobpack/internal/scan"
)

// --- Re-exports from internal packages ---

type (
	// Entry describes one payload in an archive.
	Entry = blobtype.Entry

	// ByteSource provides random access to the data file.
	//
	// Implementations exist for local files and HTTP range requests.
	// SourceID must return a stable identifier for the underlying content.
	ByteSource = file.ByteSource

	// ProgressEvent represents a progress update during archive creation.
	ProgressEvent = blobtype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = blobtype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = blobtype.ProgressFunc

	// SkipReason explains why a directory entry was not archived.
	SkipReason = scan.SkipReason
)

// Progress stage constants.
const (
	StageEnumerating = blobtype.StageEnumerating
	StageWriting     = blobtype.StageWriting
)

// Skip reasons.
const (
	SkipDirectory  = scan.SkipDirectory
	SkipNotRegular = scan.SkipNotRegular
	SkipExtension  = scan.SkipExtension
	SkipSelf       = scan.SkipSelf
)

// Format constants.
const (
	// RecordSize is the encoded size of one index record.
	RecordSize = record.Size

	// MaxNameLen is the longest payload name, in bytes.
	MaxNameLen = record.NameSize

	// MaxOffset is the largest payload offset an index record can hold.
	MaxOffset = record.MaxOffset
)

// Conventional file names.
const (
	// DefaultExtension is the payload file extension the builder collects.
	DefaultExtension = ".dat"

	// DataSuffix is appended to the archive base name to form the data file name.
	DataSuffix = ".dat"

	// IndexSuffix is appended to the archive base name to form the index file name.
	IndexSuffix = ".index"
)

// DataName returns the data file name for an archive base name.
func DataName(base string) string { return base + DataSuffix }

// IndexName returns the index file name for an archive base name.
func IndexName(base string) string { return base + IndexSuffix }
