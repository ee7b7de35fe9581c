package blobpack

import (
	"errors"

	"github.com/meigma/blobpack/internal/blobtype"
	"github.com/meigma/blobpack/internal/platform"
)

// Errors re-exported from internal/blobtype.
var (
	// ErrFormat is returned when an index file violates the archive layout.
	// Open returns it wrapped in a *FormatError.
	ErrFormat = blobtype.ErrFormat

	// ErrNotFound is returned by Lookup when a name is not in the index.
	ErrNotFound = blobtype.ErrNotFound

	// ErrInvalidState is returned when an operation does not fit the
	// handle's state. ErrNotOpen and ErrClosed both match it.
	ErrInvalidState = blobtype.ErrInvalidState

	// ErrNameTooLong is returned when a payload stem exceeds the 80-byte name field.
	ErrNameTooLong = blobtype.ErrNameTooLong

	// ErrInvalidName is returned for names that cannot round-trip through the
	// padded name field.
	ErrInvalidName = blobtype.ErrInvalidName

	// ErrDuplicateName is returned when two payloads in one build share a stem.
	ErrDuplicateName = blobtype.ErrDuplicateName

	// ErrSizeOverflow is returned when offsets or sizes exceed supported limits.
	ErrSizeOverflow = blobtype.ErrSizeOverflow

	// ErrSymlink is returned when a payload path is a symbolic link.
	ErrSymlink = platform.ErrSymlink
)

// State errors.
var (
	// ErrNotOpen is returned when a handle is used before Open.
	ErrNotOpen = &stateError{msg: "blobpack: archive not open"}

	// ErrClosed is returned when a handle is used after Close.
	ErrClosed = &stateError{msg: "blobpack: archive closed"}
)

// ErrTooManyFiles is returned when the payload count exceeds the configured limit.
var ErrTooManyFiles = errors.New("blobpack: too many files")

// IOError records a failed open, read or write and the path involved.
type IOError = blobtype.IOError

// FormatError describes a malformed index. It matches ErrFormat.
type FormatError = blobtype.FormatError

type stateError struct{ msg string }

func (e *stateError) Error() string { return e.msg }

func (e *stateError) Is(target error) bool { return target == ErrInvalidState }
