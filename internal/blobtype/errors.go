package blobtype

import (
	"errors"
	"fmt"
)

// Sentinel errors for archive operations.
var (
	// ErrFormat is returned when an index or data file violates the archive layout.
	ErrFormat = errors.New("blobpack: malformed archive")

	// ErrNotFound is returned when a name is not present in the index.
	ErrNotFound = errors.New("blobpack: payload not found")

	// ErrInvalidState is returned when an operation is not valid for the
	// current state of an archive handle.
	ErrInvalidState = errors.New("blobpack: invalid handle state")

	// ErrNameTooLong is returned when a payload name does not fit the
	// fixed-width name field.
	ErrNameTooLong = errors.New("blobpack: name too long")

	// ErrInvalidName is returned when a payload name is empty or contains
	// bytes that cannot survive padding removal.
	ErrInvalidName = errors.New("blobpack: invalid name")

	// ErrDuplicateName is returned when two payloads share a name.
	ErrDuplicateName = errors.New("blobpack: duplicate name")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("blobpack: size overflow")
)

// IOError records a failed file operation and the path it applied to.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return "blobpack: " + e.Op + ": " + e.Err.Error()
	}
	return "blobpack: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// FormatError describes an index that violates the archive layout.
// Record is the zero-based record number, or -1 when the problem is not
// tied to one record.
type FormatError struct {
	Path   string
	Record int
	Reason string
}

func (e *FormatError) Error() string {
	msg := "blobpack: malformed archive"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Record >= 0 {
		msg += fmt.Sprintf(": record %d", e.Record)
	}
	return msg + ": " + e.Reason
}

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }
