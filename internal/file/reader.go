// Package file reads payload bytes from a data source.
package file

import (
	"errors"
	"fmt"
	"io"

	"github.com/meigma/blobpack/internal/blobtype"
	"github.com/meigma/blobpack/internal/sizing"
)

// DefaultMaxPayloadSize is the default maximum payload size (256MB).
const DefaultMaxPayloadSize = 256 << 20

// ByteSource provides random access to the data file.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// Reader reads payloads from a ByteSource.
type Reader struct {
	source         ByteSource
	maxPayloadSize int64
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxPayloadSize sets the maximum payload size limit.
// Set to 0 to disable the limit.
func WithMaxPayloadSize(limit int64) Option {
	return func(r *Reader) {
		r.maxPayloadSize = limit
	}
}

// NewReader creates a Reader for reading payloads from the given source.
func NewReader(source ByteSource, opts ...Option) *Reader {
	r := &Reader{
		source:         source,
		maxPayloadSize: DefaultMaxPayloadSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Source returns the underlying ByteSource.
func (r *Reader) Source() ByteSource {
	return r.source
}

// Validate checks that entry lies within the source and under the size limit.
func (r *Reader) Validate(entry *blobtype.Entry) error {
	if entry.Offset < 0 || entry.Length < 0 {
		return fmt.Errorf("%w: negative range", blobtype.ErrFormat)
	}
	if r.maxPayloadSize > 0 && entry.Length > r.maxPayloadSize {
		return fmt.Errorf("%w: payload is %d bytes, limit is %d", blobtype.ErrSizeOverflow, entry.Length, r.maxPayloadSize)
	}
	end, ok := sizing.AddInt64(entry.Offset, entry.Length)
	if !ok {
		return blobtype.ErrSizeOverflow
	}
	if end > r.source.Size() {
		return fmt.Errorf("%w: payload ends at %d beyond data size %d", blobtype.ErrFormat, end, r.source.Size())
	}
	return nil
}

// ReadAll reads exactly entry.Length bytes starting at entry.Offset.
func (r *Reader) ReadAll(entry *blobtype.Entry) ([]byte, error) {
	if err := r.Validate(entry); err != nil {
		return nil, err
	}
	size, err := sizing.ToInt(entry.Length, blobtype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	content := make([]byte, size)
	if size == 0 {
		return content, nil
	}

	n, err := r.source.ReadAt(content, entry.Offset)
	if n == size {
		// io.ReaderAt may return io.EOF alongside a full read at the end of the source.
		return content, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("short read (%d of %d bytes): %w", n, size, err)
}
