// Package record encodes and decodes fixed-size index records.
//
// Each record is 92 bytes, little-endian:
//
//	[0:8)   reserved  int64, written as zero
//	[8:12)  offset    int32, byte offset of the payload in the data file
//	[12:92) name      payload name, left-justified, zero padded
package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/meigma/blobpack/internal/blobtype"
)

const (
	// NameSize is the width of the name field in bytes.
	NameSize = 80

	// Size is the encoded size of one record.
	Size = reservedSize + offsetSize + NameSize

	// MaxOffset is the largest offset the 32-bit offset field can hold.
	MaxOffset = math.MaxInt32

	reservedSize = 8
	offsetSize   = 4
	nameStart    = reservedSize + offsetSize
)

// Record is the decoded form of one index record.
type Record struct {
	Reserved int64
	Offset   int64
	Name     string
}

// ValidateName reports whether name can be stored and recovered exactly.
func ValidateName(name string) error {
	if len(name) > NameSize {
		return fmt.Errorf("%w: %q is %d bytes, limit is %d", blobtype.ErrNameTooLong, name, len(name), NameSize)
	}
	if name == "" {
		return fmt.Errorf("%w: empty name", blobtype.ErrInvalidName)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: %q contains a NUL byte", blobtype.ErrInvalidName, name)
	}
	if last := name[len(name)-1]; last == ' ' {
		return fmt.Errorf("%w: %q ends in padding", blobtype.ErrInvalidName, name)
	}
	return nil
}

// AppendEncoded appends the encoding of r to dst.
// Names are never truncated; an oversized name is an error.
func AppendEncoded(dst []byte, r Record) ([]byte, error) {
	if err := ValidateName(r.Name); err != nil {
		return dst, err
	}
	if r.Offset < 0 || r.Offset > MaxOffset {
		return dst, fmt.Errorf("%w: offset %d does not fit the index", blobtype.ErrSizeOverflow, r.Offset)
	}

	var buf [Size]byte
	binary.LittleEndian.PutUint64(buf[0:reservedSize], uint64(r.Reserved)) //nolint:gosec // bit pattern is preserved
	binary.LittleEndian.PutUint32(buf[reservedSize:nameStart], uint32(r.Offset))
	copy(buf[nameStart:], r.Name)
	return append(dst, buf[:]...), nil
}

// Encode returns the 92-byte encoding of r.
func Encode(r Record) ([]byte, error) {
	return AppendEncoded(make([]byte, 0, Size), r)
}

// Decode parses exactly one record.
// The name ends at the first NUL byte; trailing spaces are trimmed. Bytes
// after the NUL are padding of any content.
func Decode(buf []byte) (Record, error) {
	if len(buf) != Size {
		return Record{}, fmt.Errorf("%w: record is %d bytes, want %d", blobtype.ErrFormat, len(buf), Size)
	}
	name := buf[nameStart:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	reserved := binary.LittleEndian.Uint64(buf[0:reservedSize])
	offset := int32(binary.LittleEndian.Uint32(buf[reservedSize:nameStart])) //nolint:gosec // signed on disk
	return Record{
		Reserved: int64(reserved), //nolint:gosec // bit pattern is preserved
		Offset:   int64(offset),
		Name:     string(bytes.TrimRight(name, " ")),
	}, nil
}
