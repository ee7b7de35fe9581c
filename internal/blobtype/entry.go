package blobtype

// Entry describes one payload stored in an archive.
type Entry struct {
	// Name is the payload's logical name, the stem of its source file.
	Name string

	// Offset is the byte offset in the data file where the payload begins.
	Offset int64

	// Length is the payload size in bytes. It is not stored in the index;
	// readers derive it from the next record's offset or the data file size.
	Length int64

	// Reserved is the record's leading 8-byte field. Builders write zero and
	// nothing interprets it, but it is carried through unchanged.
	Reserved int64
}

// End returns the offset one past the payload's last byte.
func (e Entry) End() int64 {
	return e.Offset + e.Length
}
