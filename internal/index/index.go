// Package index loads and validates archive index files.
package index

import (
	"fmt"
	"iter"

	"github.com/meigma/blobpack/internal/blobtype"
	"github.com/meigma/blobpack/internal/record"
)

// Index maps payload names to their location in the data file.
//
// Entries keep index order, which is the order payloads were appended.
// An Index is immutable after Load and safe for concurrent use.
type Index struct {
	entries  []blobtype.Entry
	byName   map[string]int
	dataSize int64
}

// Load decodes index data and derives each payload's length against a data
// file of dataSize bytes.
//
// Record i spans [offset[i], offset[i+1]); the last record runs to the end of
// the data file. Every inconsistency is reported as a *blobtype.FormatError.
func Load(data []byte, dataSize int64) (*Index, error) {
	if len(data)%record.Size != 0 {
		return nil, formatErr(-1, "index is %d bytes, not a multiple of %d", len(data), record.Size)
	}
	if dataSize < 0 {
		return nil, formatErr(-1, "negative data size %d", dataSize)
	}

	n := len(data) / record.Size
	if n == 0 && dataSize > 0 {
		return nil, formatErr(-1, "data file has %d bytes but the index has no records", dataSize)
	}

	idx := &Index{
		entries:  make([]blobtype.Entry, n),
		byName:   make(map[string]int, n),
		dataSize: dataSize,
	}
	for i := range n {
		rec, err := record.Decode(data[i*record.Size : (i+1)*record.Size])
		if err != nil {
			return nil, formatErr(i, "%v", err)
		}
		if err := idx.check(i, rec); err != nil {
			return nil, err
		}
		idx.entries[i] = blobtype.Entry{
			Name:     rec.Name,
			Offset:   rec.Offset,
			Reserved: rec.Reserved,
		}
		idx.byName[rec.Name] = i
	}

	for i := range idx.entries {
		end := dataSize
		if i+1 < n {
			end = idx.entries[i+1].Offset
		}
		idx.entries[i].Length = end - idx.entries[i].Offset
	}
	return idx, nil
}

// check validates rec as record i against the records decoded before it.
func (idx *Index) check(i int, rec record.Record) error {
	switch {
	case rec.Name == "":
		return formatErr(i, "empty name")
	case rec.Offset < 0:
		return formatErr(i, "negative offset %d", rec.Offset)
	case rec.Offset > idx.dataSize:
		return formatErr(i, "offset %d beyond data size %d", rec.Offset, idx.dataSize)
	case i == 0 && rec.Offset != 0:
		return formatErr(i, "first offset is %d, want 0", rec.Offset)
	case i > 0 && rec.Offset < idx.entries[i-1].Offset:
		return formatErr(i, "offset %d precedes previous offset %d", rec.Offset, idx.entries[i-1].Offset)
	}
	if prev, ok := idx.byName[rec.Name]; ok {
		return formatErr(i, "name %q duplicates record %d", rec.Name, prev)
	}
	return nil
}

// Lookup returns the entry for name. Names are compared case-sensitively.
func (idx *Index) Lookup(name string) (blobtype.Entry, bool) {
	i, ok := idx.byName[name]
	if !ok {
		return blobtype.Entry{}, false
	}
	return idx.entries[i], true
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// DataSize returns the data file size the index was validated against.
func (idx *Index) DataSize() int64 {
	return idx.dataSize
}

// Entries returns an iterator over all entries in index order.
func (idx *Index) Entries() iter.Seq[blobtype.Entry] {
	return func(yield func(blobtype.Entry) bool) {
		for _, e := range idx.entries {
			if !yield(e) {
				return
			}
		}
	}
}

func formatErr(i int, format string, args ...any) error {
	return &blobtype.FormatError{Record: i, Reason: fmt.Sprintf(format, args...)}
}
