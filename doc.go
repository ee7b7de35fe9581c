// Package blobpack implements a named blob archive: many small payloads
// concatenated into one data file, located through an index of fixed-size
// records.
//
// An archive is a pair of files:
//   - Data file (<base>.dat): payload bytes back to back, no header, no padding
//   - Index file (<base>.index): one 92-byte record per payload holding a
//     reserved int64, the payload's int32 offset and its 80-byte name
//
// Payload lengths are not stored. A reader derives them from successive
// offsets, so records are always kept in append order.
//
// # Building
//
//	stats, err := blobpack.Build(ctx, "./targets", "targets")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d records written\n", stats.Records)
//
// # Reading
//
//	a, err := blobpack.OpenBase("./targets", "targets")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	payload, err := a.Lookup("yeast")
//
// An Archive is safe for concurrent lookups. Archives are immutable once
// built; there is no update-in-place.
package blobpack
