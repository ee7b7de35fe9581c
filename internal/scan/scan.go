// Package scan enumerates and classifies payload candidates in a source directory.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SkipReason explains why a directory entry is not archived.
type SkipReason uint8

const (
	// SkipDirectory marks subdirectories; the builder does not recurse.
	SkipDirectory SkipReason = iota + 1

	// SkipNotRegular marks symlinks, devices, sockets and pipes.
	SkipNotRegular

	// SkipExtension marks files without the payload extension.
	SkipExtension

	// SkipSelf marks the archive's own stub, whose stem equals the archive base name.
	SkipSelf
)

// String returns the string representation of the reason.
func (r SkipReason) String() string {
	switch r {
	case SkipDirectory:
		return "directory"
	case SkipNotRegular:
		return "not regular"
	case SkipExtension:
		return "extension"
	case SkipSelf:
		return "archive stub"
	default:
		return "unknown"
	}
}

// Candidate is a file selected for archiving.
type Candidate struct {
	// File is the entry's name within the source directory.
	File string
	// Stem is File without its extension; it becomes the payload name.
	Stem string
}

// Skip records an entry that was classified as not archivable.
type Skip struct {
	File   string
	Reason SkipReason
}

// Result is a classified snapshot of a directory listing.
type Result struct {
	Candidates []Candidate
	Skipped    []Skip
}

// Rules decide which directory entries are payloads.
type Rules struct {
	// Extension is the payload extension including the dot, matched case-insensitively.
	Extension string
	// Base is the archive base name; a payload with this stem is the archive stub.
	Base string
}

// Classify decides whether a single entry is a payload.
func (r Rules) Classify(d fs.DirEntry) (Candidate, SkipReason) {
	name := d.Name()
	switch {
	case d.IsDir():
		return Candidate{}, SkipDirectory
	case !d.Type().IsRegular():
		return Candidate{}, SkipNotRegular
	}

	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, r.Extension) {
		return Candidate{}, SkipExtension
	}
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		// A dotfile such as ".dat" has no extension, only a name.
		return Candidate{}, SkipExtension
	}
	if r.Base != "" && strings.EqualFold(stem, r.Base) {
		return Candidate{}, SkipSelf
	}
	return Candidate{File: name, Stem: stem}, 0
}

// Dir lists the top level of root and classifies every entry.
//
// Entries are returned in the order the operating system lists them; no
// sorting is applied.
func Dir(root *os.Root, rules Rules) (Result, error) {
	d, err := root.Open(".")
	if err != nil {
		return Result{}, err
	}
	defer d.Close()

	// File.ReadDir preserves directory order, unlike os.ReadDir.
	entries, err := d.ReadDir(-1)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, e := range entries {
		c, reason := rules.Classify(e)
		if reason != 0 {
			res.Skipped = append(res.Skipped, Skip{File: e.Name(), Reason: reason})
			continue
		}
		res.Candidates = append(res.Candidates, c)
	}
	return res, nil
}
