package blobpack

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/blobpack/internal/platform"
	"github.com/meigma/blobpack/internal/record"
	"github.com/meigma/blobpack/internal/scan"
)

// Stats summarizes a completed build.
type Stats struct {
	// Records is the number of index records written.
	Records int

	// Bytes is the size of the data file.
	Bytes int64

	// Skipped counts directory entries that were not archived, by reason.
	Skipped map[SkipReason]int
}

// Create builds an archive from the payload files directly inside dir.
//
// Payloads are appended to dataW in the order the directory lists them and
// one 92-byte record per payload is written to indexW. No sorting is applied;
// readers must only rely on index order matching append order.
//
// Every name is validated before any bytes are written: a stem longer than
// MaxNameLen, an unencodable stem, or two candidates sharing a stem fail the
// build with an *IOError wrapping ErrNameTooLong, ErrInvalidName or
// ErrDuplicateName. Names are never truncated.
//
// Subdirectories are not descended into and symbolic links are not followed.
// The context is checked between payloads.
func Create(ctx context.Context, dir string, indexW, dataW io.Writer, opts ...CreateOption) (Stats, error) {
	cfg := newCreateConfig(opts)
	w := &writer{cfg: cfg, indexName: "index", dataName: "data"}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return Stats{}, &IOError{Op: "open", Path: dir, Err: err}
	}
	defer root.Close()

	listing, err := w.list(root, dir)
	if err != nil {
		return Stats{}, err
	}
	return w.write(ctx, root, listing, indexW, dataW)
}

// Build creates <dir>/<base>.index and <dir>/<base>.dat from the payload
// files in dir. The base name also marks the archive stub that is excluded
// from indexing.
//
// See BuildPaths for the file handling guarantees.
func Build(ctx context.Context, dir, base string, opts ...CreateOption) (Stats, error) {
	opts = append([]CreateOption{CreateWithBase(base)}, opts...)
	return BuildPaths(ctx, dir, filepath.Join(dir, IndexName(base)), filepath.Join(dir, DataName(base)), opts...)
}

// BuildPaths creates an archive at explicit index and data paths.
//
// The directory listing is taken before the output files are created, so an
// archive written into its own source directory never indexes itself. Both
// files are flushed and closed on every return path. Existing files are
// truncated. There is no staging: a failed build leaves files that must be
// discarded, and concurrent builds to the same paths corrupt each other.
func BuildPaths(ctx context.Context, dir, indexPath, dataPath string, opts ...CreateOption) (stats Stats, err error) {
	cfg := newCreateConfig(opts)
	w := &writer{cfg: cfg, indexName: indexPath, dataName: dataPath}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return Stats{}, &IOError{Op: "open", Path: dir, Err: err}
	}
	defer root.Close()

	listing, err := w.list(root, dir)
	if err != nil {
		return Stats{}, err
	}

	indexFile, err := createOutput(indexPath)
	if err != nil {
		return Stats{}, err
	}
	defer func() { err = errors.Join(err, closeOutput(indexFile, indexPath)) }()

	dataFile, err := createOutput(dataPath)
	if err != nil {
		return Stats{}, err
	}
	defer func() { err = errors.Join(err, closeOutput(dataFile, dataPath)) }()

	indexBuf := bufio.NewWriter(indexFile)
	dataBuf := bufio.NewWriterSize(dataFile, 256<<10)
	defer func() {
		if ferr := indexBuf.Flush(); ferr != nil {
			err = errors.Join(err, &IOError{Op: "write", Path: indexPath, Err: ferr})
		}
		if ferr := dataBuf.Flush(); ferr != nil {
			err = errors.Join(err, &IOError{Op: "write", Path: dataPath, Err: ferr})
		}
	}()

	return w.write(ctx, root, listing, indexBuf, dataBuf)
}

func createOutput(path string) (*os.File, error) {
	f, err := os.Create(path) //nolint:gosec // caller-chosen output path
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}
	return f, nil
}

func closeOutput(f *os.File, path string) error {
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// writer holds state for archive creation.
type writer struct {
	cfg       createConfig
	indexName string
	dataName  string
	buf       []byte
}

// log returns the logger, falling back to a discard logger if nil.
func (w *writer) log() *slog.Logger {
	if w.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.cfg.logger
}

// reportProgress sends a progress event if a callback is configured.
func (w *writer) reportProgress(stage ProgressStage, name string, bytesDone int64, recordsDone int) {
	if w.cfg.progress == nil {
		return
	}
	w.cfg.progress(ProgressEvent{
		Stage:       stage,
		Name:        name,
		BytesDone:   uint64(bytesDone), //nolint:gosec // cursor is never negative
		RecordsDone: recordsDone,
	})
}

// list snapshots and classifies the source directory, then validates every
// candidate name so no bytes are written for a build that cannot succeed.
func (w *writer) list(root *os.Root, dir string) (scan.Result, error) {
	w.log().Info("creating archive", "dir", dir, "extension", w.cfg.extension, "base", w.cfg.base)
	w.reportProgress(StageEnumerating, "", 0, 0)

	listing, err := scan.Dir(root, scan.Rules{Extension: w.cfg.extension, Base: w.cfg.base})
	if err != nil {
		return scan.Result{}, &IOError{Op: "list", Path: dir, Err: err}
	}
	for _, s := range listing.Skipped {
		w.log().Debug("skipped entry", "file", s.File, "reason", s.Reason.String())
	}

	if w.cfg.maxFiles > 0 && len(listing.Candidates) > w.cfg.maxFiles {
		return scan.Result{}, &IOError{Op: "list", Path: dir, Err: ErrTooManyFiles}
	}

	seen := make(map[string]string, len(listing.Candidates))
	for _, c := range listing.Candidates {
		if err := record.ValidateName(c.Stem); err != nil {
			return scan.Result{}, &IOError{Op: "index", Path: c.File, Err: err}
		}
		if prev, ok := seen[c.Stem]; ok {
			return scan.Result{}, &IOError{
				Op:   "index",
				Path: c.File,
				Err:  fmt.Errorf("%w: %q is also the stem of %s", ErrDuplicateName, c.Stem, prev),
			}
		}
		seen[c.Stem] = c.File
	}
	return listing, nil
}

// write appends every candidate and its index record.
func (w *writer) write(ctx context.Context, root *os.Root, listing scan.Result, indexW, dataW io.Writer) (Stats, error) {
	stats := Stats{Skipped: make(map[SkipReason]int)}
	for _, s := range listing.Skipped {
		stats.Skipped[s.Reason]++
	}

	w.buf = make([]byte, 32*1024)
	rec := make([]byte, 0, record.Size)
	var cursor int64
	for _, c := range listing.Candidates {
		if err := ctx.Err(); err != nil {
			return stats, &IOError{Op: "build", Path: w.dataName, Err: err}
		}

		var err error
		rec, err = record.AppendEncoded(rec[:0], record.Record{Offset: cursor, Name: c.Stem})
		if err != nil {
			return stats, &IOError{Op: "index", Path: c.File, Err: err}
		}
		if _, err := indexW.Write(rec); err != nil {
			return stats, &IOError{Op: "write", Path: w.indexName, Err: err}
		}

		n, err := w.appendPayload(root, c, dataW)
		if err != nil {
			return stats, err
		}

		cursor += n
		stats.Records++
		stats.Bytes = cursor
		w.log().Debug("appended payload", "name", c.Stem, "offset", cursor-n, "length", n)
		w.reportProgress(StageWriting, c.Stem, cursor, stats.Records)
	}

	w.log().Info("archive written", "records", stats.Records, "bytes", stats.Bytes)
	return stats, nil
}

// appendPayload copies one candidate's full contents to data.
func (w *writer) appendPayload(root *os.Root, c scan.Candidate, data io.Writer) (int64, error) {
	f, _, err := platform.OpenRegular(root, c.File)
	if err != nil {
		return 0, &IOError{Op: "open", Path: c.File, Err: err}
	}
	defer f.Close()

	n, err := io.CopyBuffer(taggedWriter{data}, struct{ io.Reader }{f}, w.buf)
	if err != nil {
		if werr := (*writeError)(nil); errors.As(err, &werr) {
			return n, &IOError{Op: "write", Path: w.dataName, Err: werr.err}
		}
		if errors.Is(err, io.ErrShortWrite) {
			return n, &IOError{Op: "write", Path: w.dataName, Err: err}
		}
		return n, &IOError{Op: "read", Path: c.File, Err: err}
	}
	return n, nil
}

// writeError marks failures of the destination during a copy.
type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }

func (e *writeError) Unwrap() error { return e.err }

// taggedWriter wraps write failures in *writeError so they can be told apart
// from read failures of the source file.
type taggedWriter struct{ w io.Writer }

func (t taggedWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		return n, &writeError{err: err}
	}
	return n, nil
}
