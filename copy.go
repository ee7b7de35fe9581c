package blobpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// CopyOption configures CopyTo.
type CopyOption func(*copyConfig)

type copyConfig struct {
	extension string
	overwrite bool
	workers   int
}

// CopyWithExtension sets the extension appended to each payload name to form
// its file name. Defaults to DefaultExtension, so extracting an archive
// reproduces a directory that builds the same archive.
func CopyWithExtension(ext string) CopyOption {
	return func(c *copyConfig) {
		c.extension = ext
	}
}

// CopyWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func CopyWithOverwrite(overwrite bool) CopyOption {
	return func(c *copyConfig) {
		c.overwrite = overwrite
	}
}

// CopyWithWorkers sets the number of concurrent lookups.
// Values <= 0 use GOMAXPROCS.
func CopyWithWorkers(n int) CopyOption {
	return func(c *copyConfig) {
		c.workers = n
	}
}

// CopyStats contains statistics about a copy operation.
type CopyStats struct {
	// FileCount is the number of files written.
	FileCount int

	// TotalBytes is the payload bytes written.
	TotalBytes int64

	// Skipped is the number of files left alone because they already existed.
	Skipped int
}

// CopyTo extracts payloads into destDir as <name><ext> files.
//
// With no names, every payload is extracted. Files are written atomically
// using temp files and renames, and payloads are streamed rather than loaded
// into memory. A payload name that is not a plain file name (for example one
// containing a path separator or "..") is rejected with fs.ErrInvalid before
// anything is written outside destDir.
func (a *Archive) CopyTo(ctx context.Context, destDir string, names []string, opts ...CopyOption) (CopyStats, error) {
	cfg := copyConfig{extension: DefaultExtension}
	for _, opt := range opts {
		opt(&cfg)
	}
	workers := cfg.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	a.mu.RLock()
	err := a.checkOpen()
	a.mu.RUnlock()
	if err != nil {
		return CopyStats{}, fmt.Errorf("copy: %w", err)
	}

	if len(names) == 0 {
		for e := range a.Entries() {
			names = append(names, e.Name)
		}
	}
	for _, name := range names {
		if !isPlainName(name + cfg.extension) {
			return CopyStats{}, &fs.PathError{Op: "copy", Path: name, Err: fs.ErrInvalid}
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil { //nolint:gosec // extracted payloads are not secret
		return CopyStats{}, err
	}

	var (
		files   atomic.Int64
		written atomic.Int64
		skipped atomic.Int64
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, name := range names {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, wrote, err := a.copyOne(destDir, name, &cfg)
			if err != nil {
				return err
			}
			if !wrote {
				skipped.Add(1)
				return nil
			}
			files.Add(1)
			written.Add(n)
			return nil
		})
	}
	err = eg.Wait()

	stats := CopyStats{
		FileCount:  int(files.Load()),
		TotalBytes: written.Load(),
		Skipped:    int(skipped.Load()),
	}
	a.log().Debug("copied payloads", "dest", destDir, "files", stats.FileCount, "bytes", stats.TotalBytes, "skipped", stats.Skipped)
	return stats, err
}

// copyOne extracts a single payload. It reports whether a file was written.
func (a *Archive) copyOne(destDir, name string, cfg *copyConfig) (int64, bool, error) {
	destPath := filepath.Join(destDir, name+cfg.extension)
	if !cfg.overwrite {
		if _, err := os.Lstat(destPath); err == nil {
			return 0, false, nil
		}
	}

	section, err := a.Section(name)
	if err != nil {
		return 0, false, err
	}
	n, err := writeFileAtomic(section, destPath, cfg.overwrite)
	if err != nil {
		return 0, false, &fs.PathError{Op: "copy", Path: destPath, Err: err}
	}
	return n, true, nil
}

// writeFileAtomic writes content from src to destPath using a temp file and rename.
func writeFileAtomic(src io.Reader, destPath string, overwrite bool) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".blobpack-")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, src)
	if err != nil {
		return 0, fmt.Errorf("copying content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}

	if overwrite {
		if info, err := os.Lstat(destPath); err == nil && info.IsDir() {
			return 0, errors.New("is a directory")
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("renaming to destination: %w", err)
	}

	success = true
	return n, nil
}

// isPlainName reports whether name is a single local path element.
func isPlainName(name string) bool {
	return filepath.IsLocal(name) && filepath.Base(name) == name && name != "."
}
