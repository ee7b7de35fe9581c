package blobpack

import (
	"fmt"
	"os"
	"path/filepath"
)

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so we cache the size at construction.
type fileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// newFileSource creates a fileSource from an open data file.
func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, &IOError{Op: "stat", Path: f.Name(), Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &IOError{Op: "open", Path: f.Name(), Err: fmt.Errorf("data file is not a regular file")}
	}
	return &fileSource{file: f, size: info.Size(), sourceID: fileSourceID(f.Name(), info)}, nil
}

// ReadAt implements io.ReaderAt.
func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Size returns the size of the data file when it was opened.
func (s *fileSource) Size() int64 {
	return s.size
}

// SourceID identifies the file by absolute path, size and modification time,
// so a rebuilt archive at the same path gets a new identity.
func (s *fileSource) SourceID() string {
	return s.sourceID
}

func fileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

// Interface compliance for fileSource.
var _ ByteSource = (*fileSource)(nil)
