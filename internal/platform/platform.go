// Package platform isolates the OS-specific parts of opening payload files.
package platform

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSymlink is returned when a payload path is a symbolic link.
	ErrSymlink = errors.New("symbolic links not supported")

	// ErrNotRegular is returned when a payload path is not a regular file.
	ErrNotRegular = errors.New("not a regular file")
)

// OpenRegular opens name beneath root for reading and checks that it is a
// regular file. Symbolic links are never followed.
func OpenRegular(root *os.Root, name string) (*os.File, os.FileInfo, error) {
	f, err := openNoFollow(root, name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, ErrNotRegular)
	}
	return f, info, nil
}
