package blobpack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/blobpack/cache"
	"github.com/meigma/blobpack/internal/file"
	"github.com/meigma/blobpack/internal/index"
)

type state uint8

const (
	stateUnopened state = iota
	stateOpen
	stateClosed
)

// Archive is a read-only handle on a built archive.
//
// The zero value is an unopened handle; call Open on it, or use the Open,
// OpenBase or New constructors. The name table is loaded once and kept for
// the handle's lifetime; payload bytes are read on every Lookup unless a
// cache is configured with WithCache.
//
// An open Archive is safe for concurrent use. Close waits for in-flight
// lookups to finish.
type Archive struct {
	mu       sync.RWMutex
	state    state
	cfg      readConfig
	idx      *index.Index
	reader   *file.Reader
	dataName string
	closer   io.Closer
	group    singleflight.Group
}

// Open opens the archive stored in indexPath and dataPath.
//
// The index is read fully and validated against the data file before Open
// returns: a malformed index fails with a *FormatError, never later during a
// lookup. File system failures are reported as *IOError.
func Open(indexPath, dataPath string, opts ...Option) (*Archive, error) {
	a := &Archive{}
	if err := a.Open(indexPath, dataPath, opts...); err != nil {
		return nil, err
	}
	return a, nil
}

// OpenBase opens <dir>/<base>.index and <dir>/<base>.dat.
func OpenBase(dir, base string, opts ...Option) (*Archive, error) {
	return Open(filepath.Join(dir, IndexName(base)), filepath.Join(dir, DataName(base)), opts...)
}

// New opens an archive from index bytes and a data source.
//
// The source is not closed by Close; its lifetime belongs to the caller.
func New(indexData []byte, source ByteSource, opts ...Option) (*Archive, error) {
	if source == nil {
		return nil, &IOError{Op: "open", Err: fmt.Errorf("nil data source: %w", fs.ErrInvalid)}
	}
	a := &Archive{}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.load(indexData, source, source.SourceID(), opts); err != nil {
		return nil, err
	}
	return a, nil
}

// Open transitions an unopened handle to the open state.
//
// Open may be called once per handle. Calling it on a handle that is already
// open, or has been closed, fails with an error matching ErrInvalidState.
func (a *Archive) Open(indexPath, dataPath string, opts ...Option) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case stateOpen:
		return fmt.Errorf("%w: archive already open", ErrInvalidState)
	case stateClosed:
		return ErrClosed
	}

	indexData, err := os.ReadFile(indexPath) //nolint:gosec // caller-chosen archive path
	if err != nil {
		return &IOError{Op: "read", Path: indexPath, Err: err}
	}

	dataFile, err := os.Open(dataPath) //nolint:gosec // caller-chosen archive path
	if err != nil {
		return &IOError{Op: "open", Path: dataPath, Err: err}
	}
	source, err := newFileSource(dataFile)
	if err != nil {
		dataFile.Close()
		return err
	}

	if err := a.load(indexData, source, dataPath, opts); err != nil {
		dataFile.Close()
		var ferr *FormatError
		if errors.As(err, &ferr) && ferr.Path == "" {
			ferr.Path = indexPath
		}
		return err
	}
	a.closer = dataFile
	return nil
}

// load validates the index against source and moves the handle to open.
// Callers must hold a.mu.
func (a *Archive) load(indexData []byte, source ByteSource, dataName string, opts []Option) error {
	a.cfg = newReadConfig(opts)

	idx, err := index.Load(indexData, source.Size())
	if err != nil {
		return err
	}

	a.idx = idx
	a.reader = file.NewReader(source, file.WithMaxPayloadSize(a.cfg.maxPayloadSize))
	a.dataName = dataName
	a.state = stateOpen
	a.log().Debug("archive opened", "data", dataName, "records", idx.Len(), "data_size", idx.DataSize())
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.cfg.logger
}

// checkOpen reports the state error for handles that cannot serve reads.
// Callers must hold a.mu for reading.
func (a *Archive) checkOpen() error {
	switch a.state {
	case stateUnopened:
		return ErrNotOpen
	case stateClosed:
		return ErrClosed
	default:
		return nil
	}
}

// Lookup returns the bytes of the named payload.
//
// Exactly the payload's own byte range is read from the data file with a
// single positioned read. Lookup fails with an error matching ErrNotFound for
// names absent from the index, and with ErrNotOpen or ErrClosed (both
// matching ErrInvalidState) when the handle is not open.
func (a *Archive) Lookup(name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.checkOpen(); err != nil {
		return nil, fmt.Errorf("lookup %q: %w", name, err)
	}
	entry, ok := a.idx.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	if a.cfg.cache != nil {
		return a.lookupCached(&entry)
	}
	return a.readEntry(&entry)
}

func (a *Archive) readEntry(entry *Entry) ([]byte, error) {
	content, err := a.reader.ReadAll(entry)
	if err != nil {
		return nil, &IOError{Op: "read", Path: a.dataName, Err: fmt.Errorf("payload %q: %w", entry.Name, err)}
	}
	return content, nil
}

// lookupCached serves a payload through the configured cache.
func (a *Archive) lookupCached(entry *Entry) ([]byte, error) {
	key := cache.Key(a.reader.Source().SourceID(), entry.Name, entry.Offset, entry.Length)

	if content, ok := a.cacheGet(key, entry); ok {
		a.log().Debug("lookup cache hit", "name", entry.Name)
		return content, nil
	}
	a.log().Debug("lookup cache miss", "name", entry.Name)

	result, err, shared := a.group.Do(key.String(), func() (any, error) {
		if content, ok := a.cacheGet(key, entry); ok {
			return content, nil
		}
		content, err := a.readEntry(entry)
		if err != nil {
			return nil, err
		}
		if putErr := a.cfg.cache.Put(key, bytes.NewReader(content)); putErr != nil {
			a.log().Warn("cache put failed", "name", entry.Name, "error", putErr)
		}
		return content, nil
	})
	if err != nil {
		return nil, err
	}
	content := result.([]byte) //nolint:errcheck,forcetypeassert // type is guaranteed by Do callback
	if shared {
		content = bytes.Clone(content)
	}
	return content, nil
}

// cacheGet reads a cached payload, discarding entries of the wrong length.
func (a *Archive) cacheGet(key digest.Digest, entry *Entry) ([]byte, bool) {
	c := a.cfg.cache
	rc, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil || int64(len(content)) != entry.Length {
		a.log().Warn("discarding corrupt cache entry", "name", entry.Name, "key", key)
		_ = c.Delete(key) //nolint:errcheck // best-effort cache cleanup
		return nil, false
	}
	return content, true
}

// Section returns a reader over the named payload's bytes without loading
// them into memory. It is not subject to WithMaxPayloadSize.
// The reader is only usable until the archive is closed.
func (a *Archive) Section(name string) (*io.SectionReader, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.checkOpen(); err != nil {
		return nil, fmt.Errorf("section %q: %w", name, err)
	}
	entry, ok := a.idx.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return io.NewSectionReader(a.reader.Source(), entry.Offset, entry.Length), nil
}

// Entry returns the index entry for name.
// It returns false when the name is absent or the handle is not open.
func (a *Archive) Entry(name string) (Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != stateOpen {
		return Entry{}, false
	}
	return a.idx.Lookup(name)
}

// Entries returns an iterator over all entries in index order, which is the
// order the payloads were appended. It yields nothing when the handle is not
// open.
func (a *Archive) Entries() iter.Seq[Entry] {
	a.mu.RLock()
	idx, open := a.idx, a.state == stateOpen
	a.mu.RUnlock()

	if !open {
		return func(func(Entry) bool) {}
	}
	return idx.Entries()
}

// Len returns the number of payloads, or zero when the handle is not open.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != stateOpen {
		return 0
	}
	return a.idx.Len()
}

// DataSize returns the size of the data file, or zero when the handle is not open.
func (a *Archive) DataSize() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != stateOpen {
		return 0
	}
	return a.idx.DataSize()
}

// SourceID returns the identity of the data source, or "" when the handle is not open.
func (a *Archive) SourceID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != stateOpen {
		return ""
	}
	return a.reader.Source().SourceID()
}

// Close releases the data file. Subsequent lookups fail with ErrClosed.
// Closing a closed handle is a no-op; closing an unopened handle retires it.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == stateClosed {
		return nil
	}
	a.state = stateClosed
	a.idx = nil
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	if err != nil {
		return &IOError{Op: "close", Path: a.dataName, Err: err}
	}
	return nil
}
