package blobpack

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blobpack/internal/testutil"
)

// buildTestArchive writes files into a fresh directory, builds the archive
// "bundle" there and opens it.
func buildTestArchive(t *testing.T, files map[string][]byte, opts ...CreateOption) (string, *Archive) {
	t.Helper()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, files)

	_, err := Build(context.Background(), dir, "bundle", opts...)
	require.NoError(t, err)

	a, err := OpenBase(dir, "bundle")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return dir, a
}

func TestBuild_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string][]byte
	}{
		{"no payloads", map[string][]byte{}},
		{"single payload", map[string][]byte{"only.dat": []byte("hello")}},
		{
			"several payloads",
			map[string][]byte{
				"A.dat":     []byte("abc"),
				"B.dat":     []byte("de"),
				"empty.dat": {},
				"big.dat":   bytes.Repeat([]byte("x"), 100_000),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir, a := buildTestArchive(t, tt.files)

			require.Equal(t, len(tt.files), a.Len())
			for file, want := range tt.files {
				got, err := a.Lookup(strings.TrimSuffix(file, ".dat"))
				require.NoError(t, err, file)
				assert.Equal(t, want, got, file)
			}

			info, err := os.Stat(filepath.Join(dir, IndexName("bundle")))
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.files)*RecordSize), info.Size())
		})
	}
}

func TestBuild_DataFollowsIndexOrder(t *testing.T) {
	t.Parallel()

	dir, a := buildTestArchive(t, map[string][]byte{
		"A.dat": []byte("abc"),
		"B.dat": []byte("de"),
		"C.dat": []byte("fghi"),
	})

	data, err := os.ReadFile(filepath.Join(dir, DataName("bundle")))
	require.NoError(t, err)
	require.Len(t, data, 9)

	var (
		concat []byte
		prev   Entry
	)
	for e := range a.Entries() {
		assert.Equal(t, prev.End(), e.Offset, "offsets are contiguous and non-decreasing")
		content, err := a.Lookup(e.Name)
		require.NoError(t, err)
		concat = append(concat, content...)
		prev = e
	}
	assert.Equal(t, data, concat)
	assert.Equal(t, int64(len(data)), prev.End())
}

func TestBuild_ExcludesOwnOutputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{
		"A.dat":      []byte("abc"),
		"bundle.dat": []byte("stale archive"),
	})

	stats, err := Build(context.Background(), dir, "bundle")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, 1, stats.Skipped[SkipSelf])

	// A rebuild sees its previous outputs and still indexes only A.
	stats, err = Build(context.Background(), dir, "bundle")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, int64(3), stats.Bytes)
	assert.Equal(t, 1, stats.Skipped[SkipSelf])
	assert.Equal(t, 1, stats.Skipped[SkipExtension])

	a, err := OpenBase(dir, "bundle")
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Lookup("bundle")
	require.ErrorIs(t, err, ErrNotFound)
	got, err := a.Lookup("A")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestBuild_Skipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{
		"A.dat":     []byte("abc"),
		"b.DAT":     []byte("de"),
		"notes.txt": []byte("ignored"),
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.dat"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "A.dat"), filepath.Join(dir, "link.dat")))

	stats, err := Build(context.Background(), dir, "bundle")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, int64(5), stats.Bytes)
	assert.Equal(t, map[SkipReason]int{
		SkipExtension:  1,
		SkipDirectory:  1,
		SkipNotRegular: 1,
	}, stats.Skipped)

	a, err := OpenBase(dir, "bundle")
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.Entry("b")
	assert.True(t, ok, "stems keep their case")
	_, ok = a.Entry("link")
	assert.False(t, ok)
}

func TestBuild_CustomExtension(t *testing.T) {
	t.Parallel()

	_, a := buildTestArchive(t, map[string][]byte{
		"one.bin": []byte("1"),
		"two.dat": []byte("2"),
	}, CreateWithExtension(".bin"))

	assert.Equal(t, 1, a.Len())
	got, err := a.Lookup("one")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))
}

func TestBuild_NameErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   map[string][]byte
		wantErr error
	}{
		{
			name:    "duplicate stems",
			files:   map[string][]byte{"A.dat": []byte("1"), "A.DAT": []byte("2")},
			wantErr: ErrDuplicateName,
		},
		{
			name:    "stem too long",
			files:   map[string][]byte{strings.Repeat("n", MaxNameLen+1) + ".dat": []byte("x")},
			wantErr: ErrNameTooLong,
		},
		{
			name:    "trailing space",
			files:   map[string][]byte{"pad .dat": []byte("x")},
			wantErr: ErrInvalidName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			testutil.WriteFiles(t, dir, tt.files)

			_, err := Build(context.Background(), dir, "bundle")
			require.ErrorIs(t, err, tt.wantErr)

			var ioErr *IOError
			require.ErrorAs(t, err, &ioErr)
			assert.Equal(t, "index", ioErr.Op)

			_, statErr := os.Stat(filepath.Join(dir, IndexName("bundle")))
			assert.ErrorIs(t, statErr, fs.ErrNotExist, "nothing is written for an invalid listing")
		})
	}
}

func TestBuild_SkipsDotfile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{
		"A.dat": []byte("abc"),
		".dat":  []byte("hidden"),
	})

	stats, err := Build(context.Background(), dir, "bundle")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, int64(3), stats.Bytes)
	assert.Equal(t, 1, stats.Skipped[SkipExtension])
}

func TestBuild_NameAtLimit(t *testing.T) {
	t.Parallel()

	name := strings.Repeat("n", MaxNameLen)
	_, a := buildTestArchive(t, map[string][]byte{name + ".dat": []byte("edge")})

	got, err := a.Lookup(name)
	require.NoError(t, err)
	assert.Equal(t, "edge", string(got))
}

func TestBuild_MaxFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{
		"a.dat": []byte("1"),
		"b.dat": []byte("2"),
		"c.dat": []byte("3"),
	})

	_, err := Build(context.Background(), dir, "bundle", CreateWithMaxFiles(2))
	require.ErrorIs(t, err, ErrTooManyFiles)

	stats, err := Build(context.Background(), dir, "bundle", CreateWithMaxFiles(-1))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Records)
}

func TestBuild_MissingDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "missing")
	_, err := Build(context.Background(), dir, "bundle")

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, dir, ioErr.Path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestBuild_UnwritableOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{"a.dat": []byte("1")})

	indexPath := filepath.Join(dir, "no-such-dir", "out.index")
	_, err := BuildPaths(context.Background(), dir, indexPath, filepath.Join(dir, "out.dat"))

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "create", ioErr.Op)
	assert.Equal(t, indexPath, ioErr.Path)
}

func TestBuild_Canceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{"a.dat": []byte("1")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, dir, "bundle")
	require.ErrorIs(t, err, context.Canceled)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "build", ioErr.Op)
	assert.Equal(t, filepath.Join(dir, DataName("bundle")), ioErr.Path)
}

func TestBuild_Progress(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{
		"a.dat": []byte("12"),
		"b.dat": []byte("345"),
	})

	var (
		mu     sync.Mutex
		events []ProgressEvent
	)
	_, err := Build(context.Background(), dir, "bundle", CreateWithProgress(func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, StageEnumerating, events[0].Stage)
	assert.Equal(t, StageWriting, events[1].Stage)
	assert.Equal(t, 1, events[1].RecordsDone)
	last := events[2]
	assert.Equal(t, 2, last.RecordsDone)
	assert.Equal(t, uint64(5), last.BytesDone)
}

func TestCreate_Writers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{
		"A.dat": []byte("abc"),
		"B.dat": []byte("de"),
	})

	var indexBuf, dataBuf bytes.Buffer
	stats, err := Create(context.Background(), dir, &indexBuf, &dataBuf)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 2*RecordSize, indexBuf.Len())
	assert.Contains(t, []string{"abcde", "deabc"}, dataBuf.String())

	a, err := New(indexBuf.Bytes(), testutil.NewMockByteSource(dataBuf.Bytes()))
	require.NoError(t, err)
	got, err := a.Lookup("B")
	require.NoError(t, err)
	assert.Equal(t, "de", string(got))
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestCreate_WriteErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string][]byte{"a.dat": []byte("payload")})
	boom := errors.New("disk full")

	_, err := Create(context.Background(), dir, failingWriter{boom}, &bytes.Buffer{})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
	assert.Equal(t, "index", ioErr.Path)
	require.ErrorIs(t, err, boom)

	_, err = Create(context.Background(), dir, &bytes.Buffer{}, failingWriter{boom})
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
	assert.Equal(t, "data", ioErr.Path)
	require.ErrorIs(t, err, boom)
}
