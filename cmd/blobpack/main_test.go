package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blobpack"
	"github.com/meigma/blobpack/internal/testutil"
)

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func sourceDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "bundle")
	require.NoError(t, os.Mkdir(dir, 0o755))
	testutil.WriteFiles(t, dir, map[string][]byte{
		"A.dat":     []byte("abc"),
		"B.dat":     []byte("de"),
		"notes.txt": []byte("skip me"),
	})
	return dir
}

func TestBuildCommand(t *testing.T) {
	t.Parallel()

	dir := sourceDir(t)
	stdout, _, err := run(t, "build", dir)
	require.NoError(t, err)
	assert.Equal(t, "2 records written (5 B) to "+filepath.Join(dir, "bundle.index")+"\n", stdout)

	a, err := blobpack.OpenBase(dir, "bundle")
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, 2, a.Len())
}

func TestBuildCommandOptions(t *testing.T) {
	t.Parallel()

	dir := sourceDir(t)
	_, _, err := run(t, "build", "--base", "custom", "--ext", ".txt", dir)
	require.NoError(t, err)

	a, err := blobpack.OpenBase(dir, "custom")
	require.NoError(t, err)
	defer a.Close()
	got, err := a.Lookup("notes")
	require.NoError(t, err)
	assert.Equal(t, "skip me", string(got))

	_, _, err = run(t, "build", "--max-files", "1", dir)
	require.ErrorIs(t, err, blobpack.ErrTooManyFiles)
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	dir := sourceDir(t)
	_, _, err := run(t, "build", dir)
	require.NoError(t, err)

	stdout, _, err := run(t, "ls", "--digest", filepath.Join(dir, "bundle.index"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"NAME", "OFFSET", "LENGTH", "RESERVED", "DIGEST"}, strings.Fields(lines[0]))
	assert.Contains(t, stdout, "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
}

func TestGetCommand(t *testing.T) {
	t.Parallel()

	dir := sourceDir(t)
	_, _, err := run(t, "build", dir)
	require.NoError(t, err)
	index := filepath.Join(dir, "bundle.index")

	stdout, _, err := run(t, "get", index, "B")
	require.NoError(t, err)
	assert.Equal(t, "de", stdout)

	out := filepath.Join(t.TempDir(), "a.out")
	_, _, err = run(t, "get", "--cache-dir", t.TempDir(), "-o", out, index, "A")
	require.NoError(t, err)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	_, _, err = run(t, "get", index, "C")
	require.ErrorIs(t, err, blobpack.ErrNotFound)
}

func TestExtractCommand(t *testing.T) {
	t.Parallel()

	dir := sourceDir(t)
	_, _, err := run(t, "build", dir)
	require.NoError(t, err)

	dest := t.TempDir()
	stdout, _, err := run(t, "extract", filepath.Join(dir, "bundle.index"), dest)
	require.NoError(t, err)
	assert.Equal(t, "2 files extracted (5 B), 0 skipped\n", stdout)

	got, err := os.ReadFile(filepath.Join(dest, "B.dat"))
	require.NoError(t, err)
	assert.Equal(t, "de", string(got))
}

func TestRemoteArchive(t *testing.T) {
	t.Parallel()

	dir := sourceDir(t)
	_, _, err := run(t, "build", dir)
	require.NoError(t, err)

	server := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(server.Close)

	stdout, _, err := run(t, "get", server.URL+"/bundle.index", "A")
	require.NoError(t, err)
	assert.Equal(t, "abc", stdout)
}

func TestLogFlags(t *testing.T) {
	t.Parallel()

	dir := sourceDir(t)
	_, stderr, err := run(t, "--log-level", "debug", "--log-format", "json", "build", dir)
	require.NoError(t, err)
	assert.Contains(t, stderr, `"msg":"archive written"`)

	_, _, err = run(t, "--log-level", "loud", "build", dir)
	require.ErrorContains(t, err, "invalid --log-level")

	_, _, err = run(t, "--log-format", "xml", "build", dir)
	require.ErrorContains(t, err, "invalid --log-format")
}

func TestDataPathFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dir/bundle.dat", dataPathFor("dir/bundle.index"))
	assert.Equal(t, "https://host/x.dat", dataPathFor("https://host/x.index"))
	assert.True(t, isRemote("https://host/x.index"))
	assert.False(t, isRemote("/tmp/x.index"))
}
