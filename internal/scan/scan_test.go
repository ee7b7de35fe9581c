package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dirEntry(t *testing.T, fsys fstest.MapFS, name string) fs.DirEntry {
	t.Helper()
	entries, err := fs.ReadDir(fsys, ".")
	require.NoError(t, err)
	for _, e := range entries {
		if e.Name() == name {
			return e
		}
	}
	t.Fatalf("entry %q not found", name)
	return nil
}

func TestRules_Classify(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"A.dat":       {Data: []byte("abc")},
		"B.DAT":       {Data: []byte("de")},
		"notes.txt":   {Data: []byte("x")},
		"noext":       {Data: []byte("x")},
		"bundle.dat":  {Data: []byte("x")},
		"Bundle.Dat":  {Data: []byte("x")},
		"sub/x.dat":   {Data: []byte("x")},
		"link.dat":    {Mode: fs.ModeSymlink},
		"a.b.dat":     {Data: []byte("x")},
		"pipe.dat":    {Mode: fs.ModeNamedPipe},
		".dat":        {Data: []byte("x")},
		".DAT":        {Data: []byte("x")},
		"archive.tar": {Data: []byte("x")},
	}
	rules := Rules{Extension: ".dat", Base: "bundle"}

	tests := []struct {
		file       string
		wantStem   string
		wantReason SkipReason
	}{
		{"A.dat", "A", 0},
		{"B.DAT", "B", 0},
		{"a.b.dat", "a.b", 0},
		{".dat", "", SkipExtension},
		{".DAT", "", SkipExtension},
		{"notes.txt", "", SkipExtension},
		{"noext", "", SkipExtension},
		{"archive.tar", "", SkipExtension},
		{"bundle.dat", "", SkipSelf},
		{"Bundle.Dat", "", SkipSelf},
		{"sub", "", SkipDirectory},
		{"link.dat", "", SkipNotRegular},
		{"pipe.dat", "", SkipNotRegular},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			t.Parallel()

			c, reason := rules.Classify(dirEntry(t, fsys, tt.file))
			assert.Equal(t, tt.wantReason, reason)
			if tt.wantReason == 0 {
				assert.Equal(t, tt.file, c.File)
				assert.Equal(t, tt.wantStem, c.Stem)
			}
		})
	}
}

func TestRules_ClassifyWithoutBase(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"bundle.dat": {Data: []byte("x")}}
	c, reason := Rules{Extension: ".dat"}.Classify(dirEntry(t, fsys, "bundle.dat"))
	assert.Zero(t, reason)
	assert.Equal(t, "bundle", c.Stem)
}

func TestSkipReason_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "directory", SkipDirectory.String())
	assert.Equal(t, "not regular", SkipNotRegular.String())
	assert.Equal(t, "extension", SkipExtension.String())
	assert.Equal(t, "archive stub", SkipSelf.String())
	assert.Equal(t, "unknown", SkipReason(0).String())
}

func TestDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for name, content := range map[string]string{
		"A.dat":     "abc",
		"B.dat":     "de",
		"readme.md": "hi",
		"box.dat":   "stub",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.dat"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "A.dat"), filepath.Join(dir, "alias.dat")))

	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	defer root.Close()

	res, err := Dir(root, Rules{Extension: ".dat", Base: "box"})
	require.NoError(t, err)

	stems := make([]string, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		stems = append(stems, c.Stem)
	}
	assert.ElementsMatch(t, []string{"A", "B"}, stems)

	reasons := make(map[string]SkipReason, len(res.Skipped))
	for _, s := range res.Skipped {
		reasons[s.File] = s.Reason
	}
	assert.Equal(t, map[string]SkipReason{
		"readme.md":  SkipExtension,
		"box.dat":    SkipSelf,
		"nested.dat": SkipDirectory,
		"alias.dat":  SkipNotRegular,
	}, reasons)
}

func TestDir_Empty(t *testing.T) {
	t.Parallel()

	root, err := os.OpenRoot(t.TempDir())
	require.NoError(t, err)
	defer root.Close()

	res, err := Dir(root, Rules{Extension: ".dat"})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Empty(t, res.Skipped)
}
