package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/xmindctl/internal/errs"
)

var sample = []NamedEntry{
	{Name: "content.json", Content: []byte(`[{"id":"s1","rootTopic":{"id":"r1","title":"A"}}]`)},
	{Name: "metadata.json", Content: []byte(`{"creator":{"name":"test"}}`)},
	{Name: "manifest.json", Content: []byte(`{"file-entries":{"content.json":{},"metadata.json":{}}}`)},
	{Name: "resources/logo.png", Content: []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}},
}

func writeArchive(t *testing.T, fsys billy.Filesystem, path string, entries []NamedEntry) {
	t.Helper()
	data, err := Build(entries)
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fsys, path, data, 0o644))
}

func digests(t *testing.T, fsys billy.Filesystem, path string) map[string]Entry {
	t.Helper()
	entries, err := List(fsys, path)
	require.NoError(t, err)
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[e.Name] = e
	}
	return out
}

func TestExtract(t *testing.T) {
	fsys := memfs.New()
	writeArchive(t, fsys, "/docs/a.xmind", sample)

	data, err := Extract(fsys, "/docs/a.xmind", ContentEntry)
	require.NoError(t, err)
	assert.Equal(t, sample[0].Content, data)
}

func TestExtract_Errors(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "/docs/garbage.xmind", []byte("not a zip at all"), 0o644))
	writeArchive(t, fsys, "/docs/empty.xmind", sample[1:])
	require.NoError(t, fsys.MkdirAll("/docs/dir.xmind", 0o755))

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing archive", "/docs/nope.xmind", errs.ErrNotFound},
		{"not a zip", "/docs/garbage.xmind", errs.ErrInvalidFormat},
		{"directory", "/docs/dir.xmind", errs.ErrInvalidFormat},
		{"missing entry", "/docs/empty.xmind", errs.ErrMissingEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Extract(fsys, tt.path, ContentEntry)
			require.Error(t, err)
			assert.Nil(t, data)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestReplaceEntry_InPlacePreservesOtherEntries(t *testing.T) {
	fsys := memfs.New()
	writeArchive(t, fsys, "/docs/a.xmind", sample)
	before := digests(t, fsys, "/docs/a.xmind")

	updated := []byte(`[{"id":"s1","rootTopic":{"id":"r1","title":"Changed"}}]`)
	require.NoError(t, ReplaceEntry(fsys, "/docs/a.xmind", ContentEntry, updated, ""))

	got, err := Extract(fsys, "/docs/a.xmind", ContentEntry)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	after := digests(t, fsys, "/docs/a.xmind")
	require.Len(t, after, len(before))
	for name, e := range before {
		if name == ContentEntry {
			assert.NotEqual(t, e.Digest, after[name].Digest)
			continue
		}
		assert.Equal(t, e, after[name], "entry %s changed", name)
	}

	// No temp files left behind.
	infos, err := fsys.ReadDir("/docs")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "a.xmind", infos[0].Name())
}

func TestReplaceEntry_SeparateOutputLeavesSource(t *testing.T) {
	fsys := memfs.New()
	writeArchive(t, fsys, "/docs/a.xmind", sample)
	original, err := util.ReadFile(fsys, "/docs/a.xmind")
	require.NoError(t, err)

	require.NoError(t, ReplaceEntry(fsys, "/docs/a.xmind", ContentEntry, []byte(`[]`), "/out/b.xmind"))

	unchanged, err := util.ReadFile(fsys, "/docs/a.xmind")
	require.NoError(t, err)
	assert.Equal(t, original, unchanged)

	got, err := Extract(fsys, "/out/b.xmind", ContentEntry)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}

func TestReplaceEntry_AppendsMissingEntry(t *testing.T) {
	fsys := memfs.New()
	writeArchive(t, fsys, "/a.xmind", sample[1:])

	require.NoError(t, ReplaceEntry(fsys, "/a.xmind", ContentEntry, []byte(`[]`), ""))

	entries, err := List(fsys, "/a.xmind")
	require.NoError(t, err)
	require.Len(t, entries, len(sample))
	assert.Equal(t, ContentEntry, entries[len(entries)-1].Name)
}

func TestReplaceEntry_SourceErrors(t *testing.T) {
	fsys := memfs.New()
	err := ReplaceEntry(fsys, "/missing.xmind", ContentEntry, []byte(`[]`), "/out.xmind")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, statErr := fsys.Stat("/out.xmind")
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

type failingRename struct {
	billy.Filesystem
}

func (failingRename) Rename(string, string) error {
	return errors.New("disk full")
}

func TestReplaceEntry_FailedWriteLeavesOriginal(t *testing.T) {
	mem := memfs.New()
	writeArchive(t, mem, "/docs/a.xmind", sample)
	original, err := util.ReadFile(mem, "/docs/a.xmind")
	require.NoError(t, err)

	err = ReplaceEntry(failingRename{mem}, "/docs/a.xmind", ContentEntry, []byte(`[]`), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrWriteFailure))

	unchanged, err := util.ReadFile(mem, "/docs/a.xmind")
	require.NoError(t, err)
	assert.Equal(t, original, unchanged)

	infos, err := mem.ReadDir("/docs")
	require.NoError(t, err)
	assert.Len(t, infos, 1, "temp file should be removed")
}

func TestReplaceEntry_PreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	fsys := osfs.New(dir)
	writeArchive(t, fsys, "a.xmind", sample)
	require.NoError(t, os.Chmod(filepath.Join(dir, "a.xmind"), 0o640))

	require.NoError(t, ReplaceEntry(fsys, "a.xmind", ContentEntry, []byte(`[]`), ""))

	info, err := os.Stat(filepath.Join(dir, "a.xmind"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestList_DigestsAreStable(t *testing.T) {
	fsys := memfs.New()
	writeArchive(t, fsys, "/a.xmind", sample)
	writeArchive(t, fsys, "/b.xmind", sample)

	a := digests(t, fsys, "/a.xmind")
	b := digests(t, fsys, "/b.xmind")
	for name := range a {
		assert.Equal(t, a[name].Digest, b[name].Digest)
		assert.Len(t, a[name].Digest, 64)
	}
}

func TestWriteFile(t *testing.T) {
	mem := memfs.New()
	require.NoError(t, WriteFile(mem, "/new/dir/a.xmind", []byte("one"), 0o644))
	require.NoError(t, WriteFile(mem, "/new/dir/a.xmind", []byte("two"), 0o600))

	data, err := util.ReadFile(mem, "/new/dir/a.xmind")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	infos, err := mem.ReadDir("/new/dir")
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestWriteFile_NewFileMode(t *testing.T) {
	dir := t.TempDir()
	fsys := osfs.New(dir)
	require.NoError(t, WriteFile(fsys, "a.xmind", []byte("one"), 0o644))

	info, err := os.Stat(filepath.Join(dir, "a.xmind"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}
