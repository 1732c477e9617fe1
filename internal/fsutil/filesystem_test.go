package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem(t *testing.T) {
	var fsys FileSystem = OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, fsys.MkdirAll(dir, 0o755))
	assert.True(t, fsys.Exists(dir))

	name := filepath.Join(dir, "run.jsonl")
	w, err := fsys.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, "{}\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := fsys.Open(name)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	assert.False(t, fsys.Exists(filepath.Join(dir, "missing")))
	_, err = fsys.Open(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMemoryFileSystem(t *testing.T) {
	m := NewMemoryFileSystem()

	_, err := m.Create("/out/run.png")
	assert.ErrorIs(t, err, fs.ErrNotExist, "parent directory must exist")

	require.NoError(t, m.MkdirAll("/out", 0o755))
	assert.True(t, m.Exists("/out"))
	assert.True(t, m.Exists("/"))

	w, err := m.Create("/out/run.png")
	require.NoError(t, err)
	_, _ = w.Write([]byte("png"))
	got, ok := m.ReadFile("/out/run.png")
	assert.True(t, ok)
	assert.Empty(t, got, "data is visible only after Close")
	require.NoError(t, w.Close())

	got, _ = m.ReadFile("/out/../out/run.png")
	assert.Equal(t, "png", string(got))

	m.WriteFile("/in/replay.jsonl", []byte("line\n"))
	r, err := m.Open("/in/replay.jsonl")
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "line\n", string(data))

	_, err = m.Open("/in/missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, []string{"/in/replay.jsonl", "/out/run.png"}, m.Files())
}

func TestMemoryFileSystemRelativeCreate(t *testing.T) {
	m := NewMemoryFileSystem()
	w, err := m.Create("run.png")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.True(t, m.Exists("run.png"))
}
