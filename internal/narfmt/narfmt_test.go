package narfmt_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linyinfeng/oranc/internal/narfmt"
)

func buildFixture(t *testing.T) (root string, dir string) {
	t.Helper()
	root = t.TempDir()
	dir = filepath.Join(root, "pkg")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "hello"), []byte("#!/bin/sh\necho hi\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hello world"), 0o644))
	require.NoError(t, os.Symlink("bin/hello", filepath.Join(dir, "hello-link")))
	return root, dir
}

func TestEncodeReproducible(t *testing.T) {
	root, dir := buildFixture(t)
	fsys := os.DirFS(root)
	rel, err := filepath.Rel(root, dir)
	require.NoError(t, err)

	var buf1, buf2 bytes.Buffer
	require.NoError(t, narfmt.Encode(&buf1, fsys, rel))
	require.NoError(t, narfmt.Encode(&buf2, fsys, rel))

	assert.Equal(t, buf1.Bytes(), buf2.Bytes())
	assert.Greater(t, buf1.Len(), 0)
	assert.Equal(t, 0, buf1.Len()%8, "NAR stream length must be 8-byte aligned")
}

func TestEncodeContainsMagicAndContent(t *testing.T) {
	root, dir := buildFixture(t)
	fsys := os.DirFS(root)
	rel, err := filepath.Rel(root, dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, narfmt.Encode(&buf, fsys, rel))

	out := buf.String()
	assert.Contains(t, out, "nix-archive-1")
	assert.Contains(t, out, "directory")
	assert.Contains(t, out, "executable")
	assert.Contains(t, out, "symlink")
	assert.Contains(t, out, "hello world")
}

func TestEncodeSingleRegularFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "data.txt")
	require.NoError(t, os.WriteFile(file, []byte("abc"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, narfmt.Encode(&buf, os.DirFS(root), "data.txt"))
	assert.Contains(t, buf.String(), "regular")
	assert.Contains(t, buf.String(), "abc")
}
