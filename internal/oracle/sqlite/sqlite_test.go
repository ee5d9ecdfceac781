package sqlite_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linyinfeng/oranc/internal/oracle/sqlite"
)

// seedDB creates a minimal Nix store database schema (the subset of
// ValidPaths/Refs the oracle reads) and populates it with a small closure:
// root -> dep -> leaf.
func seedDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "db.sqlite")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
CREATE TABLE ValidPaths (
	id integer primary key autoincrement not null,
	path text unique not null,
	hash text,
	registrationTime integer,
	deriver text,
	narSize integer,
	ultimate integer,
	sigs text,
	ca text
);
CREATE TABLE Refs (
	referrer integer not null,
	reference integer not null
);
`)
	require.NoError(t, err)

	insert := func(path, hash string, narSize int64, sigs, deriver string) int64 {
		res, err := db.Exec(`INSERT INTO ValidPaths (path, hash, narSize, sigs, deriver) VALUES (?, ?, ?, ?, ?)`,
			path, hash, narSize, nullIfEmpty(sigs), nullIfEmpty(deriver))
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		return id
	}

	leafID := insert("/nix/store/leafhashxxxxxxxxxxxxxxxxxxxxxxx-leaf", "sha256:leafhash0000000000000000000000000000000000", 100, "", "")
	depID := insert("/nix/store/dephashxxxxxxxxxxxxxxxxxxxxxxxxx-dep", "sha256:dephash00000000000000000000000000000000000", 200, "cache:c2ln", "")
	rootID := insert("/nix/store/roothashxxxxxxxxxxxxxxxxxxxxxxxx-root", "sha256:roothash0000000000000000000000000000000000", 300, "", "")

	_, err = db.Exec(`INSERT INTO Refs (referrer, reference) VALUES (?, ?), (?, ?), (?, ?)`,
		rootID, depID, depID, leafID, rootID, rootID)
	require.NoError(t, err)

	return path
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func TestPathInfo(t *testing.T) {
	dbPath := seedDB(t)
	o, err := sqlite.Open(context.Background(), dbPath, "/nix/store")
	require.NoError(t, err)
	defer o.Close()

	info, err := o.PathInfo(context.Background(), "/nix/store/dephashxxxxxxxxxxxxxxxxxxxxxxxxx-dep")
	require.NoError(t, err)
	assert.Equal(t, int64(200), info.NarSize)
	assert.Equal(t, "sha256:dephash00000000000000000000000000000000000", info.NarHash.String())
	require.Len(t, info.References, 1)
	assert.Equal(t, "/nix/store/leafhashxxxxxxxxxxxxxxxxxxxxxxx-leaf", info.References[0])
	require.Len(t, info.Signatures, 1)
	assert.Equal(t, "cache:c2ln", info.Signatures[0])
}

func TestPathInfoMissing(t *testing.T) {
	dbPath := seedDB(t)
	o, err := sqlite.Open(context.Background(), dbPath, "/nix/store")
	require.NoError(t, err)
	defer o.Close()

	_, err = o.PathInfo(context.Background(), "/nix/store/doesnotexist-nope")
	assert.Error(t, err)
}

func TestIsValid(t *testing.T) {
	dbPath := seedDB(t)
	o, err := sqlite.Open(context.Background(), dbPath, "/nix/store")
	require.NoError(t, err)
	defer o.Close()

	ok, err := o.IsValid(context.Background(), "/nix/store/leafhashxxxxxxxxxxxxxxxxxxxxxxx-leaf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = o.IsValid(context.Background(), "/nix/store/doesnotexist-nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClosure(t *testing.T) {
	dbPath := seedDB(t)
	o, err := sqlite.Open(context.Background(), dbPath, "/nix/store")
	require.NoError(t, err)
	defer o.Close()

	closure, err := o.Closure(context.Background(), "/nix/store/roothashxxxxxxxxxxxxxxxxxxxxxxxx-root")
	require.NoError(t, err)

	var paths []string
	for _, p := range closure {
		paths = append(paths, p.Path)
	}
	assert.ElementsMatch(t, []string{
		"/nix/store/roothashxxxxxxxxxxxxxxxxxxxxxxxx-root",
		"/nix/store/dephashxxxxxxxxxxxxxxxxxxxxxxxxx-dep",
		"/nix/store/leafhashxxxxxxxxxxxxxxxxxxxxxxx-leaf",
	}, paths)
	// the self-reference on root must not duplicate it in the closure.
	assert.Len(t, closure, 3)
}

func TestNarStream(t *testing.T) {
	storeDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(storeDir, "myhash-thing"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(storeDir, "myhash-thing", "file.txt"), []byte("hi"), 0o644))

	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE ValidPaths (id integer primary key, path text, hash text, deriver text, narSize integer, sigs text, ca text); CREATE TABLE Refs (referrer integer, reference integer);`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO ValidPaths (path, narSize) VALUES (?, 0)`, storeDir+"/myhash-thing")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	o, err := sqlite.Open(context.Background(), dbPath, storeDir)
	require.NoError(t, err)
	defer o.Close()

	rc, err := o.NarStream(context.Background(), storeDir+"/myhash-thing")
	require.NoError(t, err)
	defer rc.Close()

	buf := make([]byte, 4096)
	n, _ := rc.Read(buf)
	assert.Contains(t, string(buf[:n]), "nix-archive-1")
}
