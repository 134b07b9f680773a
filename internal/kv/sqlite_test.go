package kv

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) (*SQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listsync.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	_, path := createTestStore(t)

	_, err := os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Pragmas(t *testing.T) {
	s, _ := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/listsync.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &SQLite{}
	assert.NoError(t, s.Close())
}

func TestSQLite_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	_, ok, err := s.Get(ctx, "loggedListsyncUser")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "loggedListsyncUser", `{"token":"a"}`))
	v, ok, err := s.Get(ctx, "loggedListsyncUser")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"token":"a"}`, v)

	require.NoError(t, s.Set(ctx, "loggedListsyncUser", `{"token":"b"}`))
	v, _, err = s.Get(ctx, "loggedListsyncUser")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"b"}`, v)

	require.NoError(t, s.Remove(ctx, "loggedListsyncUser"))
	_, ok, err = s.Get(ctx, "loggedListsyncUser")
	require.NoError(t, err)
	assert.False(t, ok)

	// absent key
	assert.NoError(t, s.Remove(ctx, "loggedListsyncUser"))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "listsync.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "k", "v"))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestSQLite_KeysAreCaseSensitive(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	require.NoError(t, s.Set(ctx, "Key", "upper"))
	_, ok, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen_MigratesV0Database(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO kv (key, value) VALUES ('k', 'v')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	has, err := hasColumn(s.db, "kv", "updated_at")
	require.NoError(t, err)
	assert.True(t, has)

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Set(ctx, "k", "v2"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listsync.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}
