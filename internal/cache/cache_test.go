package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	k := Key("src/a.js", []byte("x"), "css|extract-style")
	assert.Len(t, k, 64)
	assert.Equal(t, k, Key("src/a.js", []byte("x"), "css|extract-style"))
	assert.NotEqual(t, k, Key("src/b.js", []byte("x"), "css|extract-style"))
	assert.NotEqual(t, k, Key("src/a.js", []byte("y"), "css|extract-style"))
	assert.NotEqual(t, k, Key("src/a.js", []byte("x"), "css"))
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "k", Entry{Value: []byte("v1")}))
	require.NoError(t, s.Put(ctx, "k", Entry{Value: []byte("v2")}))
	e, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), e.Value)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	assert.Equal(t, 1, s.Len())

	// Stored values are isolated from caller mutation
	buf := []byte("abc")
	require.NoError(t, s.Put(context.Background(), "iso", Entry{Value: buf}))
	buf[0] = 'X'
	e, _, _ := s.Get(context.Background(), "iso")
	assert.Equal(t, "abc", string(e.Value))
}

func TestSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLite(dir)
	require.NoError(t, err)
	exerciseStore(t, s)
	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	require.NoError(t, s.Close())

	// Entries survive reopening
	s, err = OpenSQLite(dir)
	require.NoError(t, err)
	defer s.Close()
	e, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", string(e.Value))

	n, err := s.Prune(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}
