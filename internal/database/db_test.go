package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConnectionStringSeparator(t *testing.T) {
	plain := buildConnectionString("/tmp/research.db", ProfileStandard)
	assert.Equal(t, 1, strings.Count(plain, "?"))
	assert.Contains(t, plain, "?_pragma=journal_mode(WAL)")

	uri := buildConnectionString("file:TestConn?mode=memory&cache=shared", ProfileCache)
	assert.Equal(t, 1, strings.Count(uri, "?"))
	assert.Contains(t, uri, "&_pragma=journal_mode(WAL)")
	assert.Contains(t, uri, "mode=memory&cache=shared")
}

func TestInMemorySharedCacheDatabase(t *testing.T) {
	db, err := New(Config{
		Path:    "file:" + t.Name() + "?mode=memory&cache=shared",
		Profile: ProfileStandard,
		Name:    "memtest",
	})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO notes (body) VALUES (?)", "hello")
	require.NoError(t, err)

	var body string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT body FROM notes WHERE id = 1").Scan(&body))
	assert.Equal(t, "hello", body)

	assert.NoError(t, db.HealthCheck(ctx))
}

func TestFileBackedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "standard.db")
	db, err := New(Config{Path: path, Profile: ProfileStandard, Name: "filetest"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.QuickCheck(context.Background()))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageSize, int64(0))
}
