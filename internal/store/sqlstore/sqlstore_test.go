package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketledger/internal/store"
	"github.com/cleared-dev/pocketledger/internal/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTemp(t) })
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	s, err := Open(context.Background(), SQLite, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, RunMigrations(SQLite, path))
	assert.FileExists(t, path)
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input string
		want  Dialect
	}{
		{"sqlite", SQLite},
		{"SQLite3", SQLite},
		{"postgres", Postgres},
		{"postgresql", Postgres},
		{"pgx", Postgres},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &tx{dialect: Postgres}
	assert.Equal(t, "SELECT * FROM a WHERE x = $1 AND y IN ($2, $3)", pg.rebind("SELECT * FROM a WHERE x = ? AND y IN (?, ?)"))
	assert.Equal(t, " FOR UPDATE", pg.forUpdate())

	lite := &tx{dialect: SQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
	assert.Equal(t, "", lite.forUpdate())
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/a.db?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("/tmp/a.db"))
	assert.Equal(t, "file:x.db?mode=ro", sqliteDSN("file:x.db?mode=ro"))
}
