package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (name TEXT PRIMARY KEY, verifier TEXT);
		CREATE TABLE IF NOT EXISTS entries (id INTEGER PRIMARY KEY, owner TEXT, blob BLOB);`)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

// rotate mimics a password change: the verifier and every entry change together.
func rotate(ctx context.Context, tx DBTX) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO users(name, verifier) VALUES ('alice', 'v2')`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO entries(owner, blob) VALUES ('alice', x'01'), ('alice', x'02')`)
	return err
}

func TestWithTx_CommitsEveryStatement(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, WithTx(context.Background(), db, nil, rotate))

	require.Equal(t, 1, count(t, db, "users"))
	require.Equal(t, 2, count(t, db, "entries"))
}

func TestWithTx_ErrorLeavesNothingBehind(t *testing.T) {
	db := setupDB(t)
	boom := errors.New("re-encryption failed")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, rotate(ctx, tx))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Zero(t, count(t, db, "users"))
	require.Zero(t, count(t, db, "entries"))
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := setupDB(t)

	require.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, rotate(ctx, tx))
			panic("kaput")
		})
	})

	require.Zero(t, count(t, db, "users"))
	require.Zero(t, count(t, db, "entries"))
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err, "begin should fail when DB is closed")
}

func TestIsUniqueViolation(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS u (name TEXT UNIQUE COLLATE NOCASE)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO u(name) VALUES ('Alice')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO u(name) VALUES ('alice')`)
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))

	require.False(t, IsUniqueViolation(errors.New("other")))
	require.False(t, IsUniqueViolation(nil))
}
