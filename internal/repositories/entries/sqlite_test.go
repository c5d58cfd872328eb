package entries

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.MemoryDSN(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`INSERT INTO users (id, username, password_verifier, recovery_email, recovery_mobile, created_at)
		VALUES (?, ?, 'v', ?, '+12025550123', 0)`, id[:], name, name+"@example.com")
	require.NoError(t, err)
	return id
}

func entry(userID uuid.UUID, id string, at time.Time) *models.Entry {
	return &models.Entry{
		ID:            id,
		UserID:        userID,
		Overview:      []byte("ov-" + id),
		NonceOverview: []byte("no-" + id),
		Details:       []byte("d-" + id),
		NonceDetails:  []byte("nd-" + id),
		UpdatedAt:     at,
	}
}

func ids(list []models.Entry) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID)
	}
	return out
}

func TestInsertAndGetByID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	uid := seedUser(t, db, "alice")

	e := entry(uid, "e1", base)
	require.NoError(t, r.Insert(ctx, e))

	got, err := r.GetByID(ctx, uid, "e1")
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestGetByID_OtherUserNotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	require.NoError(t, r.Insert(ctx, entry(alice, "e1", base)))

	_, err := r.GetByID(ctx, bob, "e1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = r.GetByID(ctx, alice, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListOverviews_OrderedNewestFirstThenID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	uid := seedUser(t, db, "alice")
	other := seedUser(t, db, "bob")

	require.NoError(t, r.Insert(ctx, entry(uid, "b", base)))
	require.NoError(t, r.Insert(ctx, entry(uid, "a", base)))
	require.NoError(t, r.Insert(ctx, entry(uid, "c", base.Add(time.Minute))))
	require.NoError(t, r.Insert(ctx, entry(uid, "d", base.Add(-time.Minute))))
	require.NoError(t, r.Insert(ctx, entry(other, "x", base.Add(time.Hour))))

	got, err := r.ListOverviews(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(got))
	for _, e := range got {
		assert.NotEmpty(t, e.Overview)
		assert.Nil(t, e.Details, "listings never load details")
		assert.Equal(t, uid, e.UserID)
	}

	all, err := r.ListAll(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(all))
	assert.Equal(t, []byte("d-c"), all[0].Details)
}

func TestUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	uid := seedUser(t, db, "alice")

	require.NoError(t, r.Insert(ctx, entry(uid, "e1", base)))

	upd := entry(uid, "e1", base.Add(time.Hour))
	upd.Overview = []byte("ov2")
	require.NoError(t, r.Update(ctx, upd))

	got, err := r.GetByID(ctx, uid, "e1")
	require.NoError(t, err)
	assert.Equal(t, []byte("ov2"), got.Overview)
	assert.True(t, got.UpdatedAt.Equal(base.Add(time.Hour)))

	missing := entry(uid, "nope", base)
	assert.ErrorIs(t, r.Update(ctx, missing), common.ErrNotFound)
}

func TestUpsert_RefusesForeignRow(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	require.NoError(t, r.Upsert(ctx, entry(alice, "e1", base)))

	again := entry(alice, "e1", base.Add(time.Second))
	again.Details = []byte("new")
	require.NoError(t, r.Upsert(ctx, again))

	got, err := r.GetByID(ctx, alice, "e1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got.Details)

	err = r.Upsert(ctx, entry(bob, "e1", base))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	uid := seedUser(t, db, "alice")

	require.NoError(t, r.Insert(ctx, entry(uid, "e1", base)))
	require.NoError(t, r.Insert(ctx, entry(uid, "e2", base)))

	require.NoError(t, r.Delete(ctx, uid, "e1"))
	assert.ErrorIs(t, r.Delete(ctx, uid, "e1"), common.ErrNotFound)

	n, err := r.DeleteAll(ctx, uid)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestEntriesCascadeWithUser(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	uid := seedUser(t, db, "alice")

	require.NoError(t, r.Insert(ctx, entry(uid, "e1", base)))
	_, err := db.Exec(`DELETE FROM users WHERE id = ?`, uid[:])
	require.NoError(t, err)

	got, err := r.ListOverviews(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInsert_UnknownUserRejected(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	err := r.Insert(context.Background(), entry(uuid.New(), "e1", base))
	assert.Error(t, err)
}

func TestListOverviews_DBError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*overview.*FROM\s+vault_entries`).WillReturnError(errors.New("boom"))

	_, err = NewSQLiteRepository(db).ListOverviews(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select entries")
}

func TestListAll_ScanError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "overview"}).AddRow("e1", []byte("x"))
	mock.ExpectQuery(`FROM\s+vault_entries`).WillReturnRows(rows)

	_, err = NewSQLiteRepository(db).ListAll(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestDeleteAll_DBError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+vault_entries`).WillReturnError(errors.New("locked"))

	_, err = NewSQLiteRepository(db).DeleteAll(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}
