package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/EiDHindY/vaulture/internal/audit"
	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/cryptox"
	"github.com/EiDHindY/vaulture/internal/dbx"
	"github.com/EiDHindY/vaulture/internal/logging"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/repositories/repomanager"
	"github.com/EiDHindY/vaulture/internal/session"
	"github.com/EiDHindY/vaulture/internal/storage"
	"github.com/EiDHindY/vaulture/internal/vault"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "Str0ng!Pass123"

type env struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	kdf      *cryptox.KDF
	sessions *session.Manager
	store    *vault.Store
	svc      *Service
	userID   uuid.UUID
	now      time.Time
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.MemoryDSN(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	kdf, err := cryptox.NewKDF(cryptox.TestParams)
	require.NoError(t, err)
	_, verifier, err := kdf.Derive([]byte(password), kdf.NewSalt())
	require.NoError(t, err)

	e := &env{db: db, repos: repomanager.NewSQLiteRepositoryManager(), kdf: kdf, userID: uuid.New(),
		now: time.Date(2026, 7, 4, 9, 30, 0, 0, time.UTC)}
	clock := func() time.Time { return e.now }

	_, err = db.Exec(`INSERT INTO users (id, username, password_verifier, recovery_email, recovery_mobile, created_at)
		VALUES (?, 'dave', ?, 'd@x.com', '+12025550142', 0)`, e.userID[:], verifier)
	require.NoError(t, err)

	e.sessions = session.NewManager(kdf, session.Options{Now: clock})
	e.sessions.Begin(ctx, e.userID, verifier)
	require.NoError(t, e.sessions.Unlock(ctx, []byte(password)))

	rec := audit.NewRecorder(db, e.repos, logging.Nop(), clock)
	e.store = vault.NewStore(db, e.repos, e.sessions, rec, logging.Nop(), clock)
	e.svc = NewService(db, e.repos, e.sessions, rec, logging.Nop(), clock)
	return e
}

func (e *env) seed(t *testing.T, labels ...string) []string {
	t.Helper()
	var ids []string
	for _, l := range labels {
		id, err := e.store.Put(context.Background(), e.userID, models.Credential{Label: l, Password: "pw-" + l})
		require.NoError(t, err)
		ids = append(ids, id)
		e.now = e.now.Add(time.Second)
	}
	return ids
}

func (e *env) labels(t *testing.T) []string {
	t.Helper()
	list, err := e.store.List(context.Background(), e.userID, nil)
	require.NoError(t, err)
	var out []string
	for _, v := range list {
		out = append(out, v.Label)
	}
	return out
}

func TestExportImport_RoundTrip(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	ids := e.seed(t, "mail", "bank")

	blob, err := e.svc.Export(ctx, e.userID)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "mail")
	assert.NotContains(t, string(blob), "pw-bank")

	for _, id := range ids {
		require.NoError(t, e.store.Delete(ctx, e.userID, id))
	}
	e.seed(t, "kept")

	n, err := e.svc.Import(ctx, e.userID, blob)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"kept", "bank", "mail"}, e.labels(t))

	got, err := e.store.Get(ctx, e.userID, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "pw-bank", got.Password)

	events, err := e.repos.Audit(e.db).ListByType(ctx, models.EventVaultImported, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2 entries", events[0].Detail)
}

func TestImport_OverwritesChangedEntries(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	ids := e.seed(t, "mail")
	blob, err := e.svc.Export(ctx, e.userID)
	require.NoError(t, err)

	require.NoError(t, e.store.Update(ctx, e.userID, ids[0], models.Credential{Label: "changed"}))
	_, err = e.svc.Import(ctx, e.userID, blob)
	require.NoError(t, err)
	assert.Equal(t, []string{"mail"}, e.labels(t))
}

func TestExportImport_RequireUnlocked(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	blob, err := e.svc.Export(ctx, e.userID)
	require.NoError(t, err)

	require.NoError(t, e.sessions.Lock(ctx))
	_, err = e.svc.Export(ctx, e.userID)
	assert.ErrorIs(t, err, common.ErrVaultLocked)
	_, err = e.svc.Import(ctx, e.userID, blob)
	assert.ErrorIs(t, err, common.ErrVaultLocked)
}

func TestImport_Rejects(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.seed(t, "mail")
	blob, err := e.svc.Export(ctx, e.userID)
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := e.svc.Import(ctx, e.userID, []byte("{"))
		assert.ErrorIs(t, err, common.ErrCorruptEntry)
	})

	t.Run("tampered payload", func(t *testing.T) {
		var env envelope
		require.NoError(t, json.Unmarshal(blob, &env))
		env.Payload[len(env.Payload)-1] ^= 1
		bad, err := json.Marshal(env)
		require.NoError(t, err)
		_, err = e.svc.Import(ctx, e.userID, bad)
		assert.ErrorIs(t, err, common.ErrCorruptEntry)
	})

	t.Run("other account", func(t *testing.T) {
		var env envelope
		require.NoError(t, json.Unmarshal(blob, &env))
		env.UserID = uuid.New()
		bad, err := json.Marshal(env)
		require.NoError(t, err)
		_, err = e.svc.Import(ctx, e.userID, bad)
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("future version", func(t *testing.T) {
		var env envelope
		require.NoError(t, json.Unmarshal(blob, &env))
		env.Version = FormatVersion + 1
		bad, err := json.Marshal(env)
		require.NoError(t, err)
		_, err = e.svc.Import(ctx, e.userID, bad)
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestImport_AfterKeyChangeFails(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.seed(t, "mail")
	blob, err := e.svc.Export(ctx, e.userID)
	require.NoError(t, err)

	newKey, newVerifier, err := e.kdf.Derive([]byte("N3w!Passphrase"), e.kdf.NewSalt())
	require.NoError(t, err)
	require.NoError(t, e.sessions.Rotate(ctx, e.userID, func(old *cryptox.Key) (*cryptox.Key, string, error) {
		return newKey, newVerifier, dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			_, err := e.store.Reencrypt(ctx, tx, e.userID, old, newKey)
			return err
		})
	}))

	_, err = e.svc.Import(ctx, e.userID, blob)
	assert.ErrorIs(t, err, common.ErrCorruptEntry)
	assert.Equal(t, []string{"mail"}, e.labels(t))
}

func TestBackupRestore_Latest(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	remote := NewDirRemote(t.TempDir())

	ids := e.seed(t, "one")
	first, err := e.svc.Backup(ctx, e.userID, remote)
	require.NoError(t, err)
	e.now = e.now.Add(time.Hour)
	e.seed(t, "two")
	second, err := e.svc.Backup(ctx, e.userID, remote)
	require.NoError(t, err)
	assert.Less(t, first, second)

	latest, err := Latest(ctx, remote, e.userID)
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	require.NoError(t, e.store.Delete(ctx, e.userID, ids[0]))
	n, err := e.svc.Restore(ctx, e.userID, remote, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = e.svc.Restore(ctx, e.userID, remote, first)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events, err := e.repos.Audit(e.db).ListByType(ctx, models.EventVaultExported, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRestore_NoBackup(t *testing.T) {
	e := setup(t)
	_, err := e.svc.Restore(context.Background(), e.userID, NewDirRemote(t.TempDir()), "")
	assert.ErrorIs(t, err, ErrNoBackup)
}

func TestName_SortsByTime(t *testing.T) {
	id := uuid.New()
	a := Name(id, time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC))
	b := Name(id, time.Date(2026, 1, 2, 3, 4, 5, 7, time.UTC))
	assert.Less(t, a, b)
	assert.Contains(t, a, Prefix(id))
}
