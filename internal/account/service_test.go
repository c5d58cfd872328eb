package account

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/EiDHindY/vaulture/internal/audit"
	"github.com/EiDHindY/vaulture/internal/auth"
	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/cryptox"
	"github.com/EiDHindY/vaulture/internal/logging"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/recovery"
	"github.com/EiDHindY/vaulture/internal/repositories/repomanager"
	"github.com/EiDHindY/vaulture/internal/session"
	"github.com/EiDHindY/vaulture/internal/storage"
	"github.com/EiDHindY/vaulture/internal/vault"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bobPassword = "Str0ng!Pass123"
	bobEmail    = "b@x.com"
	bobMobile   = "+12025550123"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type inbox struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (i *inbox) Notify(_ context.Context, _ models.Channel, dest, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.codes[dest] = code
	return nil
}

func (i *inbox) code(dest string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.codes[dest]
}

func (i *inbox) fail(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.err = err
}

type fixture struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	clock *clock
	inbox *inbox
	svc   *Service
}

func setup(t *testing.T, policy RecoveryPolicy) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.MemoryDSN(t.Name() + "-" + uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	kdf, err := cryptox.NewKDF(cryptox.TestParams)
	require.NoError(t, err)

	f := &fixture{
		db:    db,
		repos: repomanager.NewSQLiteRepositoryManager(),
		clock: &clock{t: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)},
		inbox: &inbox{codes: map[string]string{}},
	}
	log := logging.Nop()
	rec := audit.NewRecorder(db, f.repos, log, f.clock.Now)
	sessions := session.NewManager(kdf, session.Options{InactivityThreshold: time.Hour, Now: f.clock.Now})

	f.svc = New(Deps{
		DB:       db,
		Repos:    f.repos,
		KDF:      kdf,
		Sessions: sessions,
		Store:    vault.NewStore(db, f.repos, sessions, rec, log, f.clock.Now),
		Recovery: recovery.NewManager(db, f.repos, f.inbox, rec, recovery.Options{Now: f.clock.Now}),
		Grants:   auth.NewGrants(time.Minute, f.clock.Now),
		Audit:    rec,
	}, Options{RecoveryPolicy: policy, Now: f.clock.Now})
	return f
}

// register creates and confirms an account, leaving a Locked session.
func (f *fixture) register(t *testing.T, name, email, mobile string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	reg, err := f.svc.CreateAccount(ctx, name, []byte(bobPassword), email, mobile)
	require.NoError(t, err)

	done, err := f.svc.ConfirmContact(ctx, reg.UserID, reg.Tokens[models.ChannelEmail], f.inbox.code(email))
	require.NoError(t, err)
	require.False(t, done)
	done, err = f.svc.ConfirmContact(ctx, reg.UserID, reg.Tokens[models.ChannelMobile], f.inbox.code(mobile))
	require.NoError(t, err)
	require.True(t, done)
	return reg.UserID
}

func (f *fixture) events(t *testing.T, userID uuid.UUID) []models.EventType {
	t.Helper()
	evs, err := f.repos.Audit(f.db).ListByUser(context.Background(), userID, 0)
	require.NoError(t, err)
	types := make([]models.EventType, 0, len(evs))
	for _, ev := range evs {
		types = append(types, ev.Type)
	}
	return types
}

func TestService_RegisterLoginUnlock(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	id := f.register(t, "Bob", bobEmail, bobMobile)
	assert.Equal(t, session.Locked, f.svc.Sessions().State())

	u, err := f.svc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "bob", u.Username)
	assert.NotContains(t, u.PasswordVerifier, bobPassword)

	contacts, err := f.repos.Contacts(f.db).ListByUser(ctx, id)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	for _, c := range contacts {
		assert.True(t, c.Verified(), c.Channel)
	}

	require.NoError(t, f.svc.Logout(ctx))
	require.NoError(t, f.svc.Login(ctx, "BOB", []byte(bobPassword)))
	assert.Equal(t, session.Locked, f.svc.Sessions().State())
	require.NoError(t, f.svc.Unlock(ctx, []byte(bobPassword)))
	assert.Equal(t, session.Unlocked, f.svc.Sessions().State())

	entryID, err := f.svc.Store().Put(ctx, id, models.Credential{Label: "github", Password: "hunter2"})
	require.NoError(t, err)
	got, err := f.svc.Store().Get(ctx, id, entryID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Password)

	types := f.events(t, id)
	assert.Contains(t, types, models.EventUserCreated)
	assert.Contains(t, types, models.EventLogin)
	assert.Contains(t, types, models.EventVaultUnlocked)
	assert.Contains(t, types, models.EventLogout)
	assert.Contains(t, types, models.EventEntryCreated)
}

func TestService_NothingStoredUntilConfirmed(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	reg, err := f.svc.CreateAccount(ctx, "Bob", []byte(bobPassword), bobEmail, bobMobile)
	require.NoError(t, err)
	assert.Len(t, reg.Tokens, 2)

	exists, err := f.repos.Users(f.db).Exists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)

	done, err := f.svc.ConfirmContact(ctx, reg.UserID, reg.Tokens[models.ChannelEmail], f.inbox.code(bobEmail))
	require.NoError(t, err)
	assert.False(t, done)
	exists, err = f.repos.Users(f.db).Exists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)

	_, ok := f.svc.Sessions().CurrentUser()
	assert.False(t, ok)
}

func TestService_RegistrationExpires(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	reg, err := f.svc.CreateAccount(ctx, "Bob", []byte(bobPassword), bobEmail, bobMobile)
	require.NoError(t, err)

	f.clock.Advance(DefaultPendingTTL)
	_, err = f.svc.PendingRegistration(reg.UserID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.svc.ConfirmContact(ctx, reg.UserID, reg.Tokens[models.ChannelEmail], f.inbox.code(bobEmail))
	assert.ErrorIs(t, err, common.ErrNotFound)

	// the name is free again
	_, err = f.svc.CreateAccount(ctx, "bob", []byte(bobPassword), bobEmail, bobMobile)
	assert.NoError(t, err)
}

func TestService_UsernameCaseInsensitive(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	_, err := f.svc.CreateAccount(ctx, "Alice", []byte(bobPassword), "a@x.com", "+12025550100")
	require.NoError(t, err)
	_, err = f.svc.CreateAccount(ctx, "alice", []byte(bobPassword), "a2@x.com", "+12025550101")
	assert.ErrorIs(t, err, common.ErrUsernameTaken)
	assert.ErrorIs(t, err, common.ErrValidation)

	g := setup(t, RecoverWithAll)
	g.register(t, "Alice", "a@x.com", "+12025550100")
	_, err = g.svc.CreateAccount(ctx, " ALICE ", []byte(bobPassword), "a2@x.com", "+12025550101")
	assert.ErrorIs(t, err, common.ErrUsernameTaken)
}

func TestService_CreateAccountValidation(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	tests := map[string]struct {
		name, password, email, mobile string
		want                          error
	}{
		"short username": {"bo", bobPassword, bobEmail, bobMobile, common.ErrInvalidUsername},
		"space in name":  {"bob smith", bobPassword, bobEmail, bobMobile, common.ErrInvalidUsername},
		"bad email":      {"bob", bobPassword, "not-an-email", bobMobile, common.ErrInvalidEmail},
		"bad mobile":     {"bob", bobPassword, bobEmail, "12ab", common.ErrInvalidMobile},
		"six digits":     {"bob", bobPassword, bobEmail, "123456", common.ErrInvalidMobile},
		"short password": {"bob", "Sh0rt!", bobEmail, bobMobile, common.ErrWeakPassword},
		"no symbols":     {"bob", "Str0ngPass1234", bobEmail, bobMobile, common.ErrWeakPassword},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateAccount(ctx, tt.name, []byte(tt.password), tt.email, tt.mobile)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
	assert.Empty(t, f.inbox.codes)
}

func TestService_ConfirmContactRejectsForeignToken(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	alice, err := f.svc.CreateAccount(ctx, "alice", []byte(bobPassword), "a@x.com", "+12025550100")
	require.NoError(t, err)
	bob, err := f.svc.CreateAccount(ctx, "bob", []byte(bobPassword), bobEmail, bobMobile)
	require.NoError(t, err)

	_, err = f.svc.ConfirmContact(ctx, bob.UserID, alice.Tokens[models.ChannelEmail], f.inbox.code("a@x.com"))
	assert.ErrorIs(t, err, common.ErrInvalidCode)
}

func TestService_ConfirmContactWrongCode(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	reg, err := f.svc.CreateAccount(ctx, "bob", []byte(bobPassword), bobEmail, bobMobile)
	require.NoError(t, err)

	wrong := "000000"
	if f.inbox.code(bobEmail) == wrong {
		wrong = "111111"
	}
	_, err = f.svc.ConfirmContact(ctx, reg.UserID, reg.Tokens[models.ChannelEmail], wrong)
	assert.ErrorIs(t, err, common.ErrInvalidCode)

	done, err := f.svc.ConfirmContact(ctx, reg.UserID, reg.Tokens[models.ChannelEmail], f.inbox.code(bobEmail))
	require.NoError(t, err)
	assert.False(t, done)
}

func TestService_DeliveryFailureThenResend(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	f.inbox.fail(common.ErrDelivery)
	reg, err := f.svc.CreateAccount(ctx, "bob", []byte(bobPassword), bobEmail, bobMobile)
	assert.ErrorIs(t, err, common.ErrDelivery)
	require.NotNil(t, reg)
	assert.Empty(t, reg.Tokens)

	f.inbox.fail(nil)
	for _, ch := range models.Channels {
		reg, err = f.svc.ResendCode(ctx, reg.UserID, ch)
		require.NoError(t, err)
	}
	require.Len(t, reg.Tokens, 2)

	_, err = f.svc.ConfirmContact(ctx, reg.UserID, reg.Tokens[models.ChannelEmail], f.inbox.code(bobEmail))
	require.NoError(t, err)
	done, err := f.svc.ConfirmContact(ctx, reg.UserID, reg.Tokens[models.ChannelMobile], f.inbox.code(bobMobile))
	require.NoError(t, err)
	assert.True(t, done)
}

func TestService_ResendInvalidatesOldCode(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	reg, err := f.svc.CreateAccount(ctx, "bob", []byte(bobPassword), bobEmail, bobMobile)
	require.NoError(t, err)
	oldToken, oldCode := reg.Tokens[models.ChannelEmail], f.inbox.code(bobEmail)

	reg, err = f.svc.ResendCode(ctx, reg.UserID, models.ChannelEmail)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, reg.Tokens[models.ChannelEmail])

	_, err = f.svc.ConfirmContact(ctx, reg.UserID, oldToken, oldCode)
	assert.Error(t, err)

	_, err = f.svc.ResendCode(ctx, reg.UserID, models.Channel("fax"))
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = f.svc.ResendCode(ctx, uuid.New(), models.ChannelEmail)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestService_LoginFailures(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()
	id := f.register(t, "bob", bobEmail, bobMobile)
	require.NoError(t, f.svc.Logout(ctx))

	err := f.svc.Login(ctx, "nobody", []byte(bobPassword))
	assert.ErrorIs(t, err, common.ErrAuthentication)

	err = f.svc.Login(ctx, "bob", []byte("Wr0ng!Password"))
	assert.ErrorIs(t, err, common.ErrAuthentication)
	_, ok := f.svc.Sessions().CurrentUser()
	assert.False(t, ok)

	anon, err := f.repos.Audit(f.db).ListByType(ctx, models.EventLoginFailed, 0)
	require.NoError(t, err)
	require.Len(t, anon, 2)
	users := []uuid.UUID{anon[0].UserID, anon[1].UserID}
	assert.ElementsMatch(t, []uuid.UUID{uuid.Nil, id}, users)
}

func TestService_LoginLockout(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()
	id := f.register(t, "bob", bobEmail, bobMobile)
	require.NoError(t, f.svc.Logout(ctx))

	var err error
	for i := 0; i < session.DefaultMaxAttempts; i++ {
		err = f.svc.Login(ctx, "bob", []byte("Wr0ng!Password"))
	}
	assert.ErrorIs(t, err, common.ErrLockedOut)

	err = f.svc.Login(ctx, "bob", []byte(bobPassword))
	assert.ErrorIs(t, err, common.ErrLockedOut)

	f.clock.Advance(session.DefaultCooldown)
	require.NoError(t, f.svc.Login(ctx, "bob", []byte(bobPassword)))
	assert.Contains(t, f.events(t, id), models.EventLockedOut)
}

func TestService_SessionEventsAudited(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()
	id := f.register(t, "bob", bobEmail, bobMobile)

	require.Error(t, f.svc.Unlock(ctx, []byte("Wr0ng!Password")))
	require.NoError(t, f.svc.Unlock(ctx, []byte(bobPassword)))
	require.NoError(t, f.svc.Lock(ctx))
	require.NoError(t, f.svc.Unlock(ctx, []byte(bobPassword)))
	f.clock.Advance(2 * time.Hour)
	assert.True(t, f.svc.Sessions().CheckIdle(ctx))

	types := f.events(t, id)
	for _, want := range []models.EventType{
		models.EventUnlockFailed,
		models.EventVaultUnlocked,
		models.EventVaultLocked,
		models.EventVaultAutolocked,
	} {
		assert.Contains(t, types, want)
	}

	history, err := f.svc.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.EventVaultAutolocked, history[0].Type)
}

func TestService_NoSession(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	_, err := f.svc.CurrentUser(ctx)
	assert.ErrorIs(t, err, common.ErrNoSession)
	_, err = f.svc.History(ctx, 10)
	assert.ErrorIs(t, err, common.ErrNoSession)
	assert.ErrorIs(t, f.svc.DeleteAccount(ctx, []byte(bobPassword)), common.ErrNoSession)
	assert.ErrorIs(t, f.svc.ChangeMasterPassword(ctx, []byte(bobPassword), []byte("N3w!Password99")), common.ErrVaultLocked)
}

func TestService_PasswordWiped(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()
	f.register(t, "bob", bobEmail, bobMobile)

	buf := []byte(bobPassword)
	require.NoError(t, f.svc.Unlock(ctx, buf))
	assert.Equal(t, make([]byte, len(bobPassword)), buf)
}

func TestService_FailedCommitReleasesRegistration(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	_, err := f.db.ExecContext(ctx, `CREATE TRIGGER refuse_users BEFORE INSERT ON users
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)

	reg, err := f.svc.CreateAccount(ctx, "bob", []byte(bobPassword), bobEmail, bobMobile)
	require.NoError(t, err)
	_, err = f.svc.ConfirmContact(ctx, reg.UserID, reg.Tokens[models.ChannelEmail], f.inbox.code(bobEmail))
	require.NoError(t, err)
	done, err := f.svc.ConfirmContact(ctx, reg.UserID, reg.Tokens[models.ChannelMobile], f.inbox.code(bobMobile))
	require.Error(t, err)
	assert.False(t, done)
	assert.Contains(t, f.events(t, reg.UserID), models.EventUserCreateFailed)

	_, err = f.svc.PendingRegistration(reg.UserID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = f.db.ExecContext(ctx, `DROP TRIGGER refuse_users`)
	require.NoError(t, err)
	f.register(t, "bob", bobEmail, bobMobile)
}

func TestService_ConcurrentSignupsForOneName(t *testing.T) {
	f := setup(t, RecoverWithAll)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateAccount(ctx, "bob", []byte(bobPassword), bobEmail, bobMobile)
		}(i)
	}
	wg.Wait()

	var ok, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, common.ErrUsernameTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, taken)
}
