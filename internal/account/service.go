// Package account orchestrates the user-facing flows: registration gated on
// contact verification, login, unlock, password change, deletion and
// recovery. It is the entry point front ends call.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
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
	"github.com/EiDHindY/vaulture/internal/vault"
	"github.com/google/uuid"
)

// RecoveryPolicy says how many verified contacts recovery needs.
type RecoveryPolicy string

const (
	RecoverWithAll RecoveryPolicy = "all"
	RecoverWithAny RecoveryPolicy = "any"
)

const DefaultPendingTTL = 30 * time.Minute

// Deps are the collaborators a Service composes.
type Deps struct {
	DB       *sql.DB
	Repos    repomanager.RepositoryManager
	KDF      *cryptox.KDF
	Sessions *session.Manager
	Store    *vault.Store
	Recovery *recovery.Manager
	Grants   *auth.Grants
	Audit    *audit.Recorder
}

type Options struct {
	// PendingTTL bounds how long an unfinished registration or recovery is
	// kept.
	PendingTTL     time.Duration
	RecoveryPolicy RecoveryPolicy

	Now    func() time.Time
	Logger logging.Logger
}

type Service struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	kdf      *cryptox.KDF
	sessions *session.Manager
	store    *vault.Store
	recovery *recovery.Manager
	grants   *auth.Grants
	audit    *audit.Recorder

	pendingTTL time.Duration
	policy     RecoveryPolicy
	now        func() time.Time
	log        logging.Logger

	mu            sync.Mutex
	registrations map[uuid.UUID]*pendingRegistration
	recoveries    map[uuid.UUID]*pendingRecovery

	dummyOnce     sync.Once
	dummyVerifier string
}

// New wires a Service and subscribes it to session transitions for the
// audit log.
func New(d Deps, opts Options) *Service {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = DefaultPendingTTL
	}
	if opts.RecoveryPolicy != RecoverWithAny {
		opts.RecoveryPolicy = RecoverWithAll
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	s := &Service{
		db:            d.DB,
		repos:         d.Repos,
		kdf:           d.KDF,
		sessions:      d.Sessions,
		store:         d.Store,
		recovery:      d.Recovery,
		grants:        d.Grants,
		audit:         d.Audit,
		pendingTTL:    opts.PendingTTL,
		policy:        opts.RecoveryPolicy,
		now:           opts.Now,
		log:           opts.Logger,
		registrations: make(map[uuid.UUID]*pendingRegistration),
		recoveries:    make(map[uuid.UUID]*pendingRecovery),
	}
	d.Sessions.SetObserver(s.observe)
	return s
}

// Sessions returns the session manager.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// Store returns the credential store.
func (s *Service) Store() *vault.Store { return s.store }

// Status returns a snapshot of the current session.
func (s *Service) Status() (session.Info, bool) { return s.sessions.Info() }

var sessionEvents = map[session.Event]models.EventType{
	session.EventUnlocked:     models.EventVaultUnlocked,
	session.EventUnlockFailed: models.EventUnlockFailed,
	session.EventLockedOut:    models.EventLockedOut,
	session.EventLocked:       models.EventVaultLocked,
	session.EventAutolocked:   models.EventVaultAutolocked,
	session.EventLoggedOut:    models.EventLogout,
}

func (s *Service) observe(ctx context.Context, ev session.Event, userID uuid.UUID) {
	if typ, ok := sessionEvents[ev]; ok {
		_ = s.audit.Record(ctx, typ, userID, "")
	}
}

// fail records a failed terminal outcome. The audit error is only logged;
// err is what the caller sees.
func (s *Service) fail(ctx context.Context, typ models.EventType, userID uuid.UUID, err error) error {
	_ = s.audit.Record(ctx, typ, userID, err.Error())
	s.log.Warn(ctx, "operation failed", "event", string(typ), "user_id", userID, "error", err)
	return err
}

// dummy returns a verifier used to spend the same KDF time on unknown
// usernames as on real ones.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		key, v, err := s.kdf.Derive(common.GenerateRandByteArray(16), s.kdf.NewSalt())
		if err == nil {
			key.Wipe()
			s.dummyVerifier = v
		}
	})
	return s.dummyVerifier
}

// currentUser returns the session user or ErrNoSession.
func (s *Service) currentUser() (uuid.UUID, error) {
	id, ok := s.sessions.CurrentUser()
	if !ok {
		return uuid.Nil, common.ErrNoSession
	}
	return id, nil
}

// CurrentUser returns the user record of the active session.
func (s *Service) CurrentUser(ctx context.Context) (*models.User, error) {
	id, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	return s.repos.Users(s.db).GetByID(ctx, id)
}

// Login checks the password for username and starts a Locked session; the
// vault is unlocked separately. password is wiped.
func (s *Service) Login(ctx context.Context, username string, password []byte) error {
	defer common.WipeByteArray(password)

	name := models.NormalizeUsername(username)
	u, err := s.repos.Users(s.db).GetByUsername(ctx, name)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if v := s.dummy(); v != "" {
			_, _ = s.kdf.Verify(password, v)
		}
		return s.fail(ctx, models.EventLoginFailed, uuid.Nil, common.ErrAuthentication)
	}

	if err := s.sessions.Authenticate(ctx, u.ID, password, u.PasswordVerifier); err != nil {
		return s.fail(ctx, models.EventLoginFailed, u.ID, err)
	}
	s.sessions.Begin(ctx, u.ID, u.PasswordVerifier)
	_ = s.audit.Record(ctx, models.EventLogin, u.ID, "")
	s.log.Info(ctx, "logged in", "user_id", u.ID)
	return nil
}

// Unlock unlocks the current session. password is wiped.
func (s *Service) Unlock(ctx context.Context, password []byte) error {
	return s.sessions.Unlock(ctx, password)
}

func (s *Service) Lock(ctx context.Context) error {
	return s.sessions.Lock(ctx)
}

func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.Logout(ctx)
}

// History returns the newest audit events of the session user.
func (s *Service) History(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	id, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	return s.audit.History(ctx, id, limit)
}

// derive checks the policy for password and derives a fresh key and
// verifier. password is wiped.
func (s *Service) derive(password []byte) (*cryptox.Key, string, error) {
	if err := CheckPassword(password); err != nil {
		common.WipeByteArray(password)
		return nil, "", err
	}
	key, verifier, err := s.kdf.Derive(password, s.kdf.NewSalt())
	if err != nil {
		return nil, "", fmt.Errorf("derive key: %w", err)
	}
	return key, verifier, nil
}
