package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/cryptox"
	"github.com/EiDHindY/vaulture/internal/logging"
	"github.com/google/uuid"
)

// Options configure a Manager. Zero values take the defaults below.
type Options struct {
	// InactivityThreshold is the idle time after which an unlocked session
	// autolocks.
	InactivityThreshold time.Duration
	// MaxAttempts consecutive failed authentications start a cooldown.
	MaxAttempts int
	Cooldown    time.Duration

	Now      func() time.Time
	Observer Observer
	Logger   logging.Logger
}

const (
	DefaultInactivityThreshold = 5 * time.Minute
	DefaultMaxAttempts         = 5
	DefaultCooldown            = 5 * time.Minute
)

// Session is the in-memory authenticated context. It is never persisted.
type Session struct {
	userID         uuid.UUID
	verifier       string
	key            *cryptox.Key
	state          State
	unlockedAt     time.Time
	lastActivityAt time.Time
}

// Manager owns the single active Session.
type Manager struct {
	kdf       *cryptox.KDF
	threshold time.Duration
	now       func() time.Time
	observer  Observer
	log       logging.Logger
	limiter   *limiter

	mu      sync.Mutex
	current *Session
}

// NewManager returns a Manager with no session.
func NewManager(kdf *cryptox.KDF, opts Options) *Manager {
	if opts.InactivityThreshold <= 0 {
		opts.InactivityThreshold = DefaultInactivityThreshold
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Manager{
		kdf:       kdf,
		threshold: opts.InactivityThreshold,
		now:       opts.Now,
		observer:  opts.Observer,
		log:       opts.Logger,
		limiter:   newLimiter(opts.MaxAttempts, opts.Cooldown),
	}
}

// SetObserver replaces the transition observer.
func (m *Manager) SetObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = o
}

func (m *Manager) notify(ctx context.Context, n *notes) {
	m.mu.Lock()
	o := m.observer
	m.mu.Unlock()
	if o == nil {
		return
	}
	for _, f := range *n {
		o(ctx, f.ev, f.userID)
	}
}

// checkCooldown returns ErrLockedOut while userID is cooling down.
func (m *Manager) checkCooldown(userID uuid.UUID) error {
	if wait := m.limiter.blocked(userID, m.now()); wait > 0 {
		return fmt.Errorf("%w: retry in %s", common.ErrLockedOut, wait.Round(time.Second))
	}
	return nil
}

// recordFailure counts a failed authentication and returns the error to
// report for it.
func (m *Manager) recordFailure(userID uuid.UUID, n *notes) error {
	if m.limiter.fail(userID, m.now()) {
		n.add(EventLockedOut, userID)
		return fmt.Errorf("%w: retry in %s", common.ErrLockedOut, m.limiter.cooldown.Round(time.Second))
	}
	return common.ErrAuthentication
}

// ResetFailures clears the failed-attempt count and any cooldown for userID.
// Account recovery calls it once the new password is committed.
func (m *Manager) ResetFailures(userID uuid.UUID) {
	m.limiter.succeed(userID)
}

// Authenticate checks password against verifier for userID, counting
// failures toward the lockout. It is shared by login, re-authentication and
// password change. password is wiped.
func (m *Manager) Authenticate(ctx context.Context, userID uuid.UUID, password []byte, verifier string) error {
	defer common.WipeByteArray(password)
	var n notes
	defer m.notify(ctx, &n)

	if err := m.checkCooldown(userID); err != nil {
		return err
	}
	ok, err := m.kdf.Verify(password, verifier)
	if err != nil {
		return err
	}
	if !ok {
		m.log.Warn(ctx, "authentication failed", "user_id", userID, "failures", m.limiter.failures(userID)+1)
		return m.recordFailure(userID, &n)
	}
	m.limiter.succeed(userID)
	return nil
}

// Begin starts a Locked session for userID, replacing any previous one. The
// inactivity clock starts now.
func (m *Manager) Begin(ctx context.Context, userID uuid.UUID, verifier string) {
	var n notes
	defer m.notify(ctx, &n)
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.current; prev != nil {
		prev.key.Wipe()
		n.add(EventLoggedOut, prev.userID)
	}
	now := m.now()
	m.current = &Session{userID: userID, verifier: verifier, state: Locked, lastActivityAt: now}
	m.log.Info(ctx, "session started", "user_id", userID)
}

// Unlock verifies password and, on success, holds the derived vault key.
// On failure the session stays Locked and the failure counts toward the
// lockout. Unlocking an unlocked session re-verifies and refreshes the key.
// password is wiped.
func (m *Manager) Unlock(ctx context.Context, password []byte) error {
	defer common.WipeByteArray(password)
	var n notes
	defer m.notify(ctx, &n)
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		return common.ErrNoSession
	}
	if err := m.checkCooldown(s.userID); err != nil {
		return err
	}

	key, err := m.kdf.Open(password, s.verifier)
	if err != nil {
		if !errors.Is(err, common.ErrAuthentication) {
			return err
		}
		n.add(EventUnlockFailed, s.userID)
		m.log.Warn(ctx, "unlock failed", "user_id", s.userID)
		return m.recordFailure(s.userID, &n)
	}
	m.limiter.succeed(s.userID)

	s.key.Wipe()
	now := m.now()
	s.key = key
	s.state = Unlocked
	s.unlockedAt = now
	s.lastActivityAt = now
	n.add(EventUnlocked, s.userID)
	m.log.Info(ctx, "vault unlocked", "user_id", s.userID)
	return nil
}

// lockLocked wipes the key. The caller holds m.mu.
func (m *Manager) lockLocked(s *Session) {
	s.key.Wipe()
	s.key = nil
	s.state = Locked
}

// Lock wipes the vault key and keeps the session identity for a quick
// re-unlock. Locking a locked session is a no-op.
func (m *Manager) Lock(ctx context.Context) error {
	var n notes
	defer m.notify(ctx, &n)
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		return common.ErrNoSession
	}
	if s.state == Unlocked {
		m.lockLocked(s)
		n.add(EventLocked, s.userID)
		m.log.Info(ctx, "vault locked", "user_id", s.userID)
	}
	return nil
}

// Logout locks and discards the session.
func (m *Manager) Logout(ctx context.Context) error {
	var n notes
	defer m.notify(ctx, &n)
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		return common.ErrNoSession
	}
	m.lockLocked(s)
	m.current = nil
	n.add(EventLoggedOut, s.userID)
	m.log.Info(ctx, "logged out", "user_id", s.userID)
	return nil
}

// idleLocked autolocks s when it has been inactive for the threshold. The
// caller holds m.mu.
func (m *Manager) idleLocked(ctx context.Context, s *Session, n *notes) bool {
	if s == nil || s.state != Unlocked {
		return false
	}
	if m.now().Sub(s.lastActivityAt) < m.threshold {
		return false
	}
	m.lockLocked(s)
	n.add(EventAutolocked, s.userID)
	m.log.Info(ctx, "vault autolocked", "user_id", s.userID, "idle", m.now().Sub(s.lastActivityAt).String())
	return true
}

// Touch records user activity on an unlocked session.
func (m *Manager) Touch(ctx context.Context) error {
	var n notes
	defer m.notify(ctx, &n)
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		return common.ErrNoSession
	}
	if m.idleLocked(ctx, s, &n) || s.state != Unlocked {
		return common.ErrVaultLocked
	}
	s.lastActivityAt = m.now()
	return nil
}

// State returns the current state; no session reads as Locked.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Locked
	}
	return m.current.state
}

// CurrentUser returns the session's user.
func (m *Manager) CurrentUser() (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return uuid.Nil, false
	}
	return m.current.userID, true
}

// Info returns a snapshot of the session.
func (m *Manager) Info() (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.current
	if s == nil {
		return Info{}, false
	}
	return Info{UserID: s.userID, State: s.state, UnlockedAt: s.unlockedAt, LastActivityAt: s.lastActivityAt}, true
}

// WithKey runs fn with the vault key of userID's unlocked session and records
// the activity. The idle check runs first, so an expired session never hands
// out its key. fn must not retain the key.
func (m *Manager) WithKey(ctx context.Context, userID uuid.UUID, fn func(key *cryptox.Key) error) error {
	var n notes
	defer m.notify(ctx, &n)
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil || s.userID != userID {
		return common.ErrVaultLocked
	}
	if m.idleLocked(ctx, s, &n) || s.state != Unlocked {
		return common.ErrVaultLocked
	}
	s.lastActivityAt = m.now()
	return fn(s.key)
}

// Rotate replaces the session key. fn receives the current key and returns
// the new key and verifier; it typically re-encrypts the store in one
// transaction. On error the old key stays in place.
func (m *Manager) Rotate(ctx context.Context, userID uuid.UUID, fn func(old *cryptox.Key) (*cryptox.Key, string, error)) error {
	var n notes
	defer m.notify(ctx, &n)
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil || s.userID != userID {
		return common.ErrVaultLocked
	}
	if m.idleLocked(ctx, s, &n) || s.state != Unlocked {
		return common.ErrVaultLocked
	}

	key, verifier, err := fn(s.key)
	if err != nil {
		key.Wipe()
		return err
	}
	s.key.Wipe()
	s.key = key
	s.verifier = verifier
	s.lastActivityAt = m.now()
	m.log.Info(ctx, "vault key rotated", "user_id", userID)
	return nil
}

// CheckIdle autolocks the session when it has been idle for the threshold
// and reports whether it did.
func (m *Manager) CheckIdle(ctx context.Context) bool {
	var n notes
	defer m.notify(ctx, &n)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idleLocked(ctx, m.current, &n)
}

// Run checks for inactivity every interval until ctx is done. It only ever
// moves Unlocked to Locked.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.CheckIdle(ctx)
		}
	}
}
