package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/dbx"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/google/uuid"
)

// Registration describes an account awaiting contact verification. Tokens
// holds the id of the live code per channel.
type Registration struct {
	UserID    uuid.UUID
	Username  string
	Tokens    map[models.Channel]string
	ExpiresAt time.Time
}

type pendingRegistration struct {
	user      models.User
	tokens    map[models.Channel]string
	verified  map[models.Channel]bool
	expiresAt time.Time
}

// complete reports whether every channel is verified. Callers hold Service.mu.
func (p *pendingRegistration) complete() bool {
	for _, ch := range models.Channels {
		if !p.verified[ch] {
			return false
		}
	}
	return true
}

func (p *pendingRegistration) destination(ch models.Channel) string {
	if ch == models.ChannelEmail {
		return p.user.RecoveryEmail
	}
	return p.user.RecoveryMobile
}

func (p *pendingRegistration) view() *Registration {
	tokens := make(map[models.Channel]string, len(p.tokens))
	for ch, id := range p.tokens {
		tokens[ch] = id
	}
	return &Registration{UserID: p.user.ID, Username: p.user.Username, Tokens: tokens, ExpiresAt: p.expiresAt}
}

// purgeLocked drops expired pending flows. The caller holds s.mu.
func (s *Service) purgeLocked(now time.Time) {
	for id, p := range s.registrations {
		if !now.Before(p.expiresAt) {
			delete(s.registrations, id)
		}
	}
	for id, p := range s.recoveries {
		if !now.Before(p.expiresAt) {
			delete(s.recoveries, id)
		}
	}
}

func (s *Service) registration(userID uuid.UUID) (*pendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(s.now())
	p, ok := s.registrations[userID]
	if !ok {
		return nil, fmt.Errorf("%w: no pending registration", common.ErrNotFound)
	}
	return p, nil
}

// CreateAccount validates the input, derives the verifier and sends a code
// to both contacts. Nothing is stored permanently until both codes are
// confirmed with ConfirmContact; an abandoned registration expires.
//
// If a code cannot be delivered the registration is still returned, with an
// error matching common.ErrDelivery; ResendCode retries. password is wiped.
func (s *Service) CreateAccount(ctx context.Context, username string, password []byte, email, mobile string) (*Registration, error) {
	defer common.WipeByteArray(password)

	name, err := CheckUsername(username)
	if err != nil {
		return nil, err
	}
	if email, err = CheckEmail(email); err != nil {
		return nil, err
	}
	if mobile, err = CheckMobile(mobile); err != nil {
		return nil, err
	}
	if err := CheckPassword(password); err != nil {
		return nil, err
	}

	taken, err := s.repos.Users(s.db).Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, common.ErrUsernameTaken
	}

	// The name is reserved before the slow derivation so a concurrent
	// signup for it is refused here rather than at commit.
	p := &pendingRegistration{
		user: models.User{
			ID:             uuid.New(),
			Username:       name,
			RecoveryEmail:  email,
			RecoveryMobile: mobile,
		},
		tokens:    make(map[models.Channel]string),
		verified:  make(map[models.Channel]bool),
		expiresAt: s.now().Add(s.pendingTTL),
	}
	s.mu.Lock()
	s.purgeLocked(s.now())
	if s.pendingNameLocked(name) {
		s.mu.Unlock()
		return nil, common.ErrUsernameTaken
	}
	s.registrations[p.user.ID] = p
	s.mu.Unlock()

	key, verifier, err := s.derive(password)
	if err != nil {
		s.drop(p.user.ID)
		return nil, err
	}
	key.Wipe()

	s.mu.Lock()
	p.user.PasswordVerifier = verifier
	s.mu.Unlock()
	s.log.Info(ctx, "registration started", "user_id", p.user.ID)

	var errs []error
	for _, ch := range models.Channels {
		if err := s.issue(ctx, p, ch); err != nil {
			errs = append(errs, err)
		}
	}
	return s.viewOf(p), errors.Join(errs...)
}

func (s *Service) viewOf(p *pendingRegistration) *Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.view()
}

// pendingNameLocked reports whether a live registration holds name. The
// caller holds s.mu.
func (s *Service) pendingNameLocked(name string) bool {
	for _, p := range s.registrations {
		if p.user.Username == name {
			return true
		}
	}
	return false
}

func (s *Service) issue(ctx context.Context, p *pendingRegistration, ch models.Channel) error {
	tok, err := s.recovery.IssueToken(ctx, p.user.ID, ch, p.destination(ch))
	if err != nil {
		return err
	}
	s.mu.Lock()
	p.tokens[ch] = tok.ID
	s.mu.Unlock()
	return nil
}

// ResendCode issues a new code for channel of a pending registration,
// invalidating the previous one.
func (s *Service) ResendCode(ctx context.Context, userID uuid.UUID, channel models.Channel) (*Registration, error) {
	p, err := s.registration(userID)
	if err != nil {
		return nil, err
	}
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", common.ErrValidation, channel)
	}
	if err := s.issue(ctx, p, channel); err != nil {
		return nil, err
	}
	return s.viewOf(p), nil
}

// ConfirmContact verifies one registration code. When both contacts are
// verified the user, the verified contacts and a user_created audit event
// are committed in one transaction, a Locked session starts and done is
// true.
//
// A commit that fails because ctx ended keeps the registration, and calling
// ConfirmContact again with either of its token ids retries the commit. Any
// other commit failure discards the registration.
func (s *Service) ConfirmContact(ctx context.Context, userID uuid.UUID, tokenID, code string) (done bool, err error) {
	p, err := s.registration(userID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	owned := false
	for _, id := range p.tokens {
		owned = owned || id == tokenID
	}
	complete := p.complete()
	s.mu.Unlock()
	if !owned {
		return false, fmt.Errorf("%w: code does not belong to this registration", common.ErrInvalidCode)
	}

	if !complete {
		res, err := s.recovery.VerifyToken(ctx, tokenID, code)
		if err != nil {
			return false, err
		}
		s.mu.Lock()
		p.verified[res.Channel] = true
		complete = p.complete()
		s.mu.Unlock()
		if !complete {
			return false, nil
		}
	}

	if err := s.commit(ctx, p); err != nil {
		if !retryable(err) {
			s.drop(userID)
		}
		return false, s.fail(ctx, models.EventUserCreateFailed, userID, err)
	}
	s.drop(userID)
	s.sessions.Begin(ctx, userID, p.user.PasswordVerifier)
	s.log.Info(ctx, "account created", "user_id", userID)
	return true, nil
}

func retryable(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *Service) drop(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registrations, userID)
}

func (s *Service) commit(ctx context.Context, p *pendingRegistration) error {
	now := s.now().UTC()
	u := p.user
	u.CreatedAt = now

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).Create(ctx, &u); err != nil {
			return err
		}
		for _, ch := range models.Channels {
			c := &models.RecoveryContact{UserID: u.ID, Channel: ch, Value: p.destination(ch), VerifiedAt: &now}
			if err := s.repos.Contacts(tx).Upsert(ctx, c); err != nil {
				return err
			}
		}
		return s.audit.RecordTx(ctx, tx, models.EventUserCreated, u.ID, u.Username)
	})
}

// PendingRegistration returns the registration awaiting verification for
// userID.
func (s *Service) PendingRegistration(userID uuid.UUID) (*Registration, error) {
	p, err := s.registration(userID)
	if err != nil {
		return nil, err
	}
	return s.viewOf(p), nil
}
