package account

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/dbx"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/google/uuid"
)

// RecoveryChallenge lists the codes sent for a recovery and how many
// channels must be confirmed.
type RecoveryChallenge struct {
	UserID    uuid.UUID
	Tokens    map[models.Channel]string
	Required  int
	ExpiresAt time.Time
}

// RecoveryProgress reports the state of a recovery after a verification.
// Grant is set once enough channels are verified.
type RecoveryProgress struct {
	Verified []models.Channel
	Required int
	Grant    string
}

type pendingRecovery struct {
	userID    uuid.UUID
	tokens    map[models.Channel]string
	verified  map[models.Channel]bool
	required  int
	expiresAt time.Time
}

func (p *pendingRecovery) verifiedChannels() []models.Channel {
	var out []models.Channel
	for _, ch := range models.Channels {
		if p.verified[ch] {
			out = append(out, ch)
		}
	}
	return out
}

// StartRecovery sends codes to the verified contacts of username. With the
// "all" policy both contacts must be verified and both codes confirmed; with
// "any" one is enough.
func (s *Service) StartRecovery(ctx context.Context, username string) (*RecoveryChallenge, error) {
	u, err := s.repos.Users(s.db).GetByUsername(ctx, models.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	contacts, err := s.repos.Contacts(s.db).ListByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	var usable []models.RecoveryContact
	for _, c := range contacts {
		if c.Verified() {
			usable = append(usable, c)
		}
	}

	required := len(models.Channels)
	if s.policy == RecoverWithAny {
		required = 1
	}
	if len(usable) < required {
		return nil, s.fail(ctx, models.EventAccountRecoveryFailed, u.ID, common.ErrRecoveryNotReady)
	}

	p := &pendingRecovery{
		userID:    u.ID,
		tokens:    make(map[models.Channel]string),
		verified:  make(map[models.Channel]bool),
		required:  required,
		expiresAt: s.now().Add(s.pendingTTL),
	}
	var errs []error
	for _, c := range usable {
		tok, err := s.recovery.IssueToken(ctx, u.ID, c.Channel, c.Value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.tokens[c.Channel] = tok.ID
	}
	if len(p.tokens) < required {
		return nil, errors.Join(errs...)
	}

	s.mu.Lock()
	s.purgeLocked(s.now())
	s.recoveries[u.ID] = p
	s.mu.Unlock()
	s.log.Info(ctx, "recovery started", "user_id", u.ID, "required", required)

	tokens := make(map[models.Channel]string, len(p.tokens))
	for ch, id := range p.tokens {
		tokens[ch] = id
	}
	return &RecoveryChallenge{UserID: u.ID, Tokens: tokens, Required: required, ExpiresAt: p.expiresAt}, errors.Join(errs...)
}

func (s *Service) recoveryFor(tokenID string) (*pendingRecovery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(s.now())
	for _, p := range s.recoveries {
		for _, id := range p.tokens {
			if id == tokenID {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no recovery in progress for this code", common.ErrNotFound)
}

// VerifyRecovery confirms one recovery code. Once the policy is met the
// progress carries a single-use grant for RecoverAccount.
func (s *Service) VerifyRecovery(ctx context.Context, tokenID, code string) (*RecoveryProgress, error) {
	p, err := s.recoveryFor(tokenID)
	if err != nil {
		return nil, err
	}
	if _, err := s.recovery.VerifyToken(ctx, tokenID, code); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for ch, id := range p.tokens {
		if id == tokenID {
			p.verified[ch] = true
		}
	}
	verified := p.verifiedChannels()
	done := len(verified) >= p.required
	if done {
		delete(s.recoveries, p.userID)
	}
	s.mu.Unlock()

	progress := &RecoveryProgress{Verified: verified, Required: p.required}
	if !done {
		return progress, nil
	}

	names := make([]string, 0, len(verified))
	for _, ch := range verified {
		names = append(names, string(ch))
	}
	sort.Strings(names)
	grant, err := s.grants.Issue(p.userID, names)
	if err != nil {
		return nil, err
	}
	progress.Grant = grant
	s.log.Info(ctx, "recovery verified", "user_id", p.userID)
	return progress, nil
}

// RecoverAccount sets newPassword for the user named by grant. Entries
// sealed under the lost key cannot be decrypted, so they are purged in the
// same transaction; the number purged is returned and audited. Earlier
// failed attempts and any lockout are cleared, and a Locked session starts
// for the user. newPassword is wiped.
func (s *Service) RecoverAccount(ctx context.Context, grant string, newPassword []byte) (int64, error) {
	defer common.WipeByteArray(newPassword)

	if err := CheckPassword(newPassword); err != nil {
		return 0, err
	}
	userID, err := s.grants.Redeem(grant)
	if err != nil {
		return 0, s.fail(ctx, models.EventAccountRecoveryFailed, uuid.Nil, err)
	}

	key, verifier, err := s.derive(newPassword)
	if err != nil {
		return 0, s.fail(ctx, models.EventAccountRecoveryFailed, userID, err)
	}
	key.Wipe()

	var purged int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdateVerifier(ctx, userID, verifier); err != nil {
			return err
		}
		var err error
		if purged, err = s.repos.Entries(tx).DeleteAll(ctx, userID); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, tx, models.EventAccountRecovered, userID, fmt.Sprintf("%d entries purged", purged))
	})
	if err != nil {
		return 0, s.fail(ctx, models.EventAccountRecoveryFailed, userID, err)
	}

	s.sessions.ResetFailures(userID)
	s.sessions.Begin(ctx, userID, verifier)
	s.log.Info(ctx, "account recovered", "user_id", userID, "purged", purged)
	return purged, nil
}
