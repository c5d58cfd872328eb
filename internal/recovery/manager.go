// Package recovery issues and verifies the one-time codes that prove control
// of a recovery contact. Codes are stored only as a hash bound to the token
// id; each token is single-use and dies after MaxAttempts wrong guesses.
package recovery

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/EiDHindY/vaulture/internal/audit"
	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/dbx"
	"github.com/EiDHindY/vaulture/internal/logging"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/notify"
	"github.com/EiDHindY/vaulture/internal/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	DefaultCodeLength  = 6
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 5
)

type Options struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int

	Now    func() time.Time
	Logger logging.Logger
}

// Manager implements token issue and verification.
type Manager struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	notifier notify.Notifier
	audit    *audit.Recorder

	codeLen     int
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	log         logging.Logger
}

func NewManager(db *sql.DB, repos repomanager.RepositoryManager, notifier notify.Notifier, rec *audit.Recorder, opts Options) *Manager {
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultCodeLength
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Manager{
		db:          db,
		repos:       repos,
		notifier:    notifier,
		audit:       rec,
		codeLen:     opts.CodeLength,
		ttl:         opts.TTL,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
		log:         opts.Logger,
	}
}

// MaxAttempts is the number of wrong codes a token tolerates.
func (m *Manager) MaxAttempts() int { return m.maxAttempts }

// generateCode returns n random decimal digits.
func generateCode(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}

func hashCode(tokenID, code string) []byte {
	h := sha256.New()
	h.Write([]byte(tokenID))
	h.Write([]byte{0})
	h.Write([]byte(code))
	return h.Sum(nil)
}

// IssueToken creates a token for userID and channel and sends its code to
// destination. Any live token for the same user and channel is invalidated
// first, so at most one is live per channel. If delivery fails the new token
// is invalidated too and the error matches common.ErrDelivery. The returned
// token carries neither the code nor its hash.
func (m *Manager) IssueToken(ctx context.Context, userID uuid.UUID, channel models.Channel, destination string) (*models.RecoveryToken, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", common.ErrValidation, channel)
	}
	if destination == "" {
		return nil, fmt.Errorf("%w: empty destination", common.ErrValidation)
	}

	code, err := generateCode(m.codeLen)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	tok := &models.RecoveryToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Channel:   channel,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	tok.CodeHash = hashCode(tok.ID, code)

	err = dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.repos.Tokens(tx)
		if _, err := repo.InvalidateLive(ctx, userID, channel); err != nil {
			return err
		}
		if err := repo.Create(ctx, tok); err != nil {
			return err
		}
		return m.audit.RecordTx(ctx, tx, models.EventTokenIssued, userID, "channel "+string(channel))
	})
	if err != nil {
		return nil, fmt.Errorf("error storing token: %w", err)
	}

	if err := m.notifier.Notify(ctx, channel, destination, code); err != nil {
		if cerr := m.repos.Tokens(m.db).Consume(ctx, tok.ID); cerr != nil {
			m.log.Error(ctx, "failed to invalidate undelivered token", "token_id", tok.ID, "error", cerr)
		}
		if !errors.Is(err, common.ErrDelivery) {
			err = fmt.Errorf("%w: %w", common.ErrDelivery, err)
		}
		return nil, err
	}

	m.log.Info(ctx, "token issued", "user_id", userID, "channel", string(channel), "token_id", tok.ID)
	tok.CodeHash = nil
	return tok, nil
}

// VerifyToken checks code against tokenID.
//
// A consumed or expired token fails with common.ErrTokenExpired, or with
// common.ErrTokenExhausted when wrong guesses used it up. A wrong code counts
// an attempt, which is persisted, and fails with common.ErrInvalidCode; the
// attempt that reaches the limit consumes the token and fails with
// common.ErrTokenExhausted. A match consumes the token and marks a stored
// recovery contact for the channel verified. The result is returned with the
// error whenever an attempt was counted.
func (m *Manager) VerifyToken(ctx context.Context, tokenID, code string) (*models.VerificationResult, error) {
	var (
		res     *models.VerificationResult
		outcome error
	)
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.repos.Tokens(tx)
		tok, err := repo.Get(ctx, tokenID)
		if err != nil {
			return err
		}
		now := m.now()

		switch {
		case tok.AttemptsUsed >= m.maxAttempts:
			outcome = common.ErrTokenExhausted
			return nil
		case tok.Consumed, !now.Before(tok.ExpiresAt):
			outcome = common.ErrTokenExpired
			return nil
		}

		res = &models.VerificationResult{TokenID: tok.ID, UserID: tok.UserID, Channel: tok.Channel}
		if subtle.ConstantTimeCompare(hashCode(tok.ID, code), tok.CodeHash) != 1 {
			exhaust := tok.AttemptsUsed+1 >= m.maxAttempts
			used, err := repo.RecordFailure(ctx, tok.ID, exhaust)
			if err != nil {
				return err
			}
			res.AttemptsRemaining = max(m.maxAttempts-used, 0)
			if exhaust {
				outcome = common.ErrTokenExhausted
			} else {
				outcome = fmt.Errorf("%w: %d attempts left", common.ErrInvalidCode, res.AttemptsRemaining)
			}
			return nil
		}

		if err := repo.Consume(ctx, tok.ID); err != nil {
			return err
		}
		promoted, err := m.repos.Contacts(tx).MarkVerified(ctx, tok.UserID, tok.Channel, now)
		if err != nil {
			return err
		}
		if promoted {
			if err := m.audit.RecordTx(ctx, tx, models.EventContactVerified, tok.UserID, "channel "+string(tok.Channel)); err != nil {
				return err
			}
		}
		res.Verified = true
		res.AttemptsRemaining = m.maxAttempts - tok.AttemptsUsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		m.log.Warn(ctx, "token verification failed", "token_id", tokenID, "reason", outcome.Error())
		return res, outcome
	}
	m.log.Info(ctx, "token verified", "token_id", tokenID, "user_id", res.UserID, "channel", string(res.Channel))
	return res, nil
}

// Invalidate consumes any live token for the user and channel.
func (m *Manager) Invalidate(ctx context.Context, userID uuid.UUID, channel models.Channel) error {
	_, err := m.repos.Tokens(m.db).InvalidateLive(ctx, userID, channel)
	return err
}

// PurgeExpired deletes tokens that expired more than a day ago.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.repos.Tokens(m.db).DeleteStale(ctx, m.now().Add(-24*time.Hour))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Debug(ctx, "purged stale tokens", "count", n)
	}
	return n, nil
}
