package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/dbx"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/timex"
	"github.com/google/uuid"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, t *models.RecoveryToken) error {
	query := `INSERT INTO recovery_tokens (id, user_id, channel, code_hash, issued_at, expires_at, attempts_used, consumed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID[:], string(t.Channel), t.CodeHash,
		timex.ToUnix(t.IssuedAt), timex.ToUnix(t.ExpiresAt), t.AttemptsUsed, t.Consumed)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.RecoveryToken, error) {
	query := `SELECT id, user_id, channel, code_hash, issued_at, expires_at, attempts_used, consumed
		FROM recovery_tokens WHERE id = ?`

	t := &models.RecoveryToken{}
	var (
		channel         string
		issued, expires int64
	)
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&t.ID, &t.UserID, &channel, &t.CodeHash, &issued, &expires, &t.AttemptsUsed, &t.Consumed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Channel = models.Channel(channel)
	t.IssuedAt = timex.FromUnix(issued)
	t.ExpiresAt = timex.FromUnix(expires)
	return t, nil
}

func (r *SQLiteRepository) InvalidateLive(ctx context.Context, userID uuid.UUID, channel models.Channel) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recovery_tokens SET consumed = 1 WHERE user_id = ? AND channel = ? AND consumed = 0`,
		userID[:], string(channel))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, id string, exhaust bool) (int, error) {
	query := `UPDATE recovery_tokens
		SET attempts_used = attempts_used + 1, consumed = CASE WHEN ? THEN 1 ELSE consumed END
		WHERE id = ?
		RETURNING attempts_used`

	var attempts int
	err := r.db.QueryRowContext(ctx, query, exhaust, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return attempts, nil
}

func (r *SQLiteRepository) Consume(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recovery_tokens SET consumed = 1 WHERE id = ? AND consumed = 0`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return common.ErrTokenExpired
	}
	return nil
}

func (r *SQLiteRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recovery_tokens WHERE user_id = ?`, userID[:])
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recovery_tokens WHERE expires_at < ?`, timex.ToUnix(cutoff))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
