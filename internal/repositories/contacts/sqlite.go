package contacts

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

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: timex.ToUnix(*t), Valid: true}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, c *models.RecoveryContact) error {
	query := `INSERT INTO recovery_contacts (user_id, channel, value, verified_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, channel) DO UPDATE SET
			verified_at = CASE WHEN recovery_contacts.value = excluded.value
				THEN COALESCE(excluded.verified_at, recovery_contacts.verified_at)
				ELSE excluded.verified_at END,
			value = excluded.value`
	_, err := r.db.ExecContext(ctx, query, c.UserID[:], string(c.Channel), c.Value, nullableTime(c.VerifiedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, userID uuid.UUID, channel models.Channel) (*models.RecoveryContact, error) {
	query := `SELECT value, verified_at FROM recovery_contacts WHERE user_id = ? AND channel = ?`

	c := &models.RecoveryContact{UserID: userID, Channel: channel}
	var verified sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, userID[:], string(channel)).Scan(&c.Value, &verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if verified.Valid {
		at := timex.FromUnix(verified.Int64)
		c.VerifiedAt = &at
	}
	return c, nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.RecoveryContact, error) {
	query := `SELECT channel, value, verified_at FROM recovery_contacts WHERE user_id = ? ORDER BY channel`
	rows, err := r.db.QueryContext(ctx, query, userID[:])
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.RecoveryContact
	for rows.Next() {
		c := models.RecoveryContact{UserID: userID}
		var (
			channel  string
			verified sql.NullInt64
		)
		if err := rows.Scan(&channel, &c.Value, &verified); err != nil {
			return nil, err
		}
		c.Channel = models.Channel(channel)
		if verified.Valid {
			at := timex.FromUnix(verified.Int64)
			c.VerifiedAt = &at
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) MarkVerified(ctx context.Context, userID uuid.UUID, channel models.Channel, at time.Time) (bool, error) {
	query := `UPDATE recovery_contacts SET verified_at = ?
		WHERE user_id = ? AND channel = ? AND verified_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, timex.ToUnix(at), userID[:], string(channel))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}
