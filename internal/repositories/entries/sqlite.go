package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/dbx"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/timex"
	"github.com/google/uuid"
)

// SQLiteRepository implements Repository over a DBTX (*sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a SQLiteRepository bound to db.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, e *models.Entry) error {
	query := `INSERT INTO vault_entries (id, user_id, overview, nonce_overview, details, nonce_details, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID[:], e.Overview, e.NonceOverview, e.Details, e.NonceDetails, timex.ToUnix(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, e *models.Entry) error {
	query := `UPDATE vault_entries
		SET overview = ?, nonce_overview = ?, details = ?, nonce_details = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`
	res, err := r.db.ExecContext(ctx, query,
		e.Overview, e.NonceOverview, e.Details, e.NonceDetails, timex.ToUnix(e.UpdatedAt), e.ID, e.UserID[:])
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return expectOne(res)
}

// Upsert writes e, replacing an existing row with the same id only when it
// belongs to the same user. A row owned by someone else is reported as a
// validation failure.
func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.Entry) error {
	query := `INSERT INTO vault_entries (id, user_id, overview, nonce_overview, details, nonce_details, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET overview = excluded.overview,
			nonce_overview = excluded.nonce_overview,
			details = excluded.details,
			nonce_details = excluded.nonce_details,
			updated_at = excluded.updated_at
		WHERE vault_entries.user_id = excluded.user_id`
	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID[:], e.Overview, e.NonceOverview, e.Details, e.NonceDetails, timex.ToUnix(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("%w: entry %s belongs to another user", common.ErrInvalidEntry, e.ID)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, userID uuid.UUID, id string) (*models.Entry, error) {
	query := `SELECT id, user_id, overview, nonce_overview, details, nonce_details, updated_at
		FROM vault_entries WHERE id = ? AND user_id = ?`

	e := &models.Entry{}
	var updated int64
	err := r.db.QueryRowContext(ctx, query, id, userID[:]).
		Scan(&e.ID, &e.UserID, &e.Overview, &e.NonceOverview, &e.Details, &e.NonceDetails, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	e.UpdatedAt = timex.FromUnix(updated)
	return e, nil
}

func (r *SQLiteRepository) ListOverviews(ctx context.Context, userID uuid.UUID) ([]models.Entry, error) {
	query := `SELECT id, overview, nonce_overview, updated_at
		FROM vault_entries WHERE user_id = ?
		ORDER BY updated_at DESC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID[:])
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []models.Entry
	for rows.Next() {
		item := models.Entry{UserID: userID}
		var updated int64
		if err := rows.Scan(&item.ID, &item.Overview, &item.NonceOverview, &updated); err != nil {
			return nil, err
		}
		item.UpdatedAt = timex.FromUnix(updated)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) ListAll(ctx context.Context, userID uuid.UUID) ([]models.Entry, error) {
	query := `SELECT id, overview, nonce_overview, details, nonce_details, updated_at
		FROM vault_entries WHERE user_id = ?
		ORDER BY updated_at DESC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID[:])
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []models.Entry
	for rows.Next() {
		item := models.Entry{UserID: userID}
		var updated int64
		if err := rows.Scan(&item.ID, &item.Overview, &item.NonceOverview, &item.Details, &item.NonceDetails, &updated); err != nil {
			return nil, err
		}
		item.UpdatedAt = timex.FromUnix(updated)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes one entry. It expects exactly one row to be affected.
func (r *SQLiteRepository) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vault_entries WHERE id = ? AND user_id = ?`, id, userID[:])
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vault_entries WHERE user_id = ?`, userID[:])
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func expectOne(res sql.Result) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}
