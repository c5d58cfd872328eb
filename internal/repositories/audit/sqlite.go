package audit

import (
	"context"
	"fmt"

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

func userArg(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id[:]
}

func (r *SQLiteRepository) Append(ctx context.Context, ev *models.AuditEvent) error {
	query := `INSERT INTO audit_log (event_type, user_id, occurred_at, source_ip, detail)
		VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		string(ev.Type), userArg(ev.UserID), timex.ToUnix(ev.Timestamp), ev.SourceIP, ev.Detail)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ev.ID = id
	return nil
}

const selectEvents = `SELECT id, event_type, user_id, occurred_at, source_ip, detail FROM audit_log`

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEvent, error) {
	return r.list(ctx, selectEvents+` WHERE user_id = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`, userID[:], limit)
}

func (r *SQLiteRepository) ListByType(ctx context.Context, typ models.EventType, limit int) ([]models.AuditEvent, error) {
	return r.list(ctx, selectEvents+` WHERE event_type = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`, string(typ), limit)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, key any, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, query, key, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.AuditEvent
	for rows.Next() {
		var (
			ev       models.AuditEvent
			typ      string
			userID   []byte
			occurred int64
		)
		if err := rows.Scan(&ev.ID, &typ, &userID, &occurred, &ev.SourceIP, &ev.Detail); err != nil {
			return nil, err
		}
		ev.Type = models.EventType(typ)
		ev.Timestamp = timex.FromUnix(occurred)
		if len(userID) > 0 {
			if ev.UserID, err = uuid.FromBytes(userID); err != nil {
				return nil, fmt.Errorf("bad user id in audit row %d: %w", ev.ID, err)
			}
		}
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

var _ Repository = (*SQLiteRepository)(nil)
