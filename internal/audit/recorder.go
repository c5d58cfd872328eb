// Package audit writes the append-only audit trail. Events are written inside
// the caller's transaction when the outcome they describe is committed there,
// and on their own otherwise.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/EiDHindY/vaulture/internal/dbx"
	"github.com/EiDHindY/vaulture/internal/logging"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/repositories/repomanager"
	"github.com/google/uuid"
)

// LocalSource is recorded when the caller supplies no source address.
const LocalSource = "local"

type sourceKey struct{}

// WithSource returns a context that attributes audit events to src.
func WithSource(ctx context.Context, src string) context.Context {
	return context.WithValue(ctx, sourceKey{}, src)
}

// Source returns the event source carried by ctx, or LocalSource.
func Source(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return LocalSource
}

// Recorder appends audit events.
type Recorder struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	log   logging.Logger
	now   func() time.Time
}

// NewRecorder returns a Recorder writing through db.
func NewRecorder(db *sql.DB, repos repomanager.RepositoryManager, log logging.Logger, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{db: db, repos: repos, log: log, now: now}
}

func (r *Recorder) event(ctx context.Context, typ models.EventType, userID uuid.UUID, detail string) *models.AuditEvent {
	return &models.AuditEvent{
		Type:      typ,
		UserID:    userID,
		Timestamp: r.now().UTC(),
		SourceIP:  Source(ctx),
		Detail:    detail,
	}
}

// RecordTx appends the event through tx, so it commits or rolls back with
// the change it describes.
func (r *Recorder) RecordTx(ctx context.Context, tx dbx.DBTX, typ models.EventType, userID uuid.UUID, detail string) error {
	return r.repos.Audit(tx).Append(ctx, r.event(ctx, typ, userID, detail))
}

// Record appends the event on its own. A failure is logged and returned.
func (r *Recorder) Record(ctx context.Context, typ models.EventType, userID uuid.UUID, detail string) error {
	ev := r.event(ctx, typ, userID, detail)
	if err := r.repos.Audit(r.db).Append(ctx, ev); err != nil {
		r.log.Error(ctx, "audit write failed", "event", string(typ), "user_id", userID, "error", err)
		return err
	}
	r.log.Debug(ctx, "audit", "event", string(typ), "user_id", userID)
	return nil
}

// History returns the newest events for a user.
func (r *Recorder) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEvent, error) {
	return r.repos.Audit(r.db).ListByUser(ctx, userID, limit)
}
