// Package audit persists the append-only audit log. The table rejects
// UPDATE and DELETE, so the repository only appends and reads.
package audit

import (
	"context"

	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/google/uuid"
)

type Repository interface {
	// Append stores ev and sets ev.ID.
	Append(ctx context.Context, ev *models.AuditEvent) error
	// ListByUser returns the newest events first. limit <= 0 means no limit.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEvent, error)
	// ListByType returns events of one type, newest first.
	ListByType(ctx context.Context, typ models.EventType, limit int) ([]models.AuditEvent, error)
}
