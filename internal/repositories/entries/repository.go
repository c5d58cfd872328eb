// Package entries persists sealed vault entries. Rows are always addressed by
// owning user id and entry id together.
package entries

import (
	"context"

	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/google/uuid"
)

// Repository describes storage operations for sealed Entry rows.
type Repository interface {
	Insert(ctx context.Context, e *models.Entry) error
	// Update replaces both sealed halves and updated_at.
	Update(ctx context.Context, e *models.Entry) error
	// Upsert inserts or replaces a row owned by the same user.
	Upsert(ctx context.Context, e *models.Entry) error
	GetByID(ctx context.Context, userID uuid.UUID, id string) (*models.Entry, error)
	// ListOverviews returns id, overview and updated_at for every row of the
	// user, newest first, ties broken by id.
	ListOverviews(ctx context.Context, userID uuid.UUID) ([]models.Entry, error)
	// ListAll returns complete rows in the same order.
	ListAll(ctx context.Context, userID uuid.UUID) ([]models.Entry, error)
	Delete(ctx context.Context, userID uuid.UUID, id string) error
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
}
