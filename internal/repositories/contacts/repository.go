// Package contacts persists recovery contacts (e-mail and mobile) per user.
package contacts

import (
	"context"
	"time"

	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/google/uuid"
)

type Repository interface {
	// Upsert stores c. Changing the value of an existing contact clears its
	// verification.
	Upsert(ctx context.Context, c *models.RecoveryContact) error
	Get(ctx context.Context, userID uuid.UUID, channel models.Channel) (*models.RecoveryContact, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.RecoveryContact, error)
	// MarkVerified sets verified_at if it is not set yet and reports whether
	// the row changed.
	MarkVerified(ctx context.Context, userID uuid.UUID, channel models.Channel, at time.Time) (bool, error)
}
