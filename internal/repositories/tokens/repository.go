// Package tokens persists recovery OTP tokens. Only the code hash is stored.
package tokens

import (
	"context"
	"time"

	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *models.RecoveryToken) error
	Get(ctx context.Context, id string) (*models.RecoveryToken, error)
	// InvalidateLive consumes every unconsumed token for the user and channel.
	InvalidateLive(ctx context.Context, userID uuid.UUID, channel models.Channel) (int64, error)
	// RecordFailure increments attempts_used and consumes the token when
	// exhaust is set. It returns the new attempt count.
	RecordFailure(ctx context.Context, id string, exhaust bool) (int, error)
	// Consume marks the token used. Only an unconsumed token is changed.
	Consume(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteStale removes tokens that expired before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}
