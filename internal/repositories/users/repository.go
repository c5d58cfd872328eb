// Package users persists User identity records.
package users

import (
	"context"

	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/google/uuid"
)

// Repository stores users. Usernames are compared case-insensitively; callers
// pass them already normalized.
type Repository interface {
	// Create inserts u. A duplicate username yields common.ErrUsernameTaken.
	Create(ctx context.Context, u *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	UpdateVerifier(ctx context.Context, id uuid.UUID, verifier string) error
	// Delete removes the user; entries and contacts follow by cascade.
	Delete(ctx context.Context, id uuid.UUID) error
}
