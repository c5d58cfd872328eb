package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the identity record. PasswordVerifier is the Argon2id PHC string
// (salt embedded); the raw password is never stored.
type User struct {
	ID               uuid.UUID
	Username         string
	PasswordVerifier string
	RecoveryEmail    string
	RecoveryMobile   string
	CreatedAt        time.Time
}

// NormalizeUsername trims surrounding whitespace and lowercases. Usernames are
// always compared and stored in this form.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
