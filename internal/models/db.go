// Package models defines the vault's persisted records and the plaintext views
// services hand to callers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a vault entry as persisted. Both halves are AEAD ciphertexts with
// their own nonce: Overview seals the tag and label (what listings and search
// need), Details seals the secret fields.
type Entry struct {
	// ID is the entry identifier (UUID string).
	ID string

	// UserID is the owning user. Entries are addressed by this index only.
	UserID uuid.UUID

	// Overview contains the sealed Overview JSON.
	Overview []byte
	// NonceOverview is the AEAD nonce for Overview.
	NonceOverview []byte

	// Details contains the sealed Details JSON.
	Details []byte
	// NonceDetails is the AEAD nonce for Details.
	NonceDetails []byte

	// UpdatedAt is the last modification time in UTC.
	UpdatedAt time.Time
}
