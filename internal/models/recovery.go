package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is an out-of-band recovery contact kind.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelMobile Channel = "mobile"
)

// Channels lists every channel in a stable order.
var Channels = []Channel{ChannelEmail, ChannelMobile}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelMobile
}

// RecoveryContact is a user's e-mail address or mobile number. It can be used
// for recovery only once VerifiedAt is set.
type RecoveryContact struct {
	UserID     uuid.UUID
	Channel    Channel
	Value      string
	VerifiedAt *time.Time
}

// Verified reports whether the contact passed OTP verification.
func (c RecoveryContact) Verified() bool {
	return c.VerifiedAt != nil
}

// RecoveryToken is a single-use OTP bound to a user and channel. Only a hash
// of the code is persisted; Code is populated transiently at issue time.
type RecoveryToken struct {
	ID           string
	UserID       uuid.UUID
	Channel      Channel
	Code         string
	CodeHash     []byte
	IssuedAt     time.Time
	ExpiresAt    time.Time
	AttemptsUsed int
	Consumed     bool
}

// Live reports whether the token can still be verified at now.
func (t RecoveryToken) Live(now time.Time, maxAttempts int) bool {
	return !t.Consumed && now.Before(t.ExpiresAt) && t.AttemptsUsed < maxAttempts
}

// VerificationResult is the outcome of a verify call.
type VerificationResult struct {
	TokenID           string
	UserID            uuid.UUID
	Channel           Channel
	Verified          bool
	AttemptsRemaining int
}
