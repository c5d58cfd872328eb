package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an audit event. Every terminal outcome has its own type.
type EventType string

const (
	EventUserCreated           EventType = "user_created"
	EventUserCreateFailed      EventType = "user_create_failed"
	EventUserDeleted           EventType = "user_deleted"
	EventUserDeleteFailed      EventType = "user_delete_failed"
	EventPasswordChanged       EventType = "password_changed"
	EventPasswordChangeFailed  EventType = "password_change_failed"
	EventAccountRecovered      EventType = "account_recovered"
	EventAccountRecoveryFailed EventType = "account_recovery_failed"
	EventLogin                 EventType = "login"
	EventLoginFailed           EventType = "login_failed"
	EventLogout                EventType = "logout"
	EventVaultUnlocked         EventType = "vault_unlocked"
	EventUnlockFailed          EventType = "unlock_failed"
	EventVaultLocked           EventType = "vault_locked"
	EventVaultAutolocked       EventType = "vault_autolocked"
	EventLockedOut             EventType = "locked_out"
	EventEntryCreated          EventType = "entry_created"
	EventEntryUpdated          EventType = "entry_updated"
	EventEntryDeleted          EventType = "entry_deleted"
	EventTokenIssued           EventType = "token_issued"
	EventContactVerified       EventType = "contact_verified"
	EventVaultExported         EventType = "vault_exported"
	EventVaultImported         EventType = "vault_imported"
)

// AuditEvent is an append-only audit record. UserID is uuid.Nil when the
// subject is unknown (for example a login for a username that does not
// exist).
type AuditEvent struct {
	ID        int64
	Type      EventType
	UserID    uuid.UUID
	Timestamp time.Time
	SourceIP  string
	Detail    string
}
