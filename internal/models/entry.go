package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Overview is the plaintext of Entry.Overview.
type Overview struct {
	Tag   string `json:"tag,omitempty"`
	Label string `json:"label"`
}

// Details is the plaintext of Entry.Details.
type Details struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	URL      string `json:"url,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Credential is what a caller stores: an optional category tag, a site or
// label, and the secret fields.
type Credential struct {
	Tag      string
	Label    string
	Username string
	Password string
	URL      string
	Notes    string
}

// Overview returns the listing half of c.
func (c Credential) Overview() Overview {
	return Overview{Tag: c.Tag, Label: c.Label}
}

// Details returns the secret half of c.
func (c Credential) Details() Details {
	return Details{Username: c.Username, Password: c.Password, URL: c.URL, Notes: c.Notes}
}

// CredentialFrom joins the two plaintext halves.
func CredentialFrom(o Overview, d Details) Credential {
	return Credential{
		Tag:      o.Tag,
		Label:    o.Label,
		Username: d.Username,
		Password: d.Password,
		URL:      d.URL,
		Notes:    d.Notes,
	}
}

// VaultEntry is a decrypted entry. Listings fill only Tag and Label; Get
// fills every field.
type VaultEntry struct {
	ID        string
	UserID    uuid.UUID
	UpdatedAt time.Time
	Credential
}

// Matches reports whether query occurs, case-insensitively, in the label or
// the tag. An empty query matches everything.
func (e VaultEntry) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(e.Label), q) ||
		strings.Contains(strings.ToLower(e.Tag), q)
}
