// Package vault is the credential store. Entries are sealed with the vault key
// of the caller's unlocked session; the store never holds a key itself.
package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/EiDHindY/vaulture/internal/audit"
	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/cryptox"
	"github.com/EiDHindY/vaulture/internal/dbx"
	"github.com/EiDHindY/vaulture/internal/logging"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	MaxLabelLen = 256
	MaxTagLen   = 64
)

const (
	partOverview = "overview"
	partDetails  = "details"
)

// KeyHolder lends the vault key of userID's unlocked session to fn.
// session.Manager implements it.
type KeyHolder interface {
	WithKey(ctx context.Context, userID uuid.UUID, fn func(key *cryptox.Key) error) error
}

// Store encrypts, persists and decrypts vault entries.
type Store struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	keys  KeyHolder
	audit *audit.Recorder
	log   logging.Logger
	now   func() time.Time
}

// NewStore returns a Store. rec may be nil, in which case entry changes are
// not audited.
func NewStore(db *sql.DB, repos repomanager.RepositoryManager, keys KeyHolder, rec *audit.Recorder, log logging.Logger, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Store{db: db, repos: repos, keys: keys, audit: rec, log: log, now: now}
}

// AAD binds a sealed half to its owner, its entry and its position, so rows
// cannot be swapped between users, entries or halves.
func AAD(userID uuid.UUID, entryID, part string) []byte {
	b := make([]byte, 0, len(userID)+len(entryID)+len(part))
	b = append(b, userID[:]...)
	b = append(b, entryID...)
	return append(b, part...)
}

// Validate checks the shape of c.
func Validate(c models.Credential) error {
	label := strings.TrimSpace(c.Label)
	switch {
	case label == "":
		return fmt.Errorf("%w: label is required", common.ErrInvalidEntry)
	case utf8.RuneCountInString(label) > MaxLabelLen:
		return fmt.Errorf("%w: label longer than %d characters", common.ErrInvalidEntry, MaxLabelLen)
	case utf8.RuneCountInString(c.Tag) > MaxTagLen:
		return fmt.Errorf("%w: tag longer than %d characters", common.ErrInvalidEntry, MaxTagLen)
	}
	return nil
}

// Seal encrypts both halves of c for entry id of userID.
func Seal(key *cryptox.Key, userID uuid.UUID, id string, c models.Credential, at time.Time) (*models.Entry, error) {
	ov, ovNonce, err := cryptox.EncryptEntry(c.Overview(), key, AAD(userID, id, partOverview))
	if err != nil {
		return nil, fmt.Errorf("encryption error: %w", err)
	}
	det, detNonce, err := cryptox.EncryptEntry(c.Details(), key, AAD(userID, id, partDetails))
	if err != nil {
		return nil, fmt.Errorf("encryption error: %w", err)
	}
	return &models.Entry{
		ID:            id,
		UserID:        userID,
		Overview:      ov,
		NonceOverview: ovNonce,
		Details:       det,
		NonceDetails:  detNonce,
		UpdatedAt:     at.UTC(),
	}, nil
}

func openOverview(key *cryptox.Key, e *models.Entry) (models.Overview, error) {
	var o models.Overview
	err := cryptox.DecryptEntry(e.Overview, e.NonceOverview, key, AAD(e.UserID, e.ID, partOverview), &o)
	return o, err
}

// Open decrypts both halves of e.
func Open(key *cryptox.Key, e *models.Entry) (*models.VaultEntry, error) {
	o, err := openOverview(key, e)
	if err != nil {
		return nil, err
	}
	var d models.Details
	if err := cryptox.DecryptEntry(e.Details, e.NonceDetails, key, AAD(e.UserID, e.ID, partDetails), &d); err != nil {
		return nil, err
	}
	return &models.VaultEntry{ID: e.ID, UserID: e.UserID, UpdatedAt: e.UpdatedAt, Credential: models.CredentialFrom(o, d)}, nil
}

func (s *Store) record(ctx context.Context, tx dbx.DBTX, typ models.EventType, userID uuid.UUID, id string) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.RecordTx(ctx, tx, typ, userID, "entry "+id)
}

// Put seals c under the session key and stores it as a new entry.
func (s *Store) Put(ctx context.Context, userID uuid.UUID, c models.Credential) (string, error) {
	if err := Validate(c); err != nil {
		return "", err
	}
	c.Label = strings.TrimSpace(c.Label)
	id := uuid.NewString()

	err := s.keys.WithKey(ctx, userID, func(key *cryptox.Key) error {
		e, err := Seal(key, userID, id, c, s.now())
		if err != nil {
			return err
		}
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.repos.Entries(tx).Insert(ctx, e); err != nil {
				return fmt.Errorf("saving error: %w", err)
			}
			return s.record(ctx, tx, models.EventEntryCreated, userID, id)
		})
	})
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "entry created", "user_id", userID, "entry_id", id)
	return id, nil
}

// Get returns the fully decrypted entry.
func (s *Store) Get(ctx context.Context, userID uuid.UUID, id string) (*models.VaultEntry, error) {
	var out *models.VaultEntry
	err := s.keys.WithKey(ctx, userID, func(key *cryptox.Key) error {
		e, err := s.repos.Entries(s.db).GetByID(ctx, userID, id)
		if err != nil {
			return fmt.Errorf("error retrieving entry: %w", err)
		}
		out, err = Open(key, e)
		if err != nil {
			s.log.Warn(ctx, "entry failed authentication", "user_id", userID, "entry_id", id)
			return fmt.Errorf("entry %s: %w", id, err)
		}
		return nil
	})
	return out, err
}

// Update replaces the contents of an existing entry with c.
func (s *Store) Update(ctx context.Context, userID uuid.UUID, id string, c models.Credential) error {
	if err := Validate(c); err != nil {
		return err
	}
	c.Label = strings.TrimSpace(c.Label)

	err := s.keys.WithKey(ctx, userID, func(key *cryptox.Key) error {
		e, err := Seal(key, userID, id, c, s.now())
		if err != nil {
			return err
		}
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.repos.Entries(tx).Update(ctx, e); err != nil {
				return fmt.Errorf("error updating entry: %w", err)
			}
			return s.record(ctx, tx, models.EventEntryUpdated, userID, id)
		})
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "entry updated", "user_id", userID, "entry_id", id)
	return nil
}

// Delete removes an entry. It requires an unlocked session like every other
// store operation.
func (s *Store) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	err := s.keys.WithKey(ctx, userID, func(*cryptox.Key) error {
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.repos.Entries(tx).Delete(ctx, userID, id); err != nil {
				return fmt.Errorf("error deleting entry: %w", err)
			}
			return s.record(ctx, tx, models.EventEntryDeleted, userID, id)
		})
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "entry deleted", "user_id", userID, "entry_id", id)
	return nil
}

// List returns the tag and label of every entry, newest first. A non-nil tag
// keeps only entries whose tag equals it exactly. Entries that fail to
// decrypt are left out and reported together in the returned error, next to
// the readable ones.
func (s *Store) List(ctx context.Context, userID uuid.UUID, tag *string) ([]models.VaultEntry, error) {
	return s.list(ctx, userID, tag, func(models.VaultEntry) bool { return true })
}

// Search is List restricted to entries whose label or tag contains query,
// ignoring case.
func (s *Store) Search(ctx context.Context, userID uuid.UUID, query string, tag *string) ([]models.VaultEntry, error) {
	return s.list(ctx, userID, tag, func(e models.VaultEntry) bool { return e.Matches(query) })
}

func (s *Store) list(ctx context.Context, userID uuid.UUID, tag *string, keep func(models.VaultEntry) bool) ([]models.VaultEntry, error) {
	var (
		result  []models.VaultEntry
		corrupt []error
	)
	err := s.keys.WithKey(ctx, userID, func(key *cryptox.Key) error {
		rows, err := s.repos.Entries(s.db).ListOverviews(ctx, userID)
		if err != nil {
			return fmt.Errorf("error listing entries: %w", err)
		}
		result = make([]models.VaultEntry, 0, len(rows))
		for i := range rows {
			o, err := openOverview(key, &rows[i])
			if err != nil {
				corrupt = append(corrupt, fmt.Errorf("entry %s: %w", rows[i].ID, err))
				continue
			}
			item := models.VaultEntry{
				ID:         rows[i].ID,
				UserID:     rows[i].UserID,
				UpdatedAt:  rows[i].UpdatedAt,
				Credential: models.Credential{Tag: o.Tag, Label: o.Label},
			}
			if tag != nil && item.Tag != *tag {
				continue
			}
			if keep(item) {
				result = append(result, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(corrupt) > 0 {
		s.log.Warn(ctx, "entries failed authentication", "user_id", userID, "count", len(corrupt))
	}
	return result, errors.Join(corrupt...)
}

// Reencrypt rewrites every entry of userID from oldKey to newKey through tx
// and returns the number of entries rewritten. Any failure aborts the whole
// rewrite; the caller rolls tx back so the store never mixes keys.
// updated_at is preserved.
func (s *Store) Reencrypt(ctx context.Context, tx dbx.DBTX, userID uuid.UUID, oldKey, newKey *cryptox.Key) (int, error) {
	repo := s.repos.Entries(tx)
	rows, err := repo.ListAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("error listing entries: %w", err)
	}
	for i := range rows {
		ve, err := Open(oldKey, &rows[i])
		if err != nil {
			return 0, fmt.Errorf("entry %s: %w", rows[i].ID, err)
		}
		e, err := Seal(newKey, userID, rows[i].ID, ve.Credential, rows[i].UpdatedAt)
		if err != nil {
			return 0, err
		}
		if err := repo.Update(ctx, e); err != nil {
			return 0, fmt.Errorf("error updating entry %s: %w", e.ID, err)
		}
	}
	return len(rows), nil
}
