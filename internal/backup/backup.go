// Package backup moves a user's vault to and from remote storage as one
// opaque blob. The blob holds the sealed rows, sealed once more under the
// vault key, so a remote never sees plaintext and a blob only restores into
// a session holding the same key.
package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/EiDHindY/vaulture/internal/audit"
	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/cryptox"
	"github.com/EiDHindY/vaulture/internal/dbx"
	"github.com/EiDHindY/vaulture/internal/logging"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/repositories/repomanager"
	"github.com/EiDHindY/vaulture/internal/vault"
	"github.com/google/uuid"
)

// FormatVersion is written into every blob.
const FormatVersion = 1

// Extension is the suffix of blob names.
const Extension = ".vbk"

var ErrNoBackup = errors.New("no backup found")

// Remote stores named blobs.
type Remote interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

type envelope struct {
	Version   int       `json:"v"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Nonce     []byte    `json:"nonce"`
	Payload   []byte    `json:"payload"`
}

type row struct {
	ID            string    `json:"id"`
	Overview      []byte    `json:"overview"`
	NonceOverview []byte    `json:"nonce_overview"`
	Details       []byte    `json:"details"`
	NonceDetails  []byte    `json:"nonce_details"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func blobAAD(userID uuid.UUID) []byte {
	return append([]byte("vaulture/backup/v1"), userID[:]...)
}

// Service exports and imports vault blobs.
type Service struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	keys  vault.KeyHolder
	audit *audit.Recorder
	log   logging.Logger
	now   func() time.Time
}

func NewService(db *sql.DB, repos repomanager.RepositoryManager, keys vault.KeyHolder, rec *audit.Recorder, log logging.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{db: db, repos: repos, keys: keys, audit: rec, log: log, now: now}
}

// Export seals every entry of userID into a blob. It needs the user's
// unlocked session.
func (s *Service) Export(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	var blob []byte
	err := s.keys.WithKey(ctx, userID, func(key *cryptox.Key) error {
		entries, err := s.repos.Entries(s.db).ListAll(ctx, userID)
		if err != nil {
			return fmt.Errorf("error listing entries: %w", err)
		}
		rows := make([]row, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, row{
				ID:            e.ID,
				Overview:      e.Overview,
				NonceOverview: e.NonceOverview,
				Details:       e.Details,
				NonceDetails:  e.NonceDetails,
				UpdatedAt:     e.UpdatedAt,
			})
		}
		payload, err := json.Marshal(rows)
		if err != nil {
			return err
		}
		ct, nonce, err := cryptox.Seal(key, payload, blobAAD(userID))
		if err != nil {
			return err
		}
		blob, err = json.Marshal(envelope{
			Version:   FormatVersion,
			UserID:    userID,
			CreatedAt: s.now().UTC(),
			Nonce:     nonce,
			Payload:   ct,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Import restores the entries in blob for userID in one transaction.
// Entries already present are overwritten; others are left alone. The blob
// must open under the session key and every entry in it must decrypt, or
// nothing is written and the error matches common.ErrCorruptEntry.
func (s *Service) Import(ctx context.Context, userID uuid.UUID, blob []byte) (int, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return 0, fmt.Errorf("%w: unreadable backup: %v", common.ErrCorruptEntry, err)
	}
	if env.Version != FormatVersion {
		return 0, fmt.Errorf("%w: unsupported backup version %d", common.ErrValidation, env.Version)
	}
	if env.UserID != userID {
		return 0, fmt.Errorf("%w: backup belongs to another account", common.ErrValidation)
	}

	var n int
	err := s.keys.WithKey(ctx, userID, func(key *cryptox.Key) error {
		payload, err := cryptox.Open(key, env.Payload, env.Nonce, blobAAD(userID))
		if err != nil {
			return fmt.Errorf("backup does not open with this vault key: %w", err)
		}
		var rows []row
		if err := json.Unmarshal(payload, &rows); err != nil {
			return fmt.Errorf("%w: %v", common.ErrCorruptEntry, err)
		}

		entries := make([]*models.Entry, 0, len(rows))
		for _, r := range rows {
			e := &models.Entry{
				ID:            r.ID,
				UserID:        userID,
				Overview:      r.Overview,
				NonceOverview: r.NonceOverview,
				Details:       r.Details,
				NonceDetails:  r.NonceDetails,
				UpdatedAt:     r.UpdatedAt,
			}
			if _, err := vault.Open(key, e); err != nil {
				return fmt.Errorf("entry %s: %w", r.ID, err)
			}
			entries = append(entries, e)
		}

		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.repos.Entries(tx)
			for _, e := range entries {
				if err := repo.Upsert(ctx, e); err != nil {
					return fmt.Errorf("error restoring entry %s: %w", e.ID, err)
				}
			}
			n = len(entries)
			if s.audit == nil {
				return nil
			}
			return s.audit.RecordTx(ctx, tx, models.EventVaultImported, userID, fmt.Sprintf("%d entries", n))
		})
	})
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "vault imported", "user_id", userID, "entries", n)
	return n, nil
}

// Name returns the blob name for a backup of userID taken at t. Names of one
// user sort by time.
func Name(userID uuid.UUID, t time.Time) string {
	return Prefix(userID) + t.UTC().Format("20060102T150405.000000000Z") + Extension
}

// Prefix is the name prefix shared by every backup of userID.
func Prefix(userID uuid.UUID) string {
	return "vault-" + userID.String() + "-"
}

// Backup exports the vault of userID to r and returns the blob name.
func (s *Service) Backup(ctx context.Context, userID uuid.UUID, r Remote) (string, error) {
	blob, err := s.Export(ctx, userID)
	if err != nil {
		return "", err
	}
	name := Name(userID, s.now())
	if err := r.Put(ctx, name, blob); err != nil {
		s.log.Error(ctx, "backup upload failed", "user_id", userID, "error", err)
		return "", fmt.Errorf("upload backup: %w", err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, models.EventVaultExported, userID, name)
	}
	s.log.Info(ctx, "vault exported", "user_id", userID, "name", name, "bytes", len(blob))
	return name, nil
}

// Latest returns the newest backup name of userID on r.
func Latest(ctx context.Context, r Remote, userID uuid.UUID) (string, error) {
	names, err := r.List(ctx, Prefix(userID))
	if err != nil {
		return "", fmt.Errorf("list backups: %w", err)
	}
	names = filter(names, userID)
	if len(names) == 0 {
		return "", ErrNoBackup
	}
	sort.Strings(names)
	return names[len(names)-1], nil
}

func filter(names []string, userID uuid.UUID) []string {
	out := names[:0:0]
	for _, n := range names {
		if strings.HasPrefix(n, Prefix(userID)) && strings.HasSuffix(n, Extension) {
			out = append(out, n)
		}
	}
	return out
}

// Restore imports the named backup from r, or the newest one when name is
// empty.
func (s *Service) Restore(ctx context.Context, userID uuid.UUID, r Remote, name string) (int, error) {
	if name == "" {
		latest, err := Latest(ctx, r, userID)
		if err != nil {
			return 0, err
		}
		name = latest
	}
	blob, err := r.Get(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("download backup: %w", err)
	}
	return s.Import(ctx, userID, blob)
}
