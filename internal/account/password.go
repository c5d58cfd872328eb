package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/cryptox"
	"github.com/EiDHindY/vaulture/internal/dbx"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/session"
)

// ChangeMasterPassword re-derives the vault key from newPassword and
// re-encrypts every entry under it. The rewrite, the new verifier and the
// audit event commit in one transaction; on any failure the store and the
// session keep the old key. The vault must be unlocked. Both passwords are
// wiped.
func (s *Service) ChangeMasterPassword(ctx context.Context, oldPassword, newPassword []byte) error {
	defer common.WipeByteArray(oldPassword)
	defer common.WipeByteArray(newPassword)

	userID, ok := s.sessions.CurrentUser()
	if !ok || s.sessions.State() != session.Unlocked {
		return common.ErrVaultLocked
	}
	if err := CheckPassword(newPassword); err != nil {
		return s.fail(ctx, models.EventPasswordChangeFailed, userID, err)
	}

	u, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.sessions.Authenticate(ctx, userID, oldPassword, u.PasswordVerifier); err != nil {
		return s.fail(ctx, models.EventPasswordChangeFailed, userID, err)
	}

	newKey, verifier, err := s.derive(newPassword)
	if err != nil {
		return s.fail(ctx, models.EventPasswordChangeFailed, userID, err)
	}

	var n int
	err = s.sessions.Rotate(ctx, userID, func(oldKey *cryptox.Key) (*cryptox.Key, string, error) {
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			var err error
			if n, err = s.store.Reencrypt(ctx, tx, userID, oldKey, newKey); err != nil {
				return err
			}
			if err := s.repos.Users(tx).UpdateVerifier(ctx, userID, verifier); err != nil {
				return err
			}
			return s.audit.RecordTx(ctx, tx, models.EventPasswordChanged, userID, fmt.Sprintf("%d entries re-encrypted", n))
		})
		return newKey, verifier, err
	})
	if err != nil {
		newKey.Wipe()
		return s.fail(ctx, models.EventPasswordChangeFailed, userID, err)
	}
	s.log.Info(ctx, "master password changed", "user_id", userID, "entries", n)
	return nil
}

// DeleteAccount re-authenticates the session user with password, then
// deletes the user with its entries, contacts and tokens and ends the
// session. Audit events are kept. password is wiped.
func (s *Service) DeleteAccount(ctx context.Context, password []byte) error {
	defer common.WipeByteArray(password)

	userID, err := s.currentUser()
	if err != nil {
		return err
	}
	u, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.sessions.Authenticate(ctx, userID, password, u.PasswordVerifier); err != nil {
		return s.fail(ctx, models.EventUserDeleteFailed, userID, err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repos.Tokens(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.repos.Users(tx).Delete(ctx, userID); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, tx, models.EventUserDeleted, userID, u.Username)
	})
	if err != nil {
		return s.fail(ctx, models.EventUserDeleteFailed, userID, err)
	}

	if err := s.sessions.Logout(ctx); err != nil && !errors.Is(err, common.ErrNoSession) {
		return err
	}
	s.log.Info(ctx, "account deleted", "user_id", userID)
	return nil
}
