package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/EiDHindY/vaulture/internal/account"
	"github.com/EiDHindY/vaulture/internal/backup"
	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/session"
	"github.com/google/uuid"
)

// Accounts is the account surface the CLI drives. *account.Service
// satisfies it.
type Accounts interface {
	CreateAccount(ctx context.Context, username string, password []byte, email, mobile string) (*account.Registration, error)
	ConfirmContact(ctx context.Context, userID uuid.UUID, tokenID, code string) (bool, error)
	ResendCode(ctx context.Context, userID uuid.UUID, channel models.Channel) (*account.Registration, error)
	Login(ctx context.Context, username string, password []byte) error
	Unlock(ctx context.Context, password []byte) error
	Lock(ctx context.Context) error
	Logout(ctx context.Context) error
	ChangeMasterPassword(ctx context.Context, oldPassword, newPassword []byte) error
	DeleteAccount(ctx context.Context, password []byte) error
	StartRecovery(ctx context.Context, username string) (*account.RecoveryChallenge, error)
	VerifyRecovery(ctx context.Context, tokenID, code string) (*account.RecoveryProgress, error)
	RecoverAccount(ctx context.Context, grant string, newPassword []byte) (int64, error)
	History(ctx context.Context, limit int) ([]models.AuditEvent, error)
	Status() (session.Info, bool)
}

// Vault is the credential store surface. *vault.Store satisfies it.
type Vault interface {
	Put(ctx context.Context, userID uuid.UUID, c models.Credential) (string, error)
	Get(ctx context.Context, userID uuid.UUID, id string) (*models.VaultEntry, error)
	Update(ctx context.Context, userID uuid.UUID, id string, c models.Credential) error
	Delete(ctx context.Context, userID uuid.UUID, id string) error
	List(ctx context.Context, userID uuid.UUID, tag *string) ([]models.VaultEntry, error)
	Search(ctx context.Context, userID uuid.UUID, query string, tag *string) ([]models.VaultEntry, error)
}

// Backups exports and restores vault snapshots. *backup.Service satisfies it.
type Backups interface {
	Backup(ctx context.Context, userID uuid.UUID, r backup.Remote) (string, error)
	Restore(ctx context.Context, userID uuid.UUID, r backup.Remote, name string) (int, error)
}

// App is one interactive session of the CLI.
type App struct {
	accounts Accounts
	vault    Vault
	backups  Backups
	remote   backup.Remote

	reader *bufio.Reader
	out    io.Writer

	userName     string
	registration *account.Registration
	challenge    *account.RecoveryChallenge
	grant        string
}

// NewApp returns an App reading stdin and writing stdout. remote may be nil,
// which disables backup and restore.
func NewApp(accounts Accounts, vault Vault, backups Backups, remote backup.Remote) *App {
	return &App{
		accounts: accounts,
		vault:    vault,
		backups:  backups,
		remote:   remote,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
}

// Run starts the REPL and blocks until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to vaulture (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}

func (a *App) hasSession() bool {
	_, ok := a.accounts.Status()
	return ok
}

// status renders the prompt suffix: user and lock state.
func (a *App) status() string {
	info, ok := a.accounts.Status()
	switch {
	case ok && a.userName != "":
		return fmt.Sprintf("(%s %s)", a.userName, info.State)
	case ok:
		return fmt.Sprintf("(%s)", info.State)
	case a.registration != nil:
		return "(confirming " + a.registration.Username + ")"
	}
	return ""
}

// user returns the session user or ErrNoSession.
func (a *App) user() (uuid.UUID, error) {
	info, ok := a.accounts.Status()
	if !ok {
		return uuid.Nil, common.ErrNoSession
	}
	return info.UserID, nil
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
