// Package app wires configuration, storage, the vault services and the CLI
// into a runnable program and owns their lifetime.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/EiDHindY/vaulture/internal/account"
	"github.com/EiDHindY/vaulture/internal/audit"
	"github.com/EiDHindY/vaulture/internal/auth"
	"github.com/EiDHindY/vaulture/internal/backup"
	"github.com/EiDHindY/vaulture/internal/cli"
	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/config"
	"github.com/EiDHindY/vaulture/internal/cryptox"
	"github.com/EiDHindY/vaulture/internal/filex"
	"github.com/EiDHindY/vaulture/internal/logging"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/notify"
	"github.com/EiDHindY/vaulture/internal/recovery"
	"github.com/EiDHindY/vaulture/internal/repositories/repomanager"
	"github.com/EiDHindY/vaulture/internal/session"
	"github.com/EiDHindY/vaulture/internal/storage"
	"github.com/EiDHindY/vaulture/internal/vault"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *session.Manager
	recovery *recovery.Manager
	accounts *account.Service
	backups  *backup.Service
	remote   backup.Remote
	closers  []io.Closer
}

// NewApp opens the database and builds every service from c. Close releases
// what it opened.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logCloser, err := logging.New(logging.Options{Level: c.LogLevel, Path: c.LogPath})
	if err != nil {
		return nil, fmt.Errorf("%w: logging: %v", common.ErrConfiguration, err)
	}
	app := &App{config: c, logger: logger, closers: []io.Closer{logCloser}}

	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	kdf, err := cryptox.NewKDF(c.KDFParams())
	if err != nil {
		return err
	}

	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return err
	}
	db, err := storage.Open(ctx, storage.FileDSN(c.DatabasePath))
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db)

	repos := repomanager.NewSQLiteRepositoryManager()
	rec := audit.NewRecorder(db, repos, app.logger, nil)

	app.sessions = session.NewManager(kdf, session.Options{
		InactivityThreshold: c.InactivityThreshold,
		MaxAttempts:         c.MaxUnlockAttempts,
		Cooldown:            c.LockoutCooldown,
		Logger:              app.logger.With("component", "session"),
	})
	store := vault.NewStore(db, repos, app.sessions, rec, app.logger.With("component", "vault"), nil)

	app.recovery = recovery.NewManager(db, repos, app.notifier(), rec, recovery.Options{
		CodeLength:  c.OTPLength,
		TTL:         c.OTPTTL,
		MaxAttempts: c.OTPMaxAttempts,
		Logger:      app.logger.With("component", "recovery"),
	})

	app.accounts = account.New(account.Deps{
		DB:       db,
		Repos:    repos,
		KDF:      kdf,
		Sessions: app.sessions,
		Store:    store,
		Recovery: app.recovery,
		Grants:   auth.NewGrants(c.RecoveryGrantTTL, nil),
		Audit:    rec,
	}, account.Options{
		PendingTTL:     c.RegistrationTTL,
		RecoveryPolicy: account.RecoveryPolicy(c.RecoveryPolicy),
		Logger:         app.logger.With("component", "account"),
	})

	app.backups = backup.NewService(db, repos, app.sessions, rec, app.logger.With("component", "backup"), nil)
	app.remote, err = app.backupRemote(ctx)
	return err
}

// notifier routes e-mail through SMTP and SMS through Twilio when they are
// configured, and prints codes to the terminal otherwise.
func (app *App) notifier() *notify.Dispatcher {
	c := app.config
	d := notify.NewDispatcher(app.logger.With("component", "notify"), notify.WithCodeTTL(c.OTPTTL))

	if c.SMTPHost != "" {
		d.Register(models.ChannelEmail, notify.NewSMTPSender(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.SMTPFrom))
	} else {
		d.Register(models.ChannelEmail, notify.NewConsoleSender(os.Stdout, "email"))
	}
	if c.TwilioAccountSID != "" {
		d.Register(models.ChannelMobile, notify.NewTwilioSender(c.TwilioAccountSID, c.TwilioAuthToken, c.TwilioFrom))
	} else {
		d.Register(models.ChannelMobile, notify.NewConsoleSender(os.Stdout, "sms"))
	}
	return d
}

// backupRemote picks S3, then a bbolt archive, then a plain directory.
func (app *App) backupRemote(ctx context.Context) (backup.Remote, error) {
	c := app.config
	switch {
	case c.S3Bucket != "":
		r, err := backup.NewS3Remote(ctx, backup.S3Config{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	case c.BackupArchive != "":
		if err := filex.EnsureParentDir(c.BackupArchive); err != nil {
			return nil, err
		}
		r, err := backup.OpenBoltRemote(c.BackupArchive)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, r)
		return r, nil
	case c.BackupDir != "":
		return backup.NewDirRemote(c.BackupDir), nil
	}
	return nil, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run purges stale recovery tokens, then runs the autolock monitor alongside
// the REPL until the user exits or a signal arrives. The session is logged
// out on the way out so the key is wiped.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	if n, err := app.recovery.PurgeExpired(ctx); err != nil {
		app.logger.Warn(ctx, "purge expired tokens", "error", err)
	} else if n > 0 {
		app.logger.Info(ctx, "purged expired tokens", "count", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.sessions.Run(gctx, app.config.AutolockInterval)
		return nil
	})

	// The REPL blocks on stdin, so it is not waited for after a signal.
	done := make(chan struct{})
	go func() {
		defer close(done)
		cli.NewApp(app.accounts, app.accounts.Store(), app.backups, app.remote).Run(gctx)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	cancelFunc()
	err := g.Wait()

	_ = app.accounts.Logout(context.Background())
	app.logger.Info(context.Background(), "Stopped")
	return err
}

// Close releases the database, backup archive and log file in reverse
// order of opening.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i].Close())
	}
	app.closers = nil
	return errors.Join(errs...)
}
