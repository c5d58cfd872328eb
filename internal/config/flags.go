package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/flagx"
)

var knownFlags = []string{
	"-d", "-db",
	"-log", "-log-level",
	"-idle", "-autolock-interval",
	"-attempts", "-cooldown",
	"-recovery-policy",
	"-backup-dir",
}

// parseFlags overlays cfg with command-line flags.
//
//	-d, -db string            database file
//	-log string               log file ("" logs to stderr)
//	-log-level string         debug, info, warn or error
//	-idle duration            inactivity threshold before autolock
//	-autolock-interval dur    how often the autolock monitor checks
//	-attempts int             failed unlocks before lockout
//	-cooldown duration        lockout length
//	-recovery-policy string   all or any
//	-backup-dir string        directory remote for backups
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("vaulture", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "database file")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "database file")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "log file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.DurationVar(&cfg.InactivityThreshold, "idle", cfg.InactivityThreshold, "inactivity threshold")
	fs.DurationVar(&cfg.AutolockInterval, "autolock-interval", cfg.AutolockInterval, "autolock check interval")
	fs.IntVar(&cfg.MaxUnlockAttempts, "attempts", cfg.MaxUnlockAttempts, "failed unlocks before lockout")
	fs.DurationVar(&cfg.LockoutCooldown, "cooldown", cfg.LockoutCooldown, "lockout cooldown")
	fs.StringVar(&cfg.RecoveryPolicy, "recovery-policy", cfg.RecoveryPolicy, "all or any")
	fs.StringVar(&cfg.BackupDir, "backup-dir", cfg.BackupDir, "backup directory")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return nil
}
