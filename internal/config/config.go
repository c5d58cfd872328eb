package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/cryptox"
)

// Recovery policies.
const (
	RecoveryPolicyAll = "all"
	RecoveryPolicyAny = "any"
)

// Config holds runtime settings.
type Config struct {
	DatabasePath string
	LogPath      string
	LogLevel     string

	KDFTime      uint32
	KDFMemoryKiB uint32
	KDFThreads   uint8
	KDFSaltLen   int

	InactivityThreshold time.Duration
	AutolockInterval    time.Duration
	MaxUnlockAttempts   int
	LockoutCooldown     time.Duration

	OTPLength        int
	OTPTTL           time.Duration
	OTPMaxAttempts   int
	RegistrationTTL  time.Duration
	RecoveryPolicy   string
	RecoveryGrantTTL time.Duration

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// BackupArchive, when set, keeps backups in one bbolt file instead of
	// BackupDir. S3Bucket takes precedence over both.
	BackupDir     string
	BackupArchive string
}

// DataDir is the per-user directory holding the database, logs and local
// backups.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vaulture")
	}
	return ".vaulture"
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	dir := DataDir()
	p := cryptox.DefaultParams

	c.DatabasePath = filepath.Join(dir, "vault.db")
	c.LogPath = filepath.Join(dir, "logs", "vaulture.log")
	c.LogLevel = "info"

	c.KDFTime = p.Time
	c.KDFMemoryKiB = p.MemoryKiB
	c.KDFThreads = p.Threads
	c.KDFSaltLen = p.SaltLen

	c.InactivityThreshold = 5 * time.Minute
	c.AutolockInterval = 5 * time.Second
	c.MaxUnlockAttempts = 5
	c.LockoutCooldown = 5 * time.Minute

	c.OTPLength = 6
	c.OTPTTL = 10 * time.Minute
	c.OTPMaxAttempts = 5
	c.RegistrationTTL = 30 * time.Minute
	c.RecoveryPolicy = RecoveryPolicyAll
	c.RecoveryGrantTTL = 10 * time.Minute

	c.SMTPPort = 587
	c.S3Region = "us-east-1"

	c.BackupDir = filepath.Join(dir, "backups")
}

// KDFParams returns the key-derivation cost parameters.
func (c *Config) KDFParams() cryptox.Params {
	return cryptox.Params{
		Time:      c.KDFTime,
		MemoryKiB: c.KDFMemoryKiB,
		Threads:   c.KDFThreads,
		SaltLen:   c.KDFSaltLen,
		KeyLen:    cryptox.DefaultParams.KeyLen,
	}
}

// Validate reports the first impossible setting.
func (c *Config) Validate() error {
	if err := c.KDFParams().Validate(); err != nil {
		return err
	}
	switch {
	case c.DatabasePath == "":
		return fmt.Errorf("%w: database path is empty", common.ErrConfiguration)
	case c.InactivityThreshold <= 0:
		return fmt.Errorf("%w: inactivity threshold must be positive", common.ErrConfiguration)
	case c.AutolockInterval <= 0 || c.AutolockInterval > c.InactivityThreshold:
		return fmt.Errorf("%w: autolock interval must be in (0, inactivity threshold]", common.ErrConfiguration)
	case c.MaxUnlockAttempts < 1:
		return fmt.Errorf("%w: max unlock attempts must be at least 1", common.ErrConfiguration)
	case c.LockoutCooldown < 0:
		return fmt.Errorf("%w: lockout cooldown is negative", common.ErrConfiguration)
	case c.OTPLength < 4 || c.OTPLength > 10:
		return fmt.Errorf("%w: otp length must be 4..10", common.ErrConfiguration)
	case c.OTPTTL <= 0 || c.OTPMaxAttempts < 1:
		return fmt.Errorf("%w: otp ttl and attempts must be positive", common.ErrConfiguration)
	case c.RegistrationTTL <= 0 || c.RecoveryGrantTTL <= 0:
		return fmt.Errorf("%w: registration and grant ttl must be positive", common.ErrConfiguration)
	case c.RecoveryPolicy != RecoveryPolicyAll && c.RecoveryPolicy != RecoveryPolicyAny:
		return fmt.Errorf("%w: recovery policy %q (want all or any)", common.ErrConfiguration, c.RecoveryPolicy)
	case c.SMTPHost != "" && (c.SMTPPort <= 0 || c.SMTPPort > 65535):
		return fmt.Errorf("%w: smtp port %d", common.ErrConfiguration, c.SMTPPort)
	}
	return nil
}

// LoadConfig constructs a Config: defaults, then environment, then JSON,
// then flags, then keyring references. The result is validated.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if err := resolveSecrets(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
