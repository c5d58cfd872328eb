package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/flagx"
	"github.com/joho/godotenv"
)

const (
	envPrefix      = "VAULTURE_"
	defaultEnvFile = ".env"
)

// envBinder copies VAULTURE_* variables into Config fields, keeping the
// first conversion error.
type envBinder struct {
	err error
}

func (b *envBinder) lookup(name string) (string, bool) {
	if b.err != nil {
		return "", false
	}
	return os.LookupEnv(envPrefix + name)
}

func (b *envBinder) fail(name, v string, err error) {
	b.err = fmt.Errorf("%w: %s%s=%q: %v", common.ErrConfiguration, envPrefix, name, v, err)
}

func (b *envBinder) str(name string, dst *string) {
	if v, ok := b.lookup(name); ok {
		*dst = v
	}
}

func (b *envBinder) integer(name string, dst *int) {
	if v, ok := b.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			b.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (b *envBinder) uint(name string, bits int, set func(uint64)) {
	if v, ok := b.lookup(name); ok {
		n, err := strconv.ParseUint(v, 10, bits)
		if err != nil {
			b.fail(name, v, err)
			return
		}
		set(n)
	}
}

func (b *envBinder) duration(name string, dst *time.Duration) {
	if v, ok := b.lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			b.fail(name, v, err)
			return
		}
		*dst = d
	}
}

// loadDotEnv is a seam for tests.
var loadDotEnv = godotenv.Load

// parseEnv loads the dotenv file (-env, else ./.env when present) without
// overriding variables already set, then overlays VAULTURE_* variables.
func parseEnv(cfg *Config) error {
	file := flagx.EnvFile()
	explicit := file != ""
	if !explicit {
		file = defaultEnvFile
	}
	if err := loadDotEnv(file); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: load %s: %v", common.ErrConfiguration, file, err)
		}
	}

	b := &envBinder{}
	b.str("DB_PATH", &cfg.DatabasePath)
	b.str("LOG_PATH", &cfg.LogPath)
	b.str("LOG_LEVEL", &cfg.LogLevel)

	b.uint("KDF_TIME", 32, func(n uint64) { cfg.KDFTime = uint32(n) })
	b.uint("KDF_MEMORY_KIB", 32, func(n uint64) { cfg.KDFMemoryKiB = uint32(n) })
	b.uint("KDF_THREADS", 8, func(n uint64) { cfg.KDFThreads = uint8(n) })
	b.integer("KDF_SALT_LEN", &cfg.KDFSaltLen)

	b.duration("INACTIVITY_THRESHOLD", &cfg.InactivityThreshold)
	b.duration("AUTOLOCK_INTERVAL", &cfg.AutolockInterval)
	b.integer("MAX_UNLOCK_ATTEMPTS", &cfg.MaxUnlockAttempts)
	b.duration("LOCKOUT_COOLDOWN", &cfg.LockoutCooldown)

	b.integer("OTP_LENGTH", &cfg.OTPLength)
	b.duration("OTP_TTL", &cfg.OTPTTL)
	b.integer("OTP_MAX_ATTEMPTS", &cfg.OTPMaxAttempts)
	b.duration("REGISTRATION_TTL", &cfg.RegistrationTTL)
	b.str("RECOVERY_POLICY", &cfg.RecoveryPolicy)
	b.duration("RECOVERY_GRANT_TTL", &cfg.RecoveryGrantTTL)

	b.str("TWILIO_ACCOUNT_SID", &cfg.TwilioAccountSID)
	b.str("TWILIO_AUTH_TOKEN", &cfg.TwilioAuthToken)
	b.str("TWILIO_FROM", &cfg.TwilioFrom)

	b.str("SMTP_HOST", &cfg.SMTPHost)
	b.integer("SMTP_PORT", &cfg.SMTPPort)
	b.str("SMTP_USER", &cfg.SMTPUser)
	b.str("SMTP_PASSWORD", &cfg.SMTPPassword)
	b.str("SMTP_FROM", &cfg.SMTPFrom)

	b.str("S3_BUCKET", &cfg.S3Bucket)
	b.str("S3_REGION", &cfg.S3Region)
	b.str("S3_ENDPOINT", &cfg.S3Endpoint)
	b.str("S3_ACCESS_KEY", &cfg.S3AccessKey)
	b.str("S3_SECRET_KEY", &cfg.S3SecretKey)

	b.str("BACKUP_DIR", &cfg.BackupDir)
	b.str("BACKUP_ARCHIVE", &cfg.BackupArchive)

	return b.err
}
