package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/flagx"
	"github.com/EiDHindY/vaulture/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so files may say "90s" or give nanoseconds. Absent keys
// leave the current value untouched.
type JsonConfig struct {
	DatabasePath string `json:"database_path"`
	LogPath      string `json:"log_path"`
	LogLevel     string `json:"log_level"`

	KDFTime      uint32 `json:"kdf_time"`
	KDFMemoryKiB uint32 `json:"kdf_memory_kib"`
	KDFThreads   uint8  `json:"kdf_threads"`
	KDFSaltLen   int    `json:"kdf_salt_len"`

	InactivityThreshold timex.Duration `json:"inactivity_threshold"`
	AutolockInterval    timex.Duration `json:"autolock_interval"`
	MaxUnlockAttempts   int            `json:"max_unlock_attempts"`
	LockoutCooldown     timex.Duration `json:"lockout_cooldown"`

	OTPLength        int            `json:"otp_length"`
	OTPTTL           timex.Duration `json:"otp_ttl"`
	OTPMaxAttempts   int            `json:"otp_max_attempts"`
	RegistrationTTL  timex.Duration `json:"registration_ttl"`
	RecoveryPolicy   string         `json:"recovery_policy"`
	RecoveryGrantTTL timex.Duration `json:"recovery_grant_ttl"`

	TwilioAccountSID string `json:"twilio_account_sid"`
	TwilioAuthToken  string `json:"twilio_auth_token"`
	TwilioFrom       string `json:"twilio_from"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from"`

	S3Bucket    string `json:"s3_bucket"`
	S3Region    string `json:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint"`
	S3AccessKey string `json:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key"`

	BackupDir     string `json:"backup_dir"`
	BackupArchive string `json:"backup_archive"`
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDur(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

// parseJson overlays cfg with the JSON file named by -c/-config, if any.
func parseJson(cfg *Config) error {
	path := flagx.ConfigFile()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", common.ErrConfiguration, path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("%w: parse %s: %v", common.ErrConfiguration, path, err)
	}

	setStr(&cfg.DatabasePath, jc.DatabasePath)
	setStr(&cfg.LogPath, jc.LogPath)
	setStr(&cfg.LogLevel, jc.LogLevel)

	if jc.KDFTime != 0 {
		cfg.KDFTime = jc.KDFTime
	}
	if jc.KDFMemoryKiB != 0 {
		cfg.KDFMemoryKiB = jc.KDFMemoryKiB
	}
	if jc.KDFThreads != 0 {
		cfg.KDFThreads = jc.KDFThreads
	}
	setInt(&cfg.KDFSaltLen, jc.KDFSaltLen)

	setDur(&cfg.InactivityThreshold, jc.InactivityThreshold)
	setDur(&cfg.AutolockInterval, jc.AutolockInterval)
	setInt(&cfg.MaxUnlockAttempts, jc.MaxUnlockAttempts)
	setDur(&cfg.LockoutCooldown, jc.LockoutCooldown)

	setInt(&cfg.OTPLength, jc.OTPLength)
	setDur(&cfg.OTPTTL, jc.OTPTTL)
	setInt(&cfg.OTPMaxAttempts, jc.OTPMaxAttempts)
	setDur(&cfg.RegistrationTTL, jc.RegistrationTTL)
	setStr(&cfg.RecoveryPolicy, jc.RecoveryPolicy)
	setDur(&cfg.RecoveryGrantTTL, jc.RecoveryGrantTTL)

	setStr(&cfg.TwilioAccountSID, jc.TwilioAccountSID)
	setStr(&cfg.TwilioAuthToken, jc.TwilioAuthToken)
	setStr(&cfg.TwilioFrom, jc.TwilioFrom)

	setStr(&cfg.SMTPHost, jc.SMTPHost)
	setInt(&cfg.SMTPPort, jc.SMTPPort)
	setStr(&cfg.SMTPUser, jc.SMTPUser)
	setStr(&cfg.SMTPPassword, jc.SMTPPassword)
	setStr(&cfg.SMTPFrom, jc.SMTPFrom)

	setStr(&cfg.S3Bucket, jc.S3Bucket)
	setStr(&cfg.S3Region, jc.S3Region)
	setStr(&cfg.S3Endpoint, jc.S3Endpoint)
	setStr(&cfg.S3AccessKey, jc.S3AccessKey)
	setStr(&cfg.S3SecretKey, jc.S3SecretKey)

	setStr(&cfg.BackupDir, jc.BackupDir)
	setStr(&cfg.BackupArchive, jc.BackupArchive)
	return nil
}
