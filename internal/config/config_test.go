package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// withArgs replaces os.Args for the duration of the test and runs it from an
// empty directory so a developer's .env cannot leak in.
func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"testbin"}, args...)
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, 5*time.Minute, c.InactivityThreshold)
	assert.Equal(t, 5, c.MaxUnlockAttempts)
	assert.Equal(t, 6, c.OTPLength)
	assert.Equal(t, 10*time.Minute, c.OTPTTL)
	assert.Equal(t, RecoveryPolicyAll, c.RecoveryPolicy)
	assert.Equal(t, cryptox.DefaultParams, c.KDFParams())
	assert.Equal(t, "vault.db", filepath.Base(c.DatabasePath))
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero kdf time", func(c *Config) { c.KDFTime = 0 }},
		{"short salt", func(c *Config) { c.KDFSaltLen = 8 }},
		{"no database", func(c *Config) { c.DatabasePath = "" }},
		{"zero idle", func(c *Config) { c.InactivityThreshold = 0 }},
		{"interval above idle", func(c *Config) { c.AutolockInterval = time.Hour }},
		{"no attempts", func(c *Config) { c.MaxUnlockAttempts = 0 }},
		{"otp too short", func(c *Config) { c.OTPLength = 2 }},
		{"unknown policy", func(c *Config) { c.RecoveryPolicy = "either" }},
		{"bad smtp port", func(c *Config) { c.SMTPHost = "mail"; c.SMTPPort = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tc.mutate(&c)
			assert.ErrorIs(t, c.Validate(), common.ErrConfiguration)
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	withArgs(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.InactivityThreshold)
}

func TestLoadConfig_Precedence(t *testing.T) {
	withArgs(t)
	dir := t.TempDir()

	envFile := filepath.Join(dir, "vaulture.env")
	require.NoError(t, os.WriteFile(envFile, []byte("VAULTURE_LOG_LEVEL=debug\nVAULTURE_MAX_UNLOCK_ATTEMPTS=7\n"), 0o600))
	jsonFile := writeTempJSON(t, dir, "cfg.json", map[string]any{
		"max_unlock_attempts":  9,
		"inactivity_threshold": "2m",
	})
	// godotenv writes straight into the process environment; register the
	// key with t.Setenv first so it is restored afterwards.
	t.Setenv("VAULTURE_MAX_UNLOCK_ATTEMPTS", "")
	require.NoError(t, os.Unsetenv("VAULTURE_MAX_UNLOCK_ATTEMPTS"))
	t.Setenv("VAULTURE_RECOVERY_POLICY", "any")
	t.Setenv("VAULTURE_LOG_LEVEL", "warn")
	os.Args = []string{"testbin", "-env", envFile, "-c", jsonFile, "-idle", "90s"}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel, "process environment beats .env")
	assert.Equal(t, RecoveryPolicyAny, cfg.RecoveryPolicy)
	assert.Equal(t, 9, cfg.MaxUnlockAttempts, "json beats environment")
	assert.Equal(t, 90*time.Second, cfg.InactivityThreshold, "flags beat json")
}

func TestLoadConfig_InvalidIsConfigurationError(t *testing.T) {
	withArgs(t, "-attempts", "0")

	_, err := LoadConfig()
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestParseEnv(t *testing.T) {
	withArgs(t)
	t.Setenv("VAULTURE_DB_PATH", "/tmp/v.db")
	t.Setenv("VAULTURE_KDF_THREADS", "2")
	t.Setenv("VAULTURE_OTP_TTL", "3m")

	var cfg Config
	cfg.LoadDefaults()
	require.NoError(t, parseEnv(&cfg))

	assert.Equal(t, "/tmp/v.db", cfg.DatabasePath)
	assert.EqualValues(t, 2, cfg.KDFThreads)
	assert.Equal(t, 3*time.Minute, cfg.OTPTTL)
}

func TestParseEnv_BadValues(t *testing.T) {
	for name, value := range map[string]string{
		"VAULTURE_OTP_TTL":          "soon",
		"VAULTURE_KDF_THREADS":      "300",
		"VAULTURE_OTP_MAX_ATTEMPTS": "five",
	} {
		t.Run(name, func(t *testing.T) {
			withArgs(t)
			t.Setenv(name, value)

			var cfg Config
			err := parseEnv(&cfg)
			assert.ErrorIs(t, err, common.ErrConfiguration)
		})
	}
}

func TestParseEnv_MissingExplicitFile(t *testing.T) {
	withArgs(t, "-env", "/does/not/exist.env")

	var cfg Config
	assert.ErrorIs(t, parseEnv(&cfg), common.ErrConfiguration)
}

func TestParseEnv_DotEnvLoaderError(t *testing.T) {
	withArgs(t)
	orig := loadDotEnv
	t.Cleanup(func() { loadDotEnv = orig })
	loadDotEnv = func(...string) error { return errors.New("unreadable") }

	var cfg Config
	assert.ErrorIs(t, parseEnv(&cfg), common.ErrConfiguration)
}

func TestResolveSecrets(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, StoreSecret("smtp", "mail-pass"))

	cfg := &Config{SMTPPassword: "keyring:smtp", TwilioAuthToken: "plain"}
	require.NoError(t, resolveSecrets(cfg))
	assert.Equal(t, "mail-pass", cfg.SMTPPassword)
	assert.Equal(t, "plain", cfg.TwilioAuthToken)

	cfg = &Config{S3SecretKey: "keyring:missing"}
	assert.ErrorIs(t, resolveSecrets(cfg), common.ErrConfiguration)
}
