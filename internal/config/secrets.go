package config

import (
	"fmt"
	"strings"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service under which secret settings live.
const KeyringService = "vaulture"

const keyringRef = "keyring:"

// keyringGet is a seam for tests.
var keyringGet = keyring.Get

// resolveSecrets replaces "keyring:<name>" values of secret settings with the
// secret stored in the OS keyring under KeyringService/<name>.
func resolveSecrets(cfg *Config) error {
	for _, field := range []*string{
		&cfg.TwilioAuthToken,
		&cfg.SMTPPassword,
		&cfg.S3SecretKey,
	} {
		name, ok := strings.CutPrefix(*field, keyringRef)
		if !ok {
			continue
		}
		secret, err := keyringGet(KeyringService, name)
		if err != nil {
			return fmt.Errorf("%w: keyring secret %q: %v", common.ErrConfiguration, name, err)
		}
		*field = secret
	}
	return nil
}

// StoreSecret saves a secret setting in the OS keyring so configuration can
// refer to it as "keyring:<name>".
func StoreSecret(name, secret string) error {
	return keyring.Set(KeyringService, name, secret)
}
