package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/EiDHindY/vaulture/internal/common"
)

// StoreSecret prompts for a secret setting without echo and hands it to
// store, which keeps it outside the configuration files.
func StoreSecret(name string, w io.Writer, store func(name, secret string) error) error {
	if name == "" {
		return errors.New("secret name is required")
	}
	secret, err := getPassword("Value for "+name, w)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)
	if len(secret) == 0 {
		return errors.New("empty secret")
	}
	if err := store(name, string(secret)); err != nil {
		return fmt.Errorf("store secret %q: %w", name, err)
	}
	fmt.Fprintf(w, "Stored. Refer to it as \"keyring:%s\".\n", name)
	return nil
}
