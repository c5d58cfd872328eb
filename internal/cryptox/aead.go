package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"fmt"

	"github.com/EiDHindY/vaulture/internal/common"
)

// NonceSize is the AES-GCM nonce length used for every seal.
const NonceSize = 12

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key with a fresh random nonce. aad is
// authenticated but not encrypted; the same aad must be passed to Open.
func Seal(key *Key, plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	if key.IsWiped() {
		return nil, nil, common.ErrVaultLocked
	}
	aesgcm, err := newGCM(key.Bytes())
	if err != nil {
		return nil, nil, err
	}
	nonce = common.GenerateRandByteArray(NonceSize)
	return aesgcm.Seal(nil, nonce, plaintext, aad), nonce, nil
}

// Open decrypts and authenticates ciphertext. A wrong key, a tampered
// ciphertext, a wrong nonce or mismatching aad all yield ErrCorruptEntry.
func Open(key *Key, ciphertext, nonce, aad []byte) ([]byte, error) {
	if key.IsWiped() {
		return nil, common.ErrVaultLocked
	}
	aesgcm, err := newGCM(key.Bytes())
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, common.ErrCorruptEntry
	}
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, common.ErrCorruptEntry
	}
	return plaintext, nil
}

// EncryptEntry serializes v to JSON and seals it. The intermediate plaintext
// is wiped.
func EncryptEntry(v any, key *Key, aad []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(plaintext)
	return Seal(key, plaintext, aad)
}

// DecryptEntry opens ciphertext and unmarshals the JSON into v. Undecodable
// plaintext is reported as ErrCorruptEntry as well.
func DecryptEntry(ciphertext, nonce []byte, key *Key, aad []byte, v any) error {
	plaintext, err := Open(key, ciphertext, nonce, aad)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCorruptEntry, err)
	}
	return nil
}
