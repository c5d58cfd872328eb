package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/EiDHindY/vaulture/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// MinSaltLen is the smallest accepted salt (128 bits).
	MinSaltLen = 16

	hashHalf       = 32
	vaultKeyInfo   = "vaulture/vault-key/v1"
	verifierPrefix = "$argon2id$"
)

// Params are the Argon2id cost parameters. They are fixed at build time via
// DefaultParams and only overridden from configuration.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	SaltLen   int
	KeyLen    int
}

// DefaultParams follow the RFC 9106 second recommended option.
var DefaultParams = Params{
	Time:      3,
	MemoryKiB: 64 * 1024,
	Threads:   4,
	SaltLen:   16,
	KeyLen:    32,
}

// TestParams keep unit tests fast. Never use them for real vaults.
var TestParams = Params{
	Time:      1,
	MemoryKiB: 64,
	Threads:   1,
	SaltLen:   16,
	KeyLen:    32,
}

// Validate reports ErrConfiguration for parameters Argon2id cannot run with
// or that would weaken the vault below its guarantees.
func (p Params) Validate() error {
	switch {
	case p.Time == 0:
		return fmt.Errorf("%w: argon2 time cost must be positive", common.ErrConfiguration)
	case p.Threads == 0:
		return fmt.Errorf("%w: argon2 parallelism must be positive", common.ErrConfiguration)
	case p.MemoryKiB < 8*uint32(p.Threads):
		return fmt.Errorf("%w: argon2 memory must be at least 8 KiB per thread", common.ErrConfiguration)
	case p.SaltLen < MinSaltLen:
		return fmt.Errorf("%w: salt must be at least %d bytes", common.ErrConfiguration, MinSaltLen)
	case p.KeyLen != 16 && p.KeyLen != 24 && p.KeyLen != 32:
		return fmt.Errorf("%w: vault key must be 16, 24 or 32 bytes", common.ErrConfiguration)
	}
	return nil
}

// KDF derives vault keys and verifiers from master passwords.
type KDF struct {
	params Params
}

// NewKDF validates p and returns a KDF bound to it.
func NewKDF(p Params) (*KDF, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &KDF{params: p}, nil
}

// Params returns the parameters new verifiers are created with.
func (k *KDF) Params() Params { return k.params }

// NewSalt returns a fresh random salt. Salts are never reused across accounts.
func (k *KDF) NewSalt() []byte {
	return common.GenerateRandByteArray(k.params.SaltLen)
}

// Derive computes the vault key and the verifier for password and salt.
// password is wiped before Derive returns.
func (k *KDF) Derive(password, salt []byte) (*Key, string, error) {
	defer common.WipeByteArray(password)

	if len(salt) < MinSaltLen {
		return nil, "", fmt.Errorf("%w: salt is %d bytes, need at least %d", common.ErrConfiguration, len(salt), MinSaltLen)
	}

	raw := argon2.IDKey(password, salt, k.params.Time, k.params.MemoryKiB, k.params.Threads, 2*hashHalf)
	defer common.WipeByteArray(raw)

	key, err := expandVaultKey(raw[hashHalf:], salt, k.params.KeyLen)
	if err != nil {
		return nil, "", err
	}

	v := verifier{
		time:    k.params.Time,
		memory:  k.params.MemoryKiB,
		threads: k.params.Threads,
		keyLen:  k.params.KeyLen,
		salt:    salt,
		hash:    append([]byte(nil), raw[:hashHalf]...),
	}
	return key, v.String(), nil
}

// Verify reports whether password matches the encoded verifier. The cost
// parameters embedded in the verifier are used, so older accounts keep
// verifying after DefaultParams change. password is wiped.
func (k *KDF) Verify(password []byte, encoded string) (bool, error) {
	key, err := k.Open(password, encoded)
	if err != nil {
		if errors.Is(err, common.ErrAuthentication) {
			return false, nil
		}
		return false, err
	}
	key.Wipe()
	return true, nil
}

// Open verifies password against the encoded verifier and, on a match,
// returns the vault key. A mismatch yields common.ErrAuthentication.
// password is wiped.
func (k *KDF) Open(password []byte, encoded string) (*Key, error) {
	defer common.WipeByteArray(password)

	v, err := parseVerifier(encoded)
	if err != nil {
		return nil, err
	}

	raw := argon2.IDKey(password, v.salt, v.time, v.memory, v.threads, 2*hashHalf)
	defer common.WipeByteArray(raw)

	if subtle.ConstantTimeCompare(raw[:hashHalf], v.hash) != 1 {
		return nil, common.ErrAuthentication
	}
	return expandVaultKey(raw[hashHalf:], v.salt, v.keyLen)
}

// Salt extracts the salt embedded in an encoded verifier.
func Salt(encoded string) ([]byte, error) {
	v, err := parseVerifier(encoded)
	if err != nil {
		return nil, err
	}
	return v.salt, nil
}

func expandVaultKey(secret, salt []byte, n int) (*Key, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(vaultKeyInfo))
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("expand vault key: %w", err)
	}
	return NewKey(out), nil
}

type verifier struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  int
	salt    []byte
	hash    []byte
}

func (v verifier) String() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d,k=%d$%s$%s",
		verifierPrefix, argon2.Version, v.memory, v.time, v.threads, v.keyLen,
		b64.EncodeToString(v.salt), b64.EncodeToString(v.hash))
}

func parseVerifier(s string) (verifier, error) {
	var v verifier
	bad := func(what string) (verifier, error) {
		return verifier{}, fmt.Errorf("%w: malformed verifier (%s)", common.ErrConfiguration, what)
	}

	if !strings.HasPrefix(s, verifierPrefix) {
		return bad("prefix")
	}
	parts := strings.Split(strings.TrimPrefix(s, verifierPrefix), "$")
	if len(parts) != 4 {
		return bad("sections")
	}

	var version int
	if _, err := fmt.Sscanf(parts[0], "v=%d", &version); err != nil || version != argon2.Version {
		return bad("version")
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[1], "m=%d,t=%d,p=%d,k=%d", &v.memory, &v.time, &threads, &v.keyLen); err != nil {
		return bad("parameters")
	}
	if threads == 0 || threads > 255 || v.time == 0 {
		return bad("parameters")
	}
	v.threads = uint8(threads)
	if v.keyLen != 16 && v.keyLen != 24 && v.keyLen != 32 {
		return bad("key length")
	}

	var err error
	b64 := base64.RawStdEncoding
	if v.salt, err = b64.DecodeString(parts[2]); err != nil || len(v.salt) < MinSaltLen {
		return bad("salt")
	}
	if v.hash, err = b64.DecodeString(parts[3]); err != nil || len(v.hash) != hashHalf {
		return bad("hash")
	}
	return v, nil
}
