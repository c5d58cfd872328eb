package cryptox

import (
	"bytes"
	"strings"
	"testing"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKDF(t *testing.T) *KDF {
	t.Helper()
	k, err := NewKDF(TestParams)
	require.NoError(t, err)
	return k
}

func TestDerive_VerifyRoundTrip(t *testing.T) {
	k := newTestKDF(t)
	salt := k.NewSalt()

	key, verifier, err := k.Derive([]byte("Str0ng!Pass123"), salt)
	require.NoError(t, err)
	defer key.Wipe()

	ok, err := k.Verify([]byte("Str0ng!Pass123"), verifier)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = k.Verify([]byte("Str0ng!Pass124"), verifier)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDerive_WipesPassword(t *testing.T) {
	k := newTestKDF(t)
	pw := []byte("Str0ng!Pass123")

	key, _, err := k.Derive(pw, k.NewSalt())
	require.NoError(t, err)
	key.Wipe()

	assert.Equal(t, make([]byte, len(pw)), pw)
}

func TestDerive_WipesPasswordOnFailure(t *testing.T) {
	k := newTestKDF(t)
	pw := []byte("Str0ng!Pass123")

	_, _, err := k.Derive(pw, []byte("short"))
	require.ErrorIs(t, err, common.ErrConfiguration)
	assert.Equal(t, make([]byte, len(pw)), pw)
}

func TestOpen_ReturnsDerivedKey(t *testing.T) {
	k := newTestKDF(t)
	salt := k.NewSalt()

	key, verifier, err := k.Derive([]byte("correct horse"), salt)
	require.NoError(t, err)

	opened, err := k.Open([]byte("correct horse"), verifier)
	require.NoError(t, err)
	assert.True(t, key.Equal(opened))

	_, err = k.Open([]byte("wrong horse"), verifier)
	require.ErrorIs(t, err, common.ErrAuthentication)
}

func TestDerive_DifferentSaltsDifferentKeys(t *testing.T) {
	k := newTestKDF(t)

	k1, v1, err := k.Derive([]byte("same password"), k.NewSalt())
	require.NoError(t, err)
	k2, v2, err := k.Derive([]byte("same password"), k.NewSalt())
	require.NoError(t, err)

	assert.False(t, k1.Equal(k2))
	assert.NotEqual(t, v1, v2)
}

func TestVerifier_DoesNotContainVaultKey(t *testing.T) {
	k := newTestKDF(t)
	salt := k.NewSalt()

	key, verifier, err := k.Derive([]byte("Str0ng!Pass123"), salt)
	require.NoError(t, err)

	parsed, err := parseVerifier(verifier)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(parsed.hash, key.Bytes()))
	assert.Equal(t, salt, parsed.salt)
	assert.True(t, strings.HasPrefix(verifier, "$argon2id$v=19$"))
}

func TestVerify_UsesEmbeddedParams(t *testing.T) {
	old := newTestKDF(t)
	_, verifier, err := old.Derive([]byte("Str0ng!Pass123"), old.NewSalt())
	require.NoError(t, err)

	p := TestParams
	p.Time = 2
	newer, err := NewKDF(p)
	require.NoError(t, err)

	ok, err := newer.Verify([]byte("Str0ng!Pass123"), verifier)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewKDF_RejectsBadParams(t *testing.T) {
	tests := []struct {
		name string
		mod  func(p *Params)
	}{
		{"zero time", func(p *Params) { p.Time = 0 }},
		{"zero threads", func(p *Params) { p.Threads = 0 }},
		{"too little memory", func(p *Params) { p.MemoryKiB = 7; p.Threads = 1 }},
		{"short salt", func(p *Params) { p.SaltLen = 8 }},
		{"odd key length", func(p *Params) { p.KeyLen = 20 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := TestParams
			tc.mod(&p)
			_, err := NewKDF(p)
			require.ErrorIs(t, err, common.ErrConfiguration)
		})
	}
}

func TestParseVerifier_Malformed(t *testing.T) {
	for _, s := range []string{
		"",
		"$2a$10$bcrypt",
		"$argon2id$v=19$m=64,t=1,p=1,k=32$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=64,t=1,p=1,k=32$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		"$argon2id$v=19$m=64,t=0,p=1,k=32$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	} {
		_, err := parseVerifier(s)
		assert.ErrorIs(t, err, common.ErrConfiguration, "verifier %q", s)
	}
}

func TestSalt_ExtractsEmbeddedSalt(t *testing.T) {
	k := newTestKDF(t)
	salt := k.NewSalt()
	_, verifier, err := k.Derive([]byte("Str0ng!Pass123"), salt)
	require.NoError(t, err)

	got, err := Salt(verifier)
	require.NoError(t, err)
	assert.Equal(t, salt, got)
}
