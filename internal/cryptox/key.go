package cryptox

import (
	"crypto/subtle"

	"github.com/EiDHindY/vaulture/internal/common"
)

// Key is a symmetric vault key held in memory only. Wipe it as soon as it is
// no longer needed; a wiped key reports IsWiped and has zero-filled bytes.
type Key struct {
	b     []byte
	wiped bool
}

// NewKey takes ownership of b.
func NewKey(b []byte) *Key {
	return &Key{b: b}
}

// Bytes exposes the raw key. The slice aliases the key's memory and becomes
// all zeros after Wipe.
func (k *Key) Bytes() []byte {
	if k == nil {
		return nil
	}
	return k.b
}

// Wipe zeroes the key material. It is safe to call more than once and on a
// nil key.
func (k *Key) Wipe() {
	if k == nil {
		return
	}
	common.WipeByteArray(k.b)
	k.wiped = true
}

// IsWiped reports whether Wipe was called.
func (k *Key) IsWiped() bool {
	return k == nil || k.wiped
}

// Equal compares two keys in constant time.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return false
	}
	return subtle.ConstantTimeCompare(k.b, other.b) == 1
}
