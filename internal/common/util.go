package common

import (
	"crypto/rand"
)

// GenerateRandByteArray returns size bytes from crypto/rand. A failing system
// RNG leaves the process unable to produce keys or nonces, so it panics.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return b
}

// WipeByteArray overwrites b with zeros. Use it for passwords and keys as
// soon as they are no longer needed. A nil slice is ignored.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
