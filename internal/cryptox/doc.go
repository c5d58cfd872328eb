// Package cryptox holds the vault's cryptographic primitives.
//
// # Key derivation
//
// A KDF turns a master password and a per-account salt into two independent
// artifacts with a single Argon2id pass of 64 bytes:
//
//   - the verifier, a PHC-formatted string holding the salt, the cost
//     parameters and the first 32 bytes of the hash; it is safe to persist;
//   - the vault key, HKDF-SHA256 over the second 32 bytes. Knowing the
//     verifier does not reveal it.
//
// Every function that accepts a password wipes it before returning, on
// success and on failure alike. Callers must not reuse the buffer.
//
// # Envelope
//
// Seal and Open implement AES-256-GCM with a fresh 12-byte nonce per call and
// caller-supplied additional data. Any failure to open maps to
// common.ErrCorruptEntry.
package cryptox
