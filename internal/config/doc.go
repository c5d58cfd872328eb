// Package config loads runtime settings for the vault.
//
// Sources are layered, later ones win:
//
//  1. built-in defaults (LoadDefaults)
//  2. an optional .env file, then VAULTURE_* environment variables
//  3. a JSON file named with -c/-config
//  4. command-line flags
//
// Secret settings may hold a "keyring:<name>" reference, resolved from the
// OS keyring after all layers are applied. Validate rejects impossible values
// with common.ErrConfiguration; callers treat that as fatal.
package config
