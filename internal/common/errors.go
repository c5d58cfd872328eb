// Package common defines the error taxonomy and small helpers shared by every
// Vaulture component. Callers should use errors.Is to match these values:
// refinements such as ErrUsernameTaken also match their class (ErrValidation).
package common

import "errors"

var (
	// ErrValidation reports bad input shape. The user corrects and retries.
	ErrValidation = errors.New("validation error")

	// ErrAuthentication reports a password or code that does not verify.
	ErrAuthentication = errors.New("authentication failed")

	// ErrVaultLocked is returned by credential operations while the session
	// is locked (or absent). The caller must unlock first.
	ErrVaultLocked = errors.New("vault is locked")

	// ErrCorruptEntry reports an authentication-tag failure on decrypt.
	ErrCorruptEntry = errors.New("corrupt entry")

	// Token lifecycle errors.
	ErrTokenExpired   = errors.New("token expired or already used")
	ErrTokenExhausted = errors.New("token attempts exhausted")

	// ErrConfiguration reports unusable cryptographic or runtime parameters.
	// It is fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrDelivery reports a notifier failure; the caller may resend.
	ErrDelivery = errors.New("delivery failed")

	// ErrNoSession is returned when an operation needs a logged-in session.
	ErrNoSession = errors.New("no active session")
)

// Refinements. Each one matches its class with errors.Is.
var (
	ErrUsernameTaken    = refine(ErrValidation, "username already taken")
	ErrWeakPassword     = refine(ErrValidation, "password does not meet policy")
	ErrInvalidUsername  = refine(ErrValidation, "invalid username")
	ErrInvalidEmail     = refine(ErrValidation, "invalid recovery email")
	ErrInvalidMobile    = refine(ErrValidation, "invalid recovery mobile")
	ErrInvalidEntry     = refine(ErrValidation, "invalid entry")
	ErrLockedOut        = refine(ErrAuthentication, "too many failed attempts, try again later")
	ErrInvalidCode      = refine(ErrAuthentication, "invalid verification code")
	ErrInvalidGrant     = refine(ErrAuthentication, "invalid recovery grant")
	ErrRecoveryNotReady = refine(ErrValidation, "recovery contacts not verified")
)

type refinedError struct {
	class error
	msg   string
}

func refine(class error, msg string) error {
	return &refinedError{class: class, msg: msg}
}

func (e *refinedError) Error() string { return e.msg }

func (e *refinedError) Unwrap() error { return e.class }
