// Package cli provides the interactive vaulture command-line front end.
//
// It holds no state of its own beyond the pending registration or recovery
// the user is working through; every operation goes to the account service,
// the credential store or the backup service.
//
// Typical flow: register, confirm both contact codes, unlock, then add,
// list and show entries. The session autolocks after the configured idle
// time and "unlock" asks for the master password again.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits
// or ctx is cancelled.
package cli
