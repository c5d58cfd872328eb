// Package session owns the lock/unlock state machine of the single active
// vault session.
//
// A Manager holds at most one Session. Sessions start Locked; Unlock derives
// the vault key and keeps it in memory until Lock, Logout or autolock wipe
// it. Every transition and every use of the key runs under one mutex, so the
// autolock monitor can never wipe a key in the middle of a store operation.
//
//	m := session.NewManager(kdf, session.Options{InactivityThreshold: 5 * time.Minute})
//	m.Begin(ctx, user.ID, user.PasswordVerifier)
//	if err := m.Unlock(ctx, password); err != nil { ... }
//	go m.Run(ctx, 5*time.Second)
//	err := m.WithKey(ctx, user.ID, func(key *cryptox.Key) error { ... })
package session
