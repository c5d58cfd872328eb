package cli

import (
	"context"
	"errors"
)

var errNoRemote = errors.New("no backup destination configured")

// Backup uploads a sealed snapshot of the vault.
func (a *App) Backup(ctx context.Context) error {
	if a.remote == nil {
		return errNoRemote
	}
	userID, err := a.user()
	if err != nil {
		return err
	}
	name, err := a.backups.Backup(ctx, userID, a.remote)
	if err != nil {
		return err
	}
	a.println("Backup written:", name)
	return nil
}

// Restore loads the named snapshot, or the newest when name is empty.
func (a *App) Restore(ctx context.Context, name string) error {
	if a.remote == nil {
		return errNoRemote
	}
	userID, err := a.user()
	if err != nil {
		return err
	}
	n, err := a.backups.Restore(ctx, userID, a.remote, name)
	if err != nil {
		return err
	}
	a.printf("Restored %d entries.\n", n)
	return nil
}
