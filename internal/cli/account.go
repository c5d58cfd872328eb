package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
)

const defaultHistory = 20

// ChangePassword re-keys the vault under a new master password.
func (a *App) ChangePassword(ctx context.Context) error {
	if _, err := a.user(); err != nil {
		return err
	}
	old, err := getPassword("Current master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(old)
	next, err := getNewPassword("New master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	if err := a.accounts.ChangeMasterPassword(ctx, old, next); err != nil {
		return err
	}
	a.println("Master password changed.")
	return nil
}

// DeleteAccount removes the account and every entry after confirmation.
func (a *App) DeleteAccount(ctx context.Context) error {
	if _, err := a.user(); err != nil {
		return err
	}
	answer, err := getSimpleText(a.reader, "This deletes the account and every entry. Type 'delete' to confirm", a.out)
	if err != nil {
		return err
	}
	if answer != "delete" {
		a.println("Cancelled.")
		return nil
	}
	password, err := getPassword("Master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.accounts.DeleteAccount(ctx, password); err != nil {
		return err
	}
	a.userName = ""
	a.println("Account deleted.")
	return nil
}

// History prints the newest audit events of the session user.
func (a *App) History(ctx context.Context, limit string) error {
	n, err := intArg(limit, defaultHistory)
	if err != nil {
		return err
	}
	events, err := a.accounts.History(ctx, n)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ev.Timestamp.Local().Format(time.DateTime), ev.Type, ev.Detail)
	}
	return tw.Flush()
}
