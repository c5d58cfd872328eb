package cli

import (
	"context"
	"fmt"

	"github.com/EiDHindY/vaulture/internal/common"
)

// Recover starts an account recovery: codes go to the verified contacts.
func (a *App) Recover(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	ch, err := a.accounts.StartRecovery(ctx, username)
	if ch != nil {
		a.challenge, a.grant = ch, ""
		a.userName = ""
		a.printf("Codes sent. Confirm %d of them with 'recover-verify email' or 'recover-verify mobile'.\n", ch.Required)
	}
	return err
}

// RecoverVerify checks one recovery code.
func (a *App) RecoverVerify(ctx context.Context, channel string) error {
	if a.challenge == nil {
		return fmt.Errorf("%w: no recovery in progress, run 'recover'", errUsage)
	}
	ch, err := parseChannel(channel)
	if err != nil {
		return err
	}
	tokenID, ok := a.challenge.Tokens[ch]
	if !ok {
		return fmt.Errorf("no code was sent to your %s", ch)
	}
	code, err := getSimpleText(a.reader, fmt.Sprintf("Code sent to your %s", ch), a.out)
	if err != nil {
		return err
	}

	p, err := a.accounts.VerifyRecovery(ctx, tokenID, code)
	if err != nil {
		return err
	}
	if p.Grant == "" {
		a.printf("%d of %d confirmed.\n", len(p.Verified), p.Required)
		return nil
	}
	a.grant = p.Grant
	a.challenge = nil
	a.println("Identity confirmed. Run 'recover-reset' to choose a new master password.")
	return nil
}

// RecoverReset sets a new master password. Entries sealed under the old
// one cannot be read and are removed.
func (a *App) RecoverReset(ctx context.Context) error {
	if a.grant == "" {
		return fmt.Errorf("%w: confirm your codes with 'recover-verify' first", errUsage)
	}
	a.println("Entries saved under the old password cannot be recovered and will be deleted.")
	password, err := getNewPassword("New master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	purged, err := a.accounts.RecoverAccount(ctx, a.grant, password)
	if err != nil {
		return err
	}
	a.grant = ""
	a.printf("Password reset, %d entries removed. Run 'unlock' to open your vault.\n", purged)
	return nil
}
