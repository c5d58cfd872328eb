package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/models"
)

// Input indirections, swapped in tests.
var (
	getSimpleText  = GetSimpleText
	getPassword    = GetPassword
	getNewPassword = GetNewPassword
)

func parseChannel(s string) (models.Channel, error) {
	ch := models.Channel(s)
	if !ch.Valid() {
		return "", fmt.Errorf("%w: expected email or mobile", errUsage)
	}
	return ch, nil
}

// Register asks for the account details and sends a code to both contacts.
// The account exists once both are confirmed.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Recovery e-mail", a.out)
	if err != nil {
		return err
	}
	mobile, err := getSimpleText(a.reader, "Recovery mobile number", a.out)
	if err != nil {
		return err
	}
	password, err := getNewPassword("Master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	reg, err := a.accounts.CreateAccount(ctx, username, password, email, mobile)
	if reg != nil {
		a.registration = reg
		a.printf("Codes sent to %s and %s, valid until %s.\n", email, mobile, reg.ExpiresAt.Local().Format(time.Kitchen))
		a.println("Enter them with 'confirm email' and 'confirm mobile'.")
	}
	return err
}

// Confirm checks the code sent to one contact of the pending registration.
func (a *App) Confirm(ctx context.Context, channel string) error {
	if a.registration == nil {
		return fmt.Errorf("%w: no registration in progress, run 'register'", errUsage)
	}
	ch, err := parseChannel(channel)
	if err != nil {
		return err
	}
	tokenID, ok := a.registration.Tokens[ch]
	if !ok {
		return fmt.Errorf("no %s code was sent, run 'resend %s'", ch, ch)
	}
	code, err := getSimpleText(a.reader, fmt.Sprintf("Code sent to your %s", ch), a.out)
	if err != nil {
		return err
	}

	done, err := a.accounts.ConfirmContact(ctx, a.registration.UserID, tokenID, code)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			a.registration = nil
		}
		return err
	}
	if !done {
		a.printf("%s confirmed.\n", ch)
		return nil
	}
	a.userName = a.registration.Username
	a.registration = nil
	a.println("Account created. Run 'unlock' to open your vault.")
	return nil
}

// Resend sends a fresh code to one contact of the pending registration.
func (a *App) Resend(ctx context.Context, channel string) error {
	if a.registration == nil {
		return fmt.Errorf("%w: no registration in progress, run 'register'", errUsage)
	}
	ch, err := parseChannel(channel)
	if err != nil {
		return err
	}
	reg, err := a.accounts.ResendCode(ctx, a.registration.UserID, ch)
	if err != nil {
		return err
	}
	a.registration = reg
	a.printf("New code sent to your %s.\n", ch)
	return nil
}

// Login authenticates and starts a locked session.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.accounts.Login(ctx, username, password); err != nil {
		return err
	}
	a.userName = models.NormalizeUsername(username)
	a.println("Logged in. Run 'unlock' to open your vault.")
	return nil
}

func (a *App) Unlock(ctx context.Context) error {
	if _, err := a.user(); err != nil {
		return err
	}
	password, err := getPassword("Master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.accounts.Unlock(ctx, password); err != nil {
		return err
	}
	a.println("Vault unlocked.")
	return nil
}

func (a *App) Lock(ctx context.Context) error {
	if err := a.accounts.Lock(ctx); err != nil {
		return err
	}
	a.println("Vault locked.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.accounts.Logout(ctx); err != nil {
		return err
	}
	a.userName = ""
	a.println("Logged out.")
	return nil
}

// Status prints the session state and any flow in progress.
func (a *App) Status(_ context.Context) error {
	info, ok := a.accounts.Status()
	if !ok {
		a.println("No session.")
	} else {
		a.printf("User %s, vault %s, last activity %s.\n", info.UserID, info.State, info.LastActivityAt.Local().Format(time.TimeOnly))
	}
	if a.registration != nil {
		var pending []string
		for ch := range a.registration.Tokens {
			pending = append(pending, string(ch))
		}
		sort.Strings(pending)
		a.printf("Registration of %s awaiting codes for %v.\n", a.registration.Username, pending)
	}
	if a.challenge != nil {
		a.println("Recovery in progress.")
	}
	return nil
}
