package cli

import (
	"errors"

	"github.com/EiDHindY/vaulture/internal/common"
)

var errUsage = errors.New("usage")

// describe turns an error into a line for the user. Common cases get a
// hint about what to do next.
func describe(err error) string {
	switch {
	case errors.Is(err, common.ErrLockedOut):
		return err.Error()
	case errors.Is(err, common.ErrVaultLocked):
		return "vault is locked, run 'unlock' first"
	case errors.Is(err, common.ErrNoSession):
		return "not logged in, run 'login' first"
	case errors.Is(err, common.ErrTokenExpired), errors.Is(err, common.ErrTokenExhausted):
		return err.Error() + ", request a new code with 'resend' or 'recover'"
	case errors.Is(err, common.ErrDelivery):
		return err.Error() + ", try 'resend'"
	}
	return err.Error()
}
