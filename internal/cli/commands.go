package cli

import (
	"context"
	"fmt"
	"strconv"
)

// dispatch runs one command. It returns errUnknownCommand for names it does
// not know.
func (a *App) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.Register(ctx)
	case "confirm":
		return a.Confirm(ctx, arg(args, 0))
	case "resend":
		return a.Resend(ctx, arg(args, 0))
	case "login":
		return a.Login(ctx)
	case "unlock":
		return a.Unlock(ctx)
	case "lock":
		return a.Lock(ctx)
	case "logout":
		return a.Logout(ctx)
	case "status":
		return a.Status(ctx)

	case "add":
		return a.Add(ctx)
	case "l", "list":
		return a.List(ctx, arg(args, 0))
	case "search":
		return a.Search(ctx, arg(args, 0), arg(args, 1))
	case "show":
		return a.Show(ctx, arg(args, 0))
	case "update":
		return a.Update(ctx, arg(args, 0))
	case "delete":
		return a.Delete(ctx, arg(args, 0))
	case "generate":
		return a.Generate(arg(args, 0))

	case "passwd":
		return a.ChangePassword(ctx)
	case "delete-account":
		return a.DeleteAccount(ctx)
	case "history":
		return a.History(ctx, arg(args, 0))
	case "recover":
		return a.Recover(ctx)
	case "recover-verify":
		return a.RecoverVerify(ctx, arg(args, 0))
	case "recover-reset":
		return a.RecoverReset(ctx)

	case "backup":
		return a.Backup(ctx)
	case "restore":
		return a.Restore(ctx, arg(args, 0))
	}
	return errUnknownCommand
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// intArg parses an optional positive integer argument.
func intArg(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q is not a positive number", errUsage, s)
	}
	return n, nil
}
