package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

var errUnknownCommand = errors.New("unknown command")

// execIface is the command surface the REPL needs. *App satisfies it.
type execIface interface {
	hasSession() bool
	dispatch(ctx context.Context, cmd string, args []string) error
}

const (
	helpNoSession = "Available commands: register, confirm <email|mobile>, resend <email|mobile>, login, " +
		"recover, recover-verify <email|mobile>, recover-reset, generate [length], exit"
	helpSession = "Available commands: unlock, lock, status, add, (l)ist [tag], search <query> [tag], " +
		"show <id>, update <id>, delete <id>, generate [length], passwd, history, backup, restore [name], " +
		"delete-account, logout, exit"
)

// runREPL reads a line from scanner, takes the first token as the command
// and dispatches it to a. Command errors are printed and the loop goes on.
// It returns on EOF, on "exit" or "quit", or when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("vaulture %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.hasSession() {
				printlnFn(helpSession)
			} else {
				printlnFn(helpNoSession)
			}

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			err := a.dispatch(ctx, cmd, args)
			switch {
			case errors.Is(err, errUnknownCommand):
				printlnFn("Unknown command:", cmd)
			case err != nil:
				printlnFn("Error:", describe(err))
			}
		}
	}
}
