package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the idle prompt drives. *App satisfies
// it; tests provide a stub.
type execIface interface {
	PayAmount(ctx context.Context, amount, currency string, opts PayOptions) (int, error)
	SaveCard(ctx context.Context) (int, error)
	Refund(ctx context.Context, txID string) (int, error)
	CancelTransaction(ctx context.Context, txID string) (int, error)
	Update(ctx context.Context) (int, error)
	Disconnect(ctx context.Context) error
}

const idleHelp = "Available commands: pay <amount> [currency], savecard, refund <id>, cancel <id>, update, disconnect, exit"

// runREPL is the connected-idle prompt. It reads one command per line and
// dispatches to a until the scanner hits EOF or the operator types "exit".
// "disconnect" also leaves the prompt since there is no reader left to use.
//
// Handler errors are printed and the loop carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, opts PayOptions, scanner *bufio.Scanner) {
	report := func(_ int, err error) {
		if err != nil {
			printlnFn("Error:", err)
		}
	}

	for {
		printlnFn(fmt.Sprintf("kiosk %s > ", statusFn()))
		if ctx.Err() != nil || !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(idleHelp)

		case "pay":
			if len(args) == 0 {
				printlnFn("Usage: pay <amount> [currency]")
				continue
			}
			currency := ""
			if len(args) > 1 {
				currency = args[1]
			}
			report(a.PayAmount(ctx, args[0], currency, opts))

		case "savecard":
			report(a.SaveCard(ctx))

		case "refund":
			if len(args) == 0 {
				printlnFn("Usage: refund <transaction id>")
				continue
			}
			report(a.Refund(ctx, args[0]))

		case "cancel":
			if len(args) == 0 {
				printlnFn("Usage: cancel <transaction id>")
				continue
			}
			report(a.CancelTransaction(ctx, args[0]))

		case "update":
			report(a.Update(ctx))

		case "disconnect":
			if err := a.Disconnect(ctx); err != nil {
				printlnFn("Error:", err)
				continue
			}
			return

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

// Idle runs the connected-idle prompt with the reachability watcher in the
// background.
func (a *App) Idle(ctx context.Context, opts PayOptions) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	a.println(renderStatus("Reader connected. Type 'help' for commands."))
	runREPL(ctx, a, a.getStatus, opts, bufio.NewScanner(a.in))
	return 0
}
