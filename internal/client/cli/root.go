package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/paykiosk/internal/buildinfo"
	"github.com/dmitrijs2005/paykiosk/internal/client/config"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
)

// CarWashURL is the site the carwash command opens.
const CarWashURL = "https://carwash.way.com"

// Test seams.
var (
	openApp = Open
	openURL = browser.OpenURL
)

type runner struct {
	flags config.Flags
	pay   PayOptions
	log   logging.Logger
	errW  io.Writer
	code  int
}

// withApp loads the config, opens an App, runs fn and records its exit code.
func (r *runner) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *App) (int, error)) error {
	cfg, err := config.Load(&r.flags)
	if err != nil {
		return err
	}

	log := r.log
	if log == nil {
		log = logging.New(r.errW, cfg.LogLevel, "text")
	}

	ctx := cmd.Context()
	app, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	app.out = cmd.OutOrStdout()
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn(ctx, "close failed", "error", err)
		}
	}()

	code, err := fn(ctx, app)
	r.code = code
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newRootCommand builds the kiosk command tree. Without a subcommand the
// kiosk behaves like "run".
func newRootCommand(r *runner) *cobra.Command {
	runE := func(cmd *cobra.Command, args []string) error {
		raw := ""
		if len(args) > 0 {
			raw = args[0]
		}
		return r.withApp(cmd, func(ctx context.Context, a *App) (int, error) {
			return a.Run(ctx, raw, r.pay), nil
		})
	}

	root := &cobra.Command{
		Use:          "kiosk [payment-uri]",
		Short:        "Self-service payment kiosk",
		Long:         "Takes card payments on a terminal reader, started from a payment deep link or by hand.",
		Args:         cobra.MaximumNArgs(1),
		Version:      buildinfo.Version,
		SilenceUsage: true,
		RunE:         runE,
	}
	r.flags.Bind(root.PersistentFlags())

	payFlags := func(cmd *cobra.Command) {
		cmd.Flags().BoolVar(&r.pay.ExtendedAuth, "extended-auth", false, "request extended authorization")
		cmd.Flags().BoolVar(&r.pay.IncrementalAuth, "incremental-auth", false, "request incremental authorization")
		cmd.Flags().BoolVar(&r.pay.SkipTipping, "skip-tipping", true, "do not prompt for a tip on the reader")
	}
	payFlags(root)

	run := &cobra.Command{
		Use:   "run [payment-uri]",
		Short: "Handle a payment deep link, or wait for commands when there is none",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runE,
	}
	payFlags(run)

	pay := &cobra.Command{
		Use:   "pay [amount] [currency]",
		Short: "Take a payment for an amount entered by hand",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) (int, error) {
				amount, currency := "", ""
				if len(args) > 0 {
					amount = args[0]
				} else {
					var err error
					if amount, err = GetSimpleText(a.in, "Amount to charge", cmd.OutOrStdout()); err != nil {
						return 1, err
					}
				}
				if len(args) > 1 {
					currency = args[1]
				}
				code, err := a.PayAmount(ctx, amount, currency, r.pay)
				if err == nil {
					a.closeAfterDelay(ctx)
				}
				return code, err
			})
		},
	}
	payFlags(pay)

	saveCard := &cobra.Command{
		Use:   "save-card",
		Short: "Collect a card for later use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) (int, error) { return a.SaveCard(ctx) })
		},
	}

	refund := &cobra.Command{
		Use:   "refund <transaction-id>",
		Short: "Refund a payment taken in this session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) (int, error) { return a.Refund(ctx, args[0]) })
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <transaction-id>",
		Short: "Cancel a payment or setup intent taken in this session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) (int, error) { return a.CancelTransaction(ctx, args[0]) })
		},
	}

	disconnect := &cobra.Command{
		Use:   "disconnect",
		Short: "Disconnect the reader and forget it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) (int, error) { return 0, a.Disconnect(ctx) })
		},
	}

	forget := &cobra.Command{
		Use:   "forget-reader",
		Short: "Forget the saved reader so the next run asks again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) (int, error) { return 0, a.ForgetReader(ctx) })
		},
	}

	update := &cobra.Command{
		Use:   "update",
		Short: "Install pending reader software",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) (int, error) { return a.Update(ctx) })
		},
	}

	carwash := &cobra.Command{
		Use:   "carwash",
		Short: "Open the car wash site in a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return openURL(CarWashURL)
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}

	root.AddCommand(run, pay, saveCard, refund, cancel, disconnect, forget, update, carwash, version)
	return root
}

// Execute runs the command line in args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	r := &runner{errW: os.Stderr}
	root := newRootCommand(r)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return 1
	}
	return r.code
}
