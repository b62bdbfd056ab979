package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/paykiosk/internal/client/deeplink"
	"github.com/dmitrijs2005/paykiosk/internal/client/payment"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
)

// PayOptions are the per-payment switches exposed as flags.
type PayOptions struct {
	ExtendedAuth    bool
	IncrementalAuth bool
	SkipTipping     bool
}

// Run handles one launch: remember the deep link, make sure a reader is
// connected, then either take the payment or drop into the idle prompt.
// It returns the process exit code.
func (a *App) Run(ctx context.Context, raw string, opts PayOptions) int {
	a.inbox.Receive(ctx, raw)

	if err := a.ensureConnected(ctx); err != nil {
		a.reportError(ctx, err)
		return 1
	}

	p, ok := a.inbox.Current()
	if !ok {
		return a.Idle(ctx, opts)
	}

	code := a.follow(ctx, a.payments.TakePayment(ctx, payment.Request{
		DeepLink:        &p,
		ExtendedAuth:    opts.ExtendedAuth,
		IncrementalAuth: opts.IncrementalAuth,
		SkipTipping:     opts.SkipTipping,
	}))
	a.closeAfterDelay(ctx)
	return code
}

// PayAmount takes a manually entered payment through the local path.
func (a *App) PayAmount(ctx context.Context, amount, currency string, opts PayOptions) (int, error) {
	minor, err := deeplink.MinorUnits(amount)
	if err != nil {
		return 1, err
	}
	if currency == "" {
		currency = "usd"
	}
	if err := a.ensureConnected(ctx); err != nil {
		return 1, err
	}

	return a.follow(ctx, a.payments.TakePayment(ctx, payment.Request{
		Amount:          minor,
		Currency:        strings.ToLower(currency),
		ExtendedAuth:    opts.ExtendedAuth,
		IncrementalAuth: opts.IncrementalAuth,
		SkipTipping:     opts.SkipTipping,
	})), nil
}

func (a *App) SaveCard(ctx context.Context) (int, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return 1, err
	}
	return a.follow(ctx, a.payments.SaveCard(ctx)), nil
}

func (a *App) Refund(ctx context.Context, txID string) (int, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return 1, err
	}
	return a.follow(ctx, a.payments.Refund(ctx, txID)), nil
}

func (a *App) CancelTransaction(ctx context.Context, txID string) (int, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return 1, err
	}
	return a.follow(ctx, a.payments.CancelTransaction(ctx, txID)), nil
}

// follow prints an attempt's events and status changes until it settles and
// returns 0 if it completed. Canceling ctx cancels the attempt.
func (a *App) follow(ctx context.Context, att *payment.Attempt) int {
	if d := att.DisplayAmount(); d != "" {
		a.println(renderAmount(d))
	}

	wake, unsubscribeEvents := att.Events().Subscribe()
	defer unsubscribeEvents()
	statuses, unsubscribeStatus := att.SubscribeStatus()
	defer unsubscribeStatus()

	printed := 0
	lastStatus := ""
	flush := func() {
		evs := att.Events().Events()
		for ; printed < len(evs); printed++ {
			a.println(renderEvent(evs[printed]))
		}
		if s := att.Status(); s != "" && s != lastStatus {
			lastStatus = s
			a.println(renderStatus(s))
		}
	}

	flush()
	for {
		select {
		case <-wake:
			flush()
		case <-statuses:
			flush()
		case <-ctx.Done():
			att.Cancel()
			flush()
			a.println(renderOutcome(att))
			return 1
		case <-att.Done():
			flush()
			a.println(renderOutcome(att))
			if att.State() == payment.Complete {
				return 0
			}
			return 1
		}
	}
}

// closeAfterDelay keeps the result visible for CloseDelay and clears the
// deep link. It runs at most once per App.
func (a *App) closeAfterDelay(ctx context.Context) {
	a.closeOnce.Do(func() {
		if a.config.CloseDelay > 0 {
			t := time.NewTimer(a.config.CloseDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
			}
			t.Stop()
		}
		a.inbox.Clear()
	})
}

// Update installs a pending reader software update, printing progress.
func (a *App) Update(ctx context.Context) (int, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return 1, err
	}

	unregister := a.listeners.Register(progressPrinter{a: a})
	defer unregister()

	err := a.term.InstallAvailableUpdate(ctx)
	if te, ok := terminal.AsError(err); ok && te.Code == terminal.CodeNoUpdate {
		a.println(renderStatus("Reader software is up to date."))
		return 0, nil
	}
	if err != nil {
		return 1, err
	}
	a.println(okStyle.Render("Update installed"))
	return 0, nil
}

type progressPrinter struct {
	terminal.NopListener
	a *App
}

func (p progressPrinter) OnUpdateStarted(r terminal.Reader) {
	p.a.println(renderStatus("Updating " + r.Identity() + "..."))
}

func (p progressPrinter) OnUpdateProgress(progress float64) {
	p.a.printf("  %3.0f%%\n", progress*100)
}

func (a *App) Disconnect(ctx context.Context) error {
	if err := a.flow.Disconnect(ctx); err != nil {
		return err
	}
	a.println(renderStatus("Reader disconnected."))
	return nil
}

func (a *App) ForgetReader(ctx context.Context) error {
	if err := a.flow.Forget(ctx); err != nil {
		return err
	}
	a.println(renderStatus("Saved reader forgotten."))
	return nil
}

// reportError prints err for the operator. Cancellation is silent.
func (a *App) reportError(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	a.log.Error(ctx, "command failed", "error", err)
	a.println(failStyle.Render(fmt.Sprintf("Error: %v", err)))
}
