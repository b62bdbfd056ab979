package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/paykiosk/internal/client/client"
	"github.com/dmitrijs2005/paykiosk/internal/client/deeplink"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
)

var (
	ErrNoTransactionID = errors.New("no transaction id")
	ErrIntentNotFound  = errors.New("no matching intent")
	ErrEmptySecret     = errors.New("backend returned an empty client secret")
	ErrNothingToRefund = errors.New("payment intent has no amount to refund")
)

// Backend is the part of the backend API the orchestrator needs.
type Backend interface {
	CreatePaymentIntent(ctx context.Context, req client.PaymentIntentRequest) (client.PaymentIntentCreation, error)
	CapturePaymentIntent(ctx context.Context, intentID string) (client.CaptureResult, error)
}

// Registry lets an attempt observe SDK callbacks while it runs.
type Registry interface {
	Register(l terminal.Listener) (unregister func())
}

// DeepLinkClearer drops the active deep link once it has been paid.
type DeepLinkClearer interface {
	Clear()
}

// Request describes a payment.
type Request struct {
	Amount   int64
	Currency string
	// DeepLink selects the backend path when set.
	DeepLink        *deeplink.Payload
	ExtendedAuth    bool
	IncrementalAuth bool
	SkipTipping     bool
}

type Orchestrator struct {
	term      terminal.Terminal
	backend   Backend
	intents   IntentRepository
	listeners Registry
	deepLinks DeepLinkClearer
	log       logging.Logger

	mu      sync.Mutex
	current *Attempt
}

func NewOrchestrator(term terminal.Terminal, backend Backend, intents IntentRepository, listeners Registry, deepLinks DeepLinkClearer, log logging.Logger) *Orchestrator {
	return &Orchestrator{
		term:      term,
		backend:   backend,
		intents:   intents,
		listeners: listeners,
		deepLinks: deepLinks,
		log:       log.With("module", "payment"),
	}
}

// Current returns the most recently started attempt.
func (o *Orchestrator) Current() *Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// settled wraps an error whose events and status were already recorded.
type settled struct{ err error }

func (s settled) Error() string { return s.err.Error() }
func (s settled) Unwrap() error { return s.err }

// launch runs fn for a new attempt. A still-running previous attempt is
// canceled and joined first so two attempts never drive the reader at once.
func (o *Orchestrator) launch(parent context.Context, a *Attempt, fn func(ctx context.Context, a *Attempt) error) *Attempt {
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel

	o.mu.Lock()
	prev := o.current
	o.current = a
	o.mu.Unlock()

	if prev != nil && !prev.Complete() {
		o.log.Warn(parent, "superseding running attempt", "kind", prev.Kind)
		prev.Cancel()
	}

	var unregister func()
	if o.listeners != nil {
		unregister = o.listeners.Register(listener{a: a})
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		if unregister != nil {
			defer unregister()
		}
		o.finish(ctx, a, fn(ctx, a))
	}()
	return a
}

func (o *Orchestrator) finish(ctx context.Context, a *Attempt, err error) {
	var done settled
	switch {
	case err == nil:
		a.settle(Complete, nil)
		o.log.Info(ctx, "attempt complete", "kind", a.Kind)

	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		a.setStatus(StatusPaymentCanceled)
		a.event("Canceled", "viewModel.cancelIntents")
		a.settle(Canceled, context.Canceled)
		o.log.Info(ctx, "attempt canceled", "kind", a.Kind)

	case errors.As(err, &done):
		a.settle(Errored, done.err)
		o.log.Warn(ctx, "attempt failed", "kind", a.Kind, "error", done.err)

	default:
		a.setStatus(sdkStatus(err))
		if te, ok := terminal.AsError(err); ok {
			a.event(string(te.Code), te.Message)
		} else {
			a.event(err.Error(), "error")
		}
		a.settle(Errored, err)
		o.log.Warn(ctx, "attempt failed", "kind", a.Kind, "error", err)
	}
}

// sdkStatus words an SDK failure for the customer, judged by its message.
func sdkStatus(err error) string {
	msg := err.Error()
	if te, ok := terminal.AsError(err); ok {
		msg = te.Message
	}
	msg = strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "network"):
		return StatusNetworkError
	case strings.Contains(msg, "timeout"):
		return StatusTimeout
	case strings.Contains(msg, "cancel"):
		return StatusPaymentCanceled
	default:
		return StatusPaymentFailed
	}
}

// TakePayment charges req. A deep link selects the backend path, otherwise
// the intent is created locally through the SDK.
func (o *Orchestrator) TakePayment(ctx context.Context, req Request) *Attempt {
	a := newAttempt(KindPayment)

	currency := req.Currency
	if req.DeepLink != nil {
		currency = req.DeepLink.Currency
		a.setDisplay(req.DeepLink.Display())
	} else {
		a.setDisplay(deeplink.FormatAmount(req.Amount, currency))
	}

	return o.launch(ctx, a, func(ctx context.Context, a *Attempt) error {
		if req.DeepLink != nil {
			return o.backendPayment(ctx, a, *req.DeepLink, req)
		}
		return o.localPayment(ctx, a, req, currency)
	})
}

func (o *Orchestrator) backendPayment(ctx context.Context, a *Attempt, p deeplink.Payload, req Request) error {
	a.transition(Creating)
	a.setStatus(StatusConnecting)
	a.event("Creating PaymentIntent on backend...", "backend.createPaymentIntent")

	created, err := o.backend.CreatePaymentIntent(ctx, client.PaymentIntentRequest{
		Amount:          p.Amount,
		Currency:        strings.ToLower(p.Currency),
		Email:           p.Email,
		ExtendedAuth:    req.ExtendedAuth,
		IncrementalAuth: req.IncrementalAuth,
		CustomerID:      p.CustomerID,
		OrderID:         p.ID,
		LocationID:      p.LocationID,
		AdminUserID:     p.AdminUserID,
		WashType:        p.WashType,
		PackageID:       p.PackageID,
		VehicleID:       p.VehicleID,
		PhoneNumber:     p.PhoneNumber,
		PublicOrderID:   p.PublicOrderID,
		Source:          p.Source,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		o.recordBackendFailure(a, err)
		return settled{err}
	}

	if created.Secret == "" {
		a.setStatus(StatusInvalidResponse)
		a.event("Invalid payment response from server", "backend.createPaymentIntent")
		return settled{ErrEmptySecret}
	}

	a.setStatus(StatusProcessing)
	a.event("PaymentIntent created on backend", "backend.createPaymentIntent")

	a.setStatus(StatusRetrieving)
	retrieved, err := o.term.RetrievePaymentIntent(ctx, created.Secret)
	if err != nil {
		return err
	}
	a.event("Retrieved PaymentIntent", "terminal.retrievePaymentIntent")
	// the reader only learns the id from the secret
	if retrieved.Amount == 0 {
		retrieved.Amount = p.Amount
	}
	if retrieved.Currency == "" {
		retrieved.Currency = strings.ToLower(p.Currency)
	}
	o.rememberPayment(ctx, retrieved)

	a.transition(Collecting)
	a.setStatus(StatusWaitingForCard)
	processed, err := o.term.ProcessPaymentIntent(ctx, retrieved, terminal.CollectConfig{SkipTipping: req.SkipTipping})
	if err != nil {
		return err
	}
	a.transition(Processing)
	a.event("Processed PaymentIntent", "terminal.processPaymentIntent")
	o.rememberPayment(ctx, processed)

	a.transition(Capturing)
	a.setStatus(StatusFinalizing)
	if err := o.capture(ctx, a, processed.ID); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		a.setStatus(StatusCaptureFailed)
	} else {
		a.setStatus(StatusSuccess)
	}

	if o.deepLinks != nil {
		o.deepLinks.Clear()
	}
	return nil
}

// rememberPayment stores pi for later refunds and cancels. A failed write is
// logged and does not fail the attempt.
func (o *Orchestrator) rememberPayment(ctx context.Context, pi terminal.PaymentIntent) {
	if err := o.intents.PutPayment(ctx, pi); err != nil {
		o.log.Error(ctx, "could not store payment intent", "intent", pi.ID, "error", err)
	}
}

func (o *Orchestrator) rememberSetup(ctx context.Context, si terminal.SetupIntent) {
	if err := o.intents.PutSetup(ctx, si); err != nil {
		o.log.Error(ctx, "could not store setup intent", "intent", si.ID, "error", err)
	}
}

// recordBackendFailure words a failed create call.
func (o *Orchestrator) recordBackendFailure(a *Attempt, err error) {
	var se *client.StatusError
	switch {
	case errors.As(err, &se):
		a.setStatus(StatusConnectionFailed)
		a.event("Failed to create PaymentIntent: "+http.StatusText(se.Code), "backend.createPaymentIntent")
	case errors.Is(err, client.ErrNoConnectivity):
		a.setStatus(StatusNoInternet)
		a.event("Network error: No internet connection", "backend.createPaymentIntent")
	case errors.Is(err, client.ErrTimeout):
		a.setStatus(StatusTimeout)
		a.event("Network error: Connection timeout", "backend.createPaymentIntent")
	case errors.Is(err, client.ErrUnavailable):
		a.setStatus(StatusUnableToConnect)
		a.event("Network error: Network error", "backend.createPaymentIntent")
	default:
		a.setStatus(StatusConnectionError)
		a.event("Network error: "+err.Error(), "backend.createPaymentIntent")
	}
}

func (o *Orchestrator) capture(ctx context.Context, a *Attempt, intentID string) error {
	if intentID == "" {
		return nil
	}
	if _, err := o.backend.CapturePaymentIntent(ctx, intentID); err != nil {
		a.event("Error capturing: "+err.Error(), "backend.capturePaymentIntent")
		return err
	}
	a.event("Captured PaymentIntent", "backend.capturePaymentIntent")
	return nil
}

func (o *Orchestrator) localPayment(ctx context.Context, a *Attempt, req Request, currency string) error {
	currency = strings.ToLower(currency)
	methods := []string{"card_present"}
	if currency == "cad" {
		methods = append(methods, "interac_present")
	}

	a.transition(Creating)
	created, err := o.term.CreatePaymentIntent(ctx, terminal.PaymentIntentParams{
		Amount:             req.Amount,
		Currency:           currency,
		PaymentMethodTypes: methods,
		ExtendedAuth:       req.ExtendedAuth,
		IncrementalAuth:    req.IncrementalAuth,
	})
	if err != nil {
		return err
	}
	a.event("Created PaymentIntent", "terminal.createPaymentIntent")
	o.rememberPayment(ctx, created)

	a.transition(Collecting)
	a.setStatus(StatusWaitingForCard)
	processed, err := o.term.ProcessPaymentIntent(ctx, created, terminal.CollectConfig{SkipTipping: req.SkipTipping})
	if err != nil {
		return err
	}
	a.transition(Processing)
	a.event("Processed PaymentIntent", "terminal.processPaymentIntent")
	o.rememberPayment(ctx, processed)

	a.transition(Capturing)
	if err := o.capture(ctx, a, processed.ID); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
	a.setStatus(StatusSuccess)
	return nil
}

// SaveCard collects a card for later use through a setup intent.
func (o *Orchestrator) SaveCard(ctx context.Context) *Attempt {
	return o.launch(ctx, newAttempt(KindSaveCard), func(ctx context.Context, a *Attempt) error {
		a.transition(Creating)
		created, err := o.term.CreateSetupIntent(ctx)
		if err != nil {
			return err
		}
		a.event("Created SetupIntent", "terminal.createSetupIntent")
		o.rememberSetup(ctx, created)

		a.transition(Collecting)
		a.setStatus(StatusWaitingForCard)
		processed, err := o.term.ProcessSetupIntent(ctx, created)
		if err != nil {
			return err
		}
		a.transition(Processing)
		o.rememberSetup(ctx, processed)
		a.event("Processed SetupIntent", "terminal.processSetupIntent")
		a.setStatus(StatusCardSaved)
		return nil
	})
}

// Refund refunds the payment intent txID the kiosk created earlier.
func (o *Orchestrator) Refund(ctx context.Context, txID string) *Attempt {
	return o.launch(ctx, newAttempt(KindRefund), func(ctx context.Context, a *Attempt) error {
		if txID == "" {
			a.event("No transactionId provided to refund", "viewModel.refundTransaction")
			return settled{ErrNoTransactionID}
		}
		pi, ok, err := o.intents.Payment(ctx, txID)
		if err != nil {
			a.event("Could not look up PaymentIntent: "+err.Error(), "viewModel.refundTransaction")
			return settled{err}
		}
		if !ok {
			a.event("No matching PaymentIntent found to refund", "viewModel.refundTransaction")
			return settled{fmt.Errorf("%w: %s", ErrIntentNotFound, txID)}
		}
		if pi.Amount <= 0 {
			a.event("PaymentIntent has no amount to refund", "viewModel.refundTransaction")
			return settled{fmt.Errorf("%w: %s", ErrNothingToRefund, txID)}
		}

		a.setDisplay(deeplink.FormatAmount(pi.Amount, pi.Currency))
		a.transition(Processing)
		refund, err := o.term.ProcessRefund(ctx, terminal.RefundParams{
			PaymentIntentID: pi.ID,
			Amount:          pi.Amount,
			Currency:        pi.Currency,
		})
		if err != nil {
			return err
		}
		a.event("Processed Refund", "terminal.processRefund")
		if err := o.intents.PutRefund(ctx, refund); err != nil {
			o.log.Error(ctx, "could not store refund", "intent", refund.PaymentIntentID, "error", err)
		}
		a.setStatus(StatusRefunded)
		return nil
	})
}

// CancelTransaction cancels the payment or setup intent txID the kiosk
// created earlier. Payment intents are looked up first.
func (o *Orchestrator) CancelTransaction(ctx context.Context, txID string) *Attempt {
	return o.launch(ctx, newAttempt(KindCancelTxn), func(ctx context.Context, a *Attempt) error {
		if txID == "" {
			a.event("No transactionId provided to cancel", "viewModel.cancelTransaction")
			return settled{ErrNoTransactionID}
		}

		pi, ok, err := o.intents.Payment(ctx, txID)
		if err != nil {
			a.event("Could not look up PaymentIntent: "+err.Error(), "viewModel.cancelTransaction")
			return settled{err}
		}
		if ok {
			canceled, err := o.term.CancelPaymentIntent(ctx, pi)
			if err != nil {
				return err
			}
			a.event("Cancelled PaymentIntent", "terminal.cancelPaymentIntent")
			o.rememberPayment(ctx, canceled)
			a.setStatus(StatusTransactionClosed)
			return nil
		}

		si, ok, err := o.intents.Setup(ctx, txID)
		if err != nil {
			a.event("Could not look up SetupIntent: "+err.Error(), "viewModel.cancelTransaction")
			return settled{err}
		}
		if ok {
			canceled, err := o.term.CancelSetupIntent(ctx, si)
			if err != nil {
				return err
			}
			a.event("Cancelled SetupIntent", "terminal.cancelSetupIntent")
			o.rememberSetup(ctx, canceled)
			a.setStatus(StatusTransactionClosed)
			return nil
		}

		a.event("No matching PaymentIntent or SetupIntent found to cancel", "viewModel.cancelTransaction")
		return settled{fmt.Errorf("%w: %s", ErrIntentNotFound, txID)}
	})
}
