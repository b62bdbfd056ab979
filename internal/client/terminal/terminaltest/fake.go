// Package terminaltest provides a scriptable terminal.Terminal for tests.
package terminaltest

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
)

// Fake implements terminal.Terminal. Every method delegates to the matching
// func field when it is set and otherwise succeeds with a plausible value.
// Calls are recorded by method name. Status changes made by the Fake itself
// are reported to Listener when it is set.
type Fake struct {
	DiscoverFn        func(ctx context.Context, cfg terminal.DiscoveryConfig, onUpdate func([]terminal.Reader)) error
	ConnectFn         func(ctx context.Context, r terminal.Reader, cfg terminal.ConnectionConfig) (terminal.Reader, error)
	DisconnectFn      func(ctx context.Context) error
	CreatePIFn        func(ctx context.Context, p terminal.PaymentIntentParams) (terminal.PaymentIntent, error)
	RetrievePIFn      func(ctx context.Context, secret string) (terminal.PaymentIntent, error)
	ProcessPIFn       func(ctx context.Context, pi terminal.PaymentIntent, cfg terminal.CollectConfig) (terminal.PaymentIntent, error)
	CancelPIFn        func(ctx context.Context, pi terminal.PaymentIntent) (terminal.PaymentIntent, error)
	CreateSIFn        func(ctx context.Context) (terminal.SetupIntent, error)
	ProcessSIFn       func(ctx context.Context, si terminal.SetupIntent) (terminal.SetupIntent, error)
	CancelSIFn        func(ctx context.Context, si terminal.SetupIntent) (terminal.SetupIntent, error)
	RefundFn          func(ctx context.Context, p terminal.RefundParams) (terminal.Refund, error)
	InstallUpdateFn   func(ctx context.Context) error
	Status            terminal.ConnectionStatus
	ConnectedReaderFn func() (terminal.Reader, bool)
	Listener          terminal.Listener

	mu    sync.Mutex
	calls []string
}

func (f *Fake) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

// Calls returns the recorded method names in call order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how many times name was called.
func (f *Fake) Count(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (f *Fake) ConnectionStatus() terminal.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Status == "" {
		return terminal.NotConnected
	}
	return f.Status
}

// SetStatus changes the connection status the way the SDK would.
func (f *Fake) SetStatus(s terminal.ConnectionStatus) {
	f.mu.Lock()
	changed := f.Status != s
	f.Status = s
	l := f.Listener
	f.mu.Unlock()

	if changed && l != nil {
		l.OnConnectionStatusChange(s)
	}
}

func (f *Fake) DiscoverReaders(ctx context.Context, cfg terminal.DiscoveryConfig, onUpdate func([]terminal.Reader)) error {
	f.record("DiscoverReaders")
	if f.DiscoverFn != nil {
		return f.DiscoverFn(ctx, cfg, onUpdate)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *Fake) ConnectReader(ctx context.Context, r terminal.Reader, cfg terminal.ConnectionConfig) (terminal.Reader, error) {
	f.record("ConnectReader")
	if f.ConnectFn != nil {
		out, err := f.ConnectFn(ctx, r, cfg)
		if err == nil {
			f.SetStatus(terminal.Connected)
		}
		return out, err
	}
	r.LocationID = cfg.LocationID
	f.SetStatus(terminal.Connected)
	return r, nil
}

func (f *Fake) DisconnectReader(ctx context.Context) error {
	f.record("DisconnectReader")
	if f.DisconnectFn != nil {
		if err := f.DisconnectFn(ctx); err != nil {
			return err
		}
	}
	f.SetStatus(terminal.NotConnected)
	return nil
}

func (f *Fake) ConnectedReader() (terminal.Reader, bool) {
	if f.ConnectedReaderFn != nil {
		return f.ConnectedReaderFn()
	}
	if f.ConnectionStatus() == terminal.Connected {
		return terminal.Reader{ID: "tmr_fake"}, true
	}
	return terminal.Reader{}, false
}

func (f *Fake) CreatePaymentIntent(ctx context.Context, p terminal.PaymentIntentParams) (terminal.PaymentIntent, error) {
	f.record("CreatePaymentIntent")
	if f.CreatePIFn != nil {
		return f.CreatePIFn(ctx, p)
	}
	return terminal.PaymentIntent{
		ID:           "pi_local",
		ClientSecret: "pi_local_secret_x",
		Amount:       p.Amount,
		Currency:     p.Currency,
		Status:       terminal.RequiresPaymentMethod,
		Metadata:     p.Metadata,
	}, nil
}

func (f *Fake) RetrievePaymentIntent(ctx context.Context, secret string) (terminal.PaymentIntent, error) {
	f.record("RetrievePaymentIntent")
	if f.RetrievePIFn != nil {
		return f.RetrievePIFn(ctx, secret)
	}
	return terminal.PaymentIntent{ID: "pi_remote", ClientSecret: secret, Status: terminal.RequiresPaymentMethod}, nil
}

func (f *Fake) ProcessPaymentIntent(ctx context.Context, pi terminal.PaymentIntent, cfg terminal.CollectConfig) (terminal.PaymentIntent, error) {
	f.record("ProcessPaymentIntent")
	if f.ProcessPIFn != nil {
		return f.ProcessPIFn(ctx, pi, cfg)
	}
	pi.Status = terminal.RequiresCapture
	return pi, nil
}

func (f *Fake) CancelPaymentIntent(ctx context.Context, pi terminal.PaymentIntent) (terminal.PaymentIntent, error) {
	f.record("CancelPaymentIntent")
	if f.CancelPIFn != nil {
		return f.CancelPIFn(ctx, pi)
	}
	pi.Status = terminal.Canceled
	return pi, nil
}

func (f *Fake) CreateSetupIntent(ctx context.Context) (terminal.SetupIntent, error) {
	f.record("CreateSetupIntent")
	if f.CreateSIFn != nil {
		return f.CreateSIFn(ctx)
	}
	return terminal.SetupIntent{ID: "seti_1", Status: terminal.RequiresPaymentMethod}, nil
}

func (f *Fake) ProcessSetupIntent(ctx context.Context, si terminal.SetupIntent) (terminal.SetupIntent, error) {
	f.record("ProcessSetupIntent")
	if f.ProcessSIFn != nil {
		return f.ProcessSIFn(ctx, si)
	}
	si.Status = terminal.Succeeded
	return si, nil
}

func (f *Fake) CancelSetupIntent(ctx context.Context, si terminal.SetupIntent) (terminal.SetupIntent, error) {
	f.record("CancelSetupIntent")
	if f.CancelSIFn != nil {
		return f.CancelSIFn(ctx, si)
	}
	si.Status = terminal.Canceled
	return si, nil
}

func (f *Fake) ProcessRefund(ctx context.Context, p terminal.RefundParams) (terminal.Refund, error) {
	f.record("ProcessRefund")
	if f.RefundFn != nil {
		return f.RefundFn(ctx, p)
	}
	return terminal.Refund{ID: "re_1", PaymentIntentID: p.PaymentIntentID, Amount: p.Amount, Currency: p.Currency, Status: terminal.Succeeded}, nil
}

func (f *Fake) InstallAvailableUpdate(ctx context.Context) error {
	f.record("InstallAvailableUpdate")
	if f.InstallUpdateFn != nil {
		return f.InstallUpdateFn(ctx)
	}
	return nil
}

var _ terminal.Terminal = (*Fake)(nil)
