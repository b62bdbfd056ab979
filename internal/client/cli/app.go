package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/paykiosk/internal/client/client"
	"github.com/dmitrijs2005/paykiosk/internal/client/config"
	"github.com/dmitrijs2005/paykiosk/internal/client/connect"
	"github.com/dmitrijs2005/paykiosk/internal/client/deeplink"
	"github.com/dmitrijs2005/paykiosk/internal/client/discovery"
	"github.com/dmitrijs2005/paykiosk/internal/client/payment"
	"github.com/dmitrijs2005/paykiosk/internal/client/services"
	"github.com/dmitrijs2005/paykiosk/internal/client/status"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Deps are the collaborators an App drives. Open builds the real ones.
type Deps struct {
	Backend   client.Client
	Terminal  terminal.Terminal
	Listeners *terminal.Listeners
	Prefs     services.ReaderPreferences
	// Intents defaults to an in-memory store.
	Intents payment.IntentRepository
	Picker  ReaderPicker
	In      io.Reader
	Out     io.Writer
	// Closers run in reverse order on Close.
	Closers []func() error
}

type App struct {
	config *config.Config
	log    logging.Logger
	in     *bufio.Reader
	out    io.Writer

	backend   client.Client
	term      terminal.Terminal
	listeners *terminal.Listeners
	status    *status.Holder
	inbox     *deeplink.Inbox
	prefs     services.ReaderPreferences
	discovery *discovery.Coordinator
	flow      *connect.Flow
	payments  *payment.Orchestrator
	picker    ReaderPicker

	closers   []func() error
	closeOnce sync.Once

	modeMu sync.Mutex
	Mode   Mode
}

// NewApp wires an App around d.
func NewApp(c *config.Config, log logging.Logger, d Deps) *App {
	if d.Listeners == nil {
		d.Listeners = terminal.NewListeners()
	}
	if d.In == nil {
		d.In = os.Stdin
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Picker == nil {
		d.Picker = defaultPicker()
	}
	if d.Intents == nil {
		d.Intents = payment.NewMemoryIntents()
	}

	holder := status.NewHolder(d.Terminal.ConnectionStatus())
	unregister := d.Listeners.Register(holder)

	inbox := deeplink.NewInbox(log)

	a := &App{
		config:    c,
		log:       log.With("module", "cli"),
		in:        bufio.NewReader(d.In),
		out:       d.Out,
		backend:   d.Backend,
		term:      d.Terminal,
		listeners: d.Listeners,
		status:    holder,
		inbox:     inbox,
		prefs:     d.Prefs,
		picker:    d.Picker,
		closers:   append([]func() error{func() error { unregister(); return nil }}, d.Closers...),
	}

	a.discovery = discovery.NewCoordinator(d.Terminal, log, discovery.Options{
		Timeout:   c.DiscoveryTimeout,
		Simulated: c.Simulated,
	})
	a.flow = connect.NewFlow(d.Terminal, d.Prefs, inbox, log, connect.Config{
		LocationID:    c.LocationID,
		Method:        c.DiscoveryMethod,
		AutoReconnect: true,
	})
	a.payments = payment.NewOrchestrator(d.Terminal, d.Backend, d.Intents, d.Listeners, inbox, log)
	return a
}

// Open builds an App backed by the local database, the backend over HTTP
// and the simulated reader.
func Open(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	repos, err := client.InitDatabase(ctx, c.DBPath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	var opts []client.HTTPOption
	if c.HealthAddr != "" {
		hc, err := client.NewHealthChecker(c.HealthAddr)
		if err != nil {
			_ = repos.Close()
			return nil, fmt.Errorf("health checker: %w", err)
		}
		opts = append(opts, client.WithHealthChecker(hc))
	}
	backend := client.NewHTTPClient(c.BackendURL, c.HTTPTimeout, opts...)

	if !c.Simulated {
		log.Warn(ctx, "no hardware reader driver is built in, using the simulated reader")
	}

	listeners := terminal.NewListeners()
	sim := terminal.NewSimulated(backend, listeners,
		terminal.WithLatency(300*time.Millisecond),
		terminal.WithIntentRegistrar(intentRegistrar{backend: backend}),
	)

	return NewApp(c, log, Deps{
		Backend:   backend,
		Terminal:  sim,
		Listeners: listeners,
		Prefs:     services.NewReaderPreferences(repos.DB),
		Intents:   repos.Intents,
		Closers:   []func() error{repos.Close, backend.Close},
	}), nil
}

// intentRegistrar creates the reader's own payment intents on the backend,
// which owns capture.
type intentRegistrar struct {
	backend client.Client
}

func (r intentRegistrar) RegisterPaymentIntent(ctx context.Context, p terminal.PaymentIntentParams) (string, string, error) {
	created, err := r.backend.CreatePaymentIntent(ctx, client.PaymentIntentRequest{
		Amount:          p.Amount,
		Currency:        p.Currency,
		ExtendedAuth:    p.ExtendedAuth,
		IncrementalAuth: p.IncrementalAuth,
		OrderID:         p.Metadata["order_id"],
		Source:          p.Metadata["source"],
	})
	if err != nil {
		return "", "", err
	}
	if created.Secret == "" {
		return "", "", fmt.Errorf("create payment intent: %w: empty secret", client.ErrBadResponse)
	}
	return created.IntentID, created.Secret, nil
}

// Close releases everything the App opened.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		a.log.Info(ctx, "backend reachability changed", "mode", mode)
	}
}

func (a *App) mode() Mode {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	return a.Mode
}

// getStatus renders the prompt suffix: reader state and backend mode.
func (a *App) getStatus() string {
	s := string(a.status.Get())
	if m := a.mode(); m != "" {
		s += " " + string(m)
	}
	return fmt.Sprintf("(%s)", s)
}

// StartOnlineStatusWatcher probes the backend every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.backend.Ping(pctx)
	cancel()

	if err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	a.setMode(ctx, ModeOnline)
}
