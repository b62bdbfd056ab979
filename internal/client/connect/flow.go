// Package connect drives reader selection and connection as a small state
// machine: Idle, Connecting, Connected and Failed. Only one reader can be
// connecting at a time.
package connect

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/paykiosk/internal/client/deeplink"
	"github.com/dmitrijs2005/paykiosk/internal/client/services"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
)

type State int

const (
	Idle State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Next tells the caller where to go after a successful connect.
type Next int

const (
	// NextConnectedIdle shows the connected screen.
	NextConnectedIdle Next = iota
	// NextPayment goes straight to payment for a pending deep link.
	NextPayment
)

var (
	ErrLocationNotConfigured = errors.New("location id not configured")
	ErrAlreadyConnecting     = errors.New("another reader is already connecting")
)

// ConnectError is a failed connect attempt. The caller stays on discovery
// and may retry.
type ConnectError struct {
	ReaderID string
	Err      error
}

func (e *ConnectError) Error() string {
	if te, ok := terminal.AsError(e.Err); ok {
		return "Failed to connect: " + te.Describe()
	}
	return "Failed to connect: " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Pending reports whether a deep-link payment is waiting.
type Pending interface {
	Current() (deeplink.Payload, bool)
}

type Config struct {
	LocationID    string
	Method        terminal.DiscoveryMethod
	AutoReconnect bool
}

type Flow struct {
	term    terminal.Terminal
	prefs   services.ReaderPreferences
	pending Pending
	log     logging.Logger
	cfg     Config

	mu       sync.Mutex
	state    State
	readerID string
	lastErr  error
}

func NewFlow(term terminal.Terminal, prefs services.ReaderPreferences, pending Pending, log logging.Logger, cfg Config) *Flow {
	if cfg.Method == "" {
		cfg.Method = services.DefaultDiscoveryMethod
	}
	st := Idle
	if term.ConnectionStatus() == terminal.Connected {
		st = Connected
	}
	return &Flow{
		term:    term,
		prefs:   prefs,
		pending: pending,
		log:     log.With("module", "connect"),
		cfg:     cfg,
		state:   st,
	}
}

// State returns the current state and the reader it refers to, if any.
func (f *Flow) State() (State, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.readerID
}

// ConnectingReaderID is the reader currently connecting, or "".
func (f *Flow) ConnectingReaderID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Connecting {
		return ""
	}
	return f.readerID
}

// LastError is the error of the last failed attempt.
func (f *Flow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Flow) begin(readerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Connecting {
		return ErrAlreadyConnecting
	}
	f.state = Connecting
	f.readerID = readerID
	f.lastErr = nil
	return nil
}

func (f *Flow) finish(state State, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	f.lastErr = err
	if state != Connected {
		f.readerID = ""
	}
}

// Select connects to reader. On success the reader is remembered and Next
// tells the caller where to go.
func (f *Flow) Select(ctx context.Context, reader terminal.Reader) (Next, error) {
	if f.cfg.LocationID == "" {
		f.log.Error(ctx, "cannot connect, location id is not configured")
		return NextConnectedIdle, ErrLocationNotConfigured
	}

	id := reader.Identity()
	if err := f.begin(id); err != nil {
		return NextConnectedIdle, err
	}

	f.log.Info(ctx, "connecting", "reader", id, "method", f.cfg.Method, "location", f.cfg.LocationID)

	connected, err := f.term.ConnectReader(ctx, reader, terminal.ConnectionConfig{
		Method:        f.cfg.Method,
		LocationID:    f.cfg.LocationID,
		AutoReconnect: f.cfg.AutoReconnect,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			f.finish(Idle, nil)
			return NextConnectedIdle, err
		}
		cerr := &ConnectError{ReaderID: id, Err: err}
		f.finish(Failed, cerr)
		f.log.Warn(ctx, "connect failed", "reader", id, "error", err)
		return NextConnectedIdle, cerr
	}

	f.mu.Lock()
	f.readerID = connected.Identity()
	f.mu.Unlock()
	f.finish(Connected, nil)

	if err := f.prefs.Save(ctx, connected, f.cfg.Method, f.cfg.LocationID); err != nil {
		f.log.Warn(ctx, "could not remember reader", "error", err)
	}

	f.log.Info(ctx, "connected", "reader", connected.Identity())

	if _, ok := f.pending.Current(); ok {
		return NextPayment, nil
	}
	return NextConnectedIdle, nil
}

// Disconnect drops the reader connection and forgets the saved reader.
func (f *Flow) Disconnect(ctx context.Context) error {
	if err := f.term.DisconnectReader(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	f.finish(Idle, nil)
	if err := f.prefs.Clear(ctx); err != nil {
		return err
	}
	f.log.Info(ctx, "disconnected")
	return nil
}

// Forget clears the saved reader without touching the connection.
func (f *Flow) Forget(ctx context.Context) error {
	return f.prefs.Clear(ctx)
}

// PickSaved returns the reader from readers that matches saved, so the
// kiosk can reconnect to the last reader without asking.
func PickSaved(readers []terminal.Reader, saved services.SavedReaderInfo) (terminal.Reader, bool) {
	if saved.Empty() {
		return terminal.Reader{}, false
	}
	for _, r := range readers {
		if saved.Matches(r) {
			return r, true
		}
	}
	return terminal.Reader{}, false
}
