package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/paykiosk/internal/client/eventlog"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
)

// Kind names what an attempt does.
type Kind string

const (
	KindPayment   Kind = "payment"
	KindSaveCard  Kind = "save_card"
	KindRefund    Kind = "refund"
	KindCancelTxn Kind = "cancel_transaction"
)

// Attempt is one run of an operation. All methods are safe for concurrent
// use.
type Attempt struct {
	Kind   Kind
	events *eventlog.Log

	mu       sync.Mutex
	state    State
	status   string
	err      error
	display  string
	statusCh map[int]chan string
	nextSub  int

	done     chan struct{}
	doneOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newAttempt(kind Kind) *Attempt {
	return &Attempt{
		Kind:     kind,
		events:   eventlog.New(),
		state:    Idle,
		statusCh: make(map[int]chan string),
		done:     make(chan struct{}),
		cancel:   func() {},
	}
}

// Events is the attempt's event log.
func (a *Attempt) Events() *eventlog.Log { return a.events }

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Status is the latest user-facing status message.
func (a *Attempt) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// DisplayAmount is the formatted amount of a payment attempt, if known.
func (a *Attempt) DisplayAmount() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.display
}

// Err is the error the attempt settled with. It is nil for Complete.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Done is closed once the attempt settles.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Complete reports whether the attempt has settled.
func (a *Attempt) Complete() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the attempt settles or ctx ends.
func (a *Attempt) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel records the request, cancels in-flight work and waits for it to
// unwind.
func (a *Attempt) Cancel() {
	a.events.Add("Cancel invoked", "viewModel.cancel")
	a.cancel()
	a.wg.Wait()
}

// SubscribeStatus delivers status messages set after the call. Slow
// subscribers only see the latest one.
func (a *Attempt) SubscribeStatus() (<-chan string, func()) {
	ch := make(chan string, 1)

	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.statusCh[id] = ch
	a.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.statusCh, id)
			a.mu.Unlock()
		})
	}
}

func (a *Attempt) event(message, method string) {
	a.events.Add(message, method)
}

func (a *Attempt) setStatus(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
	for _, ch := range a.statusCh {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// transition moves to s unless the attempt already settled.
func (a *Attempt) transition(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() {
		return
	}
	a.state = s
}

func (a *Attempt) setDisplay(d string) {
	a.mu.Lock()
	a.display = d
	a.mu.Unlock()
}

// settle records the final state and closes Done. Only the first call has
// any effect.
func (a *Attempt) settle(s State, err error) {
	a.doneOnce.Do(func() {
		a.mu.Lock()
		if !a.state.Terminal() {
			a.state = s
		}
		a.err = err
		a.mu.Unlock()
		close(a.done)
	})
}

// listener turns SDK callbacks that arrive while the attempt runs into
// events.
type listener struct {
	terminal.NopListener
	a *Attempt
}

func (l listener) OnDisplayMessage(message string) {
	l.a.event(message, "listener.onRequestReaderDisplayMessage")
}

func (l listener) OnInputRequest(options []string) {
	l.a.event(strings.Join(options, ", "), "listener.onRequestReaderInput")
}

func (l listener) OnUnexpectedDisconnect(r terminal.Reader) {
	l.a.event("Reader disconnected: "+r.Identity(), "listener.onDisconnect")
}
