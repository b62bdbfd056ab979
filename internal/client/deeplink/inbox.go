package deeplink

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/paykiosk/internal/logging"
)

// Inbox holds the single active deep link. Receiving anything that does not
// parse clears the previous payload so stale amounts never linger.
type Inbox struct {
	log logging.Logger

	mu      sync.Mutex
	current *Payload
}

func NewInbox(log logging.Logger) *Inbox {
	return &Inbox{log: log.With("module", "deeplink")}
}

// Receive parses raw and makes it the active payload. Errors are logged and
// swallowed; ok reports whether a payload is now active.
func (in *Inbox) Receive(ctx context.Context, raw string) (p Payload, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			in.log.Error(ctx, "unexpected failure handling deep link", "panic", r)
			in.Clear()
			p, ok = Payload{}, false
		}
	}()

	p, err := Parse(raw)
	if err != nil {
		in.Clear()
		if errors.Is(err, ErrNoData) {
			in.log.Debug(ctx, "launched without deep link")
		} else {
			in.log.Warn(ctx, "ignoring deep link", "error", err)
		}
		return Payload{}, false
	}

	in.mu.Lock()
	in.current = &p
	in.mu.Unlock()

	in.log.Info(ctx, "deep link received",
		"amount", p.Amount,
		"currency", p.Currency,
		"order_id", p.OrderID,
		"id", p.ID,
	)
	return p, true
}

// Current returns the active payload.
func (in *Inbox) Current() (Payload, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.current == nil {
		return Payload{}, false
	}
	return *in.current, true
}

// Clear drops the active payload. Clearing an empty inbox is a no-op.
func (in *Inbox) Clear() {
	in.mu.Lock()
	in.current = nil
	in.mu.Unlock()
}
