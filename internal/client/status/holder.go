// Package status mirrors the reader connection status for the rest of the
// kiosk. The SDK is the only writer: Holder is registered as a terminal
// listener and updated from OnConnectionStatusChange.
package status

import (
	"sync"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
)

type Holder struct {
	terminal.NopListener

	mu     sync.RWMutex
	status terminal.ConnectionStatus
	next   int
	subs   map[int]chan terminal.ConnectionStatus
}

func NewHolder(initial terminal.ConnectionStatus) *Holder {
	if initial == "" {
		initial = terminal.NotConnected
	}
	return &Holder{status: initial, subs: make(map[int]chan terminal.ConnectionStatus)}
}

func (h *Holder) Get() terminal.ConnectionStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// PaymentEnabled reports whether a payment can be started.
func (h *Holder) PaymentEnabled() bool {
	return h.Get() == terminal.Connected
}

func (h *Holder) OnConnectionStatusChange(s terminal.ConnectionStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status == s {
		return
	}
	h.status = s
	for _, ch := range h.subs {
		// subscribers only care about the latest value
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Subscribe returns a channel that receives the latest status after every
// change. A slow subscriber only sees the most recent value.
func (h *Holder) Subscribe() (<-chan terminal.ConnectionStatus, func()) {
	ch := make(chan terminal.ConnectionStatus, 1)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}
