package payment

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
)

// IntentRepository remembers intents the kiosk created so they can be
// refunded or canceled by id later. Lookups report found=false for an
// unknown id rather than an error.
type IntentRepository interface {
	PutPayment(ctx context.Context, pi terminal.PaymentIntent) error
	PutSetup(ctx context.Context, si terminal.SetupIntent) error
	PutRefund(ctx context.Context, re terminal.Refund) error
	Payment(ctx context.Context, id string) (terminal.PaymentIntent, bool, error)
	Setup(ctx context.Context, id string) (terminal.SetupIntent, bool, error)
	Refunds(ctx context.Context, paymentIntentID string) ([]terminal.Refund, error)
}

// MemoryIntents keeps intents for the lifetime of the process only.
type MemoryIntents struct {
	mu       sync.RWMutex
	payments map[string]terminal.PaymentIntent
	setups   map[string]terminal.SetupIntent
	refunds  map[string][]terminal.Refund
}

func NewMemoryIntents() *MemoryIntents {
	return &MemoryIntents{
		payments: make(map[string]terminal.PaymentIntent),
		setups:   make(map[string]terminal.SetupIntent),
		refunds:  make(map[string][]terminal.Refund),
	}
}

func (m *MemoryIntents) PutPayment(_ context.Context, pi terminal.PaymentIntent) error {
	if pi.ID == "" {
		return nil
	}
	m.mu.Lock()
	m.payments[pi.ID] = pi
	m.mu.Unlock()
	return nil
}

func (m *MemoryIntents) PutSetup(_ context.Context, si terminal.SetupIntent) error {
	if si.ID == "" {
		return nil
	}
	m.mu.Lock()
	m.setups[si.ID] = si
	m.mu.Unlock()
	return nil
}

func (m *MemoryIntents) PutRefund(_ context.Context, re terminal.Refund) error {
	m.mu.Lock()
	m.refunds[re.PaymentIntentID] = append(m.refunds[re.PaymentIntentID], re)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIntents) Payment(_ context.Context, id string) (terminal.PaymentIntent, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pi, ok := m.payments[id]
	return pi, ok, nil
}

func (m *MemoryIntents) Setup(_ context.Context, id string) (terminal.SetupIntent, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	si, ok := m.setups[id]
	return si, ok, nil
}

func (m *MemoryIntents) Refunds(_ context.Context, paymentIntentID string) ([]terminal.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]terminal.Refund(nil), m.refunds[paymentIntentID]...), nil
}
