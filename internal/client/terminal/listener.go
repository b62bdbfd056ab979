package terminal

import (
	"sort"
	"sync"
)

// Listener receives SDK callbacks. Embed NopListener to implement only the
// callbacks you need.
type Listener interface {
	OnConnectionStatusChange(status ConnectionStatus)
	OnDisplayMessage(message string)
	OnInputRequest(options []string)
	OnUnexpectedDisconnect(reader Reader)
	OnReconnectStarted(reader Reader)
	OnReconnectSucceeded(reader Reader)
	OnReconnectFailed(reader Reader)
	OnUpdateStarted(reader Reader)
	OnUpdateProgress(progress float64)
	OnUpdateFinished(err error)
}

type NopListener struct{}

func (NopListener) OnConnectionStatusChange(ConnectionStatus) {}
func (NopListener) OnDisplayMessage(string)                   {}
func (NopListener) OnInputRequest([]string)                   {}
func (NopListener) OnUnexpectedDisconnect(Reader)             {}
func (NopListener) OnReconnectStarted(Reader)                 {}
func (NopListener) OnReconnectSucceeded(Reader)               {}
func (NopListener) OnReconnectFailed(Reader)                  {}
func (NopListener) OnUpdateStarted(Reader)                    {}
func (NopListener) OnUpdateProgress(float64)                  {}
func (NopListener) OnUpdateFinished(error)                    {}

// Listeners is an observer registry. It implements Listener itself and fans
// every callback out to the registered listeners in registration order.
// Callbacks run outside the registry lock, so a listener may unregister
// itself from inside a callback.
type Listeners struct {
	mu   sync.RWMutex
	next int
	m    map[int]Listener
}

func NewListeners() *Listeners {
	return &Listeners{m: make(map[int]Listener)}
}

// Register adds l and returns a func that removes it. The func is safe to
// call more than once.
func (ls *Listeners) Register(l Listener) (unregister func()) {
	ls.mu.Lock()
	id := ls.next
	ls.next++
	ls.m[id] = l
	ls.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ls.mu.Lock()
			delete(ls.m, id)
			ls.mu.Unlock()
		})
	}
}

// Len reports the number of registered listeners.
func (ls *Listeners) Len() int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.m)
}

func (ls *Listeners) snapshot() []Listener {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	ids := make([]int, 0, len(ls.m))
	for id := range ls.m {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, ls.m[id])
	}
	return out
}

func (ls *Listeners) each(fn func(Listener)) {
	for _, l := range ls.snapshot() {
		fn(l)
	}
}

func (ls *Listeners) OnConnectionStatusChange(status ConnectionStatus) {
	ls.each(func(l Listener) { l.OnConnectionStatusChange(status) })
}

func (ls *Listeners) OnDisplayMessage(message string) {
	ls.each(func(l Listener) { l.OnDisplayMessage(message) })
}

func (ls *Listeners) OnInputRequest(options []string) {
	ls.each(func(l Listener) { l.OnInputRequest(options) })
}

func (ls *Listeners) OnUnexpectedDisconnect(reader Reader) {
	ls.each(func(l Listener) { l.OnUnexpectedDisconnect(reader) })
}

func (ls *Listeners) OnReconnectStarted(reader Reader) {
	ls.each(func(l Listener) { l.OnReconnectStarted(reader) })
}

func (ls *Listeners) OnReconnectSucceeded(reader Reader) {
	ls.each(func(l Listener) { l.OnReconnectSucceeded(reader) })
}

func (ls *Listeners) OnReconnectFailed(reader Reader) {
	ls.each(func(l Listener) { l.OnReconnectFailed(reader) })
}

func (ls *Listeners) OnUpdateStarted(reader Reader) {
	ls.each(func(l Listener) { l.OnUpdateStarted(reader) })
}

func (ls *Listeners) OnUpdateProgress(progress float64) {
	ls.each(func(l Listener) { l.OnUpdateProgress(progress) })
}

func (ls *Listeners) OnUpdateFinished(err error) {
	ls.each(func(l Listener) { l.OnUpdateFinished(err) })
}
