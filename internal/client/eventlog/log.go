// Package eventlog records the human-readable steps of one payment attempt.
package eventlog

import "sync"

// Event is one step: what happened and which call produced it.
type Event struct {
	Message string
	Method  string
}

// Log is append-only and keeps insertion order. It has no size bound and no
// deduplication. A new Log is created for every attempt.
type Log struct {
	mu     sync.Mutex
	events []Event
	next   int
	subs   map[int]chan Event
}

func New() *Log {
	return &Log{subs: make(map[int]chan Event)}
}

// subscriberBuffer is the per-subscriber backlog. Events beyond it are
// dropped for that subscriber but never from the log.
const subscriberBuffer = 256

func (l *Log) Add(message, method string) {
	e := Event{Message: message, Method: method}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, e)
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Events returns a copy of everything recorded so far.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Subscribe delivers events added after the call. The returned func stops
// delivery and closes the channel.
func (l *Log) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	l.mu.Lock()
	id := l.next
	l.next++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			close(ch)
			l.mu.Unlock()
		})
	}
}
