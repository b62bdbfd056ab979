// Package discovery runs the reader discovery stream with a timeout and
// publishes filtered snapshots of the readers found.
package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
)

// DefaultTimeout is how long discovery waits for a first snapshot.
const DefaultTimeout = 15 * time.Second

// Snapshot is the published state after every change.
type Snapshot struct {
	Readers  []terminal.Reader
	TimedOut bool
}

type Options struct {
	Timeout   time.Duration
	Simulated bool
}

// Coordinator owns at most one discovery stream at a time. Starting a new
// stream stops and waits for the previous one first.
type Coordinator struct {
	term      terminal.Terminal
	log       logging.Logger
	timeout   time.Duration
	simulated bool

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu       sync.Mutex
	readers  []terminal.Reader
	timedOut bool
	subs     map[int]chan Snapshot
	nextSub  int
}

func NewCoordinator(term terminal.Terminal, log logging.Logger, opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Coordinator{
		term:      term,
		log:       log.With("module", "discovery"),
		timeout:   opts.Timeout,
		simulated: opts.Simulated,
		subs:      make(map[int]chan Snapshot),
	}
}

// Start begins discovery over method. onFailure is called from the stream
// goroutine when discovery fails for any reason other than cancellation.
func (c *Coordinator) Start(ctx context.Context, method terminal.DiscoveryMethod, onFailure func(error)) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.stopLocked()

	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.mu.Lock()
	c.readers = nil
	c.timedOut = false
	c.mu.Unlock()
	c.publish()

	firstSnapshot := make(chan struct{})
	var once sync.Once

	cfg := terminal.DiscoveryConfig{Method: method, Simulated: c.simulated}
	c.log.Info(ctx, "discovery started", "method", method, "simulated", c.simulated, "timeout", c.timeout)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		err := c.term.DiscoverReaders(streamCtx, cfg, func(readers []terminal.Reader) {
			once.Do(func() { close(firstSnapshot) })
			c.update(online(readers))
		})
		if err == nil || errors.Is(err, context.Canceled) || streamCtx.Err() != nil {
			return
		}
		c.log.Error(ctx, "discovery failed", "error", err)
		if onFailure != nil {
			onFailure(err)
		}
	}()

	go func() {
		defer c.wg.Done()
		t := time.NewTimer(c.timeout)
		defer t.Stop()

		select {
		case <-t.C:
			cancel()
			c.mu.Lock()
			c.timedOut = true
			c.mu.Unlock()
			c.publish()
			c.log.Warn(ctx, "discovery timed out", "after", c.timeout)
		case <-firstSnapshot:
		case <-streamCtx.Done():
		}
	}()
}

// Stop cancels the running stream, waits for it to exit and then calls done.
// done may be nil.
func (c *Coordinator) Stop(done func()) {
	c.lifecycle.Lock()
	c.stopLocked()
	c.lifecycle.Unlock()

	if done != nil {
		done()
	}
}

func (c *Coordinator) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.wg.Wait()
}

func online(readers []terminal.Reader) []terminal.Reader {
	out := make([]terminal.Reader, 0, len(readers))
	for _, r := range readers {
		if r.NetworkStatus == terminal.Offline {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (c *Coordinator) update(readers []terminal.Reader) {
	c.mu.Lock()
	c.readers = readers
	c.timedOut = false
	c.mu.Unlock()
	c.publish()
}

// Readers returns the latest filtered snapshot.
func (c *Coordinator) Readers() []terminal.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]terminal.Reader(nil), c.readers...)
}

// TimedOut reports whether the current stream ended without any snapshot.
func (c *Coordinator) TimedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timedOut
}

// Subscribe returns a channel carrying the latest Snapshot after every
// change. Slow subscribers only see the most recent one.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Coordinator) publish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{Readers: append([]terminal.Reader(nil), c.readers...), TimedOut: c.timedOut}
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
