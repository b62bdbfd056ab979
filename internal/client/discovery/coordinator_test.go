package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal/terminaltest"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
)

func waitFor(t *testing.T, ch <-chan Snapshot, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if cond(s) {
				return s
			}
		case <-deadline:
			t.Fatal("condition not reached")
		}
	}
}

func TestCoordinator_FiltersOfflineReaders(t *testing.T) {
	fake := &terminaltest.Fake{
		DiscoverFn: func(ctx context.Context, cfg terminal.DiscoveryConfig, onUpdate func([]terminal.Reader)) error {
			onUpdate([]terminal.Reader{
				{ID: "tmr_a", NetworkStatus: terminal.Online},
				{ID: "tmr_b", NetworkStatus: terminal.Offline},
				{SerialNumber: "SN-c", NetworkStatus: terminal.Unknown},
			})
			<-ctx.Done()
			return ctx.Err()
		},
	}
	c := NewCoordinator(fake, logging.Discard(), Options{Timeout: time.Second})
	ch, unsub := c.Subscribe()
	defer unsub()

	c.Start(context.Background(), terminal.BluetoothScan, nil)
	defer c.Stop(nil)

	snap := waitFor(t, ch, func(s Snapshot) bool { return len(s.Readers) > 0 })
	require.Len(t, snap.Readers, 2)
	for _, r := range snap.Readers {
		assert.NotEqual(t, terminal.Offline, r.NetworkStatus)
	}
	assert.False(t, snap.TimedOut)
	assert.Len(t, c.Readers(), 2)
}

func TestCoordinator_TimeoutCancelsStreamOnce(t *testing.T) {
	streamDone := make(chan error, 1)
	fake := &terminaltest.Fake{
		DiscoverFn: func(ctx context.Context, cfg terminal.DiscoveryConfig, onUpdate func([]terminal.Reader)) error {
			<-ctx.Done()
			streamDone <- ctx.Err()
			return ctx.Err()
		},
	}
	var failures atomic.Int32
	c := NewCoordinator(fake, logging.Discard(), Options{Timeout: 30 * time.Millisecond})
	ch, unsub := c.Subscribe()
	defer unsub()

	c.Start(context.Background(), terminal.USB, func(error) { failures.Add(1) })

	waitFor(t, ch, func(s Snapshot) bool { return s.TimedOut })
	select {
	case err := <-streamDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("stream was not canceled")
	}

	c.Stop(nil)
	assert.True(t, c.TimedOut())
	assert.Zero(t, failures.Load(), "timeout is not a failure")
}

func TestCoordinator_SnapshotCancelsTimeout(t *testing.T) {
	fake := &terminaltest.Fake{
		DiscoverFn: func(ctx context.Context, cfg terminal.DiscoveryConfig, onUpdate func([]terminal.Reader)) error {
			onUpdate(nil)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	c := NewCoordinator(fake, logging.Discard(), Options{Timeout: 20 * time.Millisecond})

	c.Start(context.Background(), terminal.BluetoothScan, nil)
	time.Sleep(80 * time.Millisecond)

	assert.False(t, c.TimedOut())
	c.Stop(nil)
}

func TestCoordinator_FailureCallback(t *testing.T) {
	boom := &terminal.Error{Code: terminal.CodeNetwork, Message: "bluetooth off"}
	fake := &terminaltest.Fake{
		DiscoverFn: func(ctx context.Context, cfg terminal.DiscoveryConfig, onUpdate func([]terminal.Reader)) error {
			return boom
		},
	}
	got := make(chan error, 1)
	c := NewCoordinator(fake, logging.Discard(), Options{Timeout: time.Second})

	c.Start(context.Background(), terminal.BluetoothScan, func(err error) { got <- err })

	select {
	case err := <-got:
		assert.True(t, errors.Is(err, boom))
	case <-time.After(time.Second):
		t.Fatal("onFailure not called")
	}
	c.Stop(nil)
}

func TestCoordinator_StopWaitsThenCallsDone(t *testing.T) {
	exited := make(chan struct{})
	fake := &terminaltest.Fake{
		DiscoverFn: func(ctx context.Context, cfg terminal.DiscoveryConfig, onUpdate func([]terminal.Reader)) error {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			close(exited)
			return ctx.Err()
		},
	}
	c := NewCoordinator(fake, logging.Discard(), Options{Timeout: time.Second})
	c.Start(context.Background(), terminal.BluetoothScan, nil)

	var doneCalled bool
	c.Stop(func() {
		select {
		case <-exited:
			doneCalled = true
		default:
			t.Error("done called before the stream exited")
		}
	})
	assert.True(t, doneCalled)
}

func TestCoordinator_StartSupersedesPreviousStream(t *testing.T) {
	var live, maxLive atomic.Int32
	fake := &terminaltest.Fake{
		DiscoverFn: func(ctx context.Context, cfg terminal.DiscoveryConfig, onUpdate func([]terminal.Reader)) error {
			n := live.Add(1)
			for {
				m := maxLive.Load()
				if n <= m || maxLive.CompareAndSwap(m, n) {
					break
				}
			}
			<-ctx.Done()
			live.Add(-1)
			return ctx.Err()
		},
	}
	c := NewCoordinator(fake, logging.Discard(), Options{Timeout: time.Second})

	for i := 0; i < 5; i++ {
		c.Start(context.Background(), terminal.BluetoothScan, nil)
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop(nil)

	assert.Equal(t, int32(1), maxLive.Load(), "only one stream is ever live")
	assert.Equal(t, 5, fake.Count("DiscoverReaders"))
}

func TestCoordinator_DefaultTimeout(t *testing.T) {
	c := NewCoordinator(&terminaltest.Fake{}, logging.Discard(), Options{})
	assert.Equal(t, DefaultTimeout, c.timeout)
}
