package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/paykiosk/internal/client/connect"
	"github.com/dmitrijs2005/paykiosk/internal/client/services"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
)

// ErrNoReaders is returned when discovery times out without finding a reader.
var ErrNoReaders = errors.New("no readers found")

const maxConnectAttempts = 3

// ensureConnected discovers and connects a reader unless the status holder
// already allows payments. The saved reader is picked automatically when it
// shows up.
func (a *App) ensureConnected(ctx context.Context) error {
	if a.status.PaymentEnabled() {
		return nil
	}

	saved, err := a.prefs.Load(ctx)
	if err != nil {
		a.log.Warn(ctx, "could not load saved reader", "error", err)
		saved = services.SavedReaderInfo{}
	}

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		reader, err := a.discoverReader(ctx, saved)
		if err != nil {
			return err
		}

		a.println(renderStatus("Connecting to " + reader.Identity() + "..."))
		if _, err := a.flow.Select(ctx, reader); err != nil {
			var cerr *connect.ConnectError
			if !errors.As(err, &cerr) {
				return err
			}
			a.println(failStyle.Render(cerr.Error()))
			// A saved reader that fails to connect is not picked again.
			saved = services.SavedReaderInfo{}
			lastErr = err
			continue
		}

		a.println(okStyle.Render("Connected to " + reader.Identity()))
		return nil
	}
	return lastErr
}

func (a *App) discoverReader(ctx context.Context, saved services.SavedReaderInfo) (terminal.Reader, error) {
	snaps, unsubscribe := a.discovery.Subscribe()
	defer unsubscribe()

	failed := make(chan error, 1)
	a.println(renderStatus(fmt.Sprintf("Searching for readers (%s)...", a.config.DiscoveryMethod)))
	a.discovery.Start(ctx, a.config.DiscoveryMethod, func(err error) {
		select {
		case failed <- err:
		default:
		}
	})
	defer a.discovery.Stop(nil)

	for {
		select {
		case <-ctx.Done():
			return terminal.Reader{}, ctx.Err()
		case err := <-failed:
			return terminal.Reader{}, fmt.Errorf("discovery failed: %w", err)
		case snap := <-snaps:
			if snap.TimedOut {
				return terminal.Reader{}, ErrNoReaders
			}
			if len(snap.Readers) == 0 {
				continue
			}
			if r, ok := connect.PickSaved(snap.Readers, saved); ok {
				a.println(renderStatus("Reconnecting to saved reader " + r.Identity()))
				return r, nil
			}
			return a.picker.Pick(snap.Readers)
		}
	}
}
