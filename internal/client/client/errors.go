package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrUnavailable    = errors.New("server unavailable")
	ErrTimeout        = errors.New("server timeout")
	ErrNoConnectivity = errors.New("no internet connection")
	ErrBadResponse    = errors.New("invalid response from server")
)

// StatusError is a non-2xx backend reply.
type StatusError struct {
	Code    int
	Message string
	Body    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned %d %s", e.Code, http.StatusText(e.Code))
}

// classify maps a transport error onto the package sentinels. Context
// cancellation is returned untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return fmt.Errorf("%w: %v", ErrNoConnectivity, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return fmt.Errorf("request failed: %w", err)
}
