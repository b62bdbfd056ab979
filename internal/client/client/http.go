package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/paykiosk/internal/netx"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 30 * time.Second

// HTTPClient talks to the backend over form-encoded HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	health  *HealthChecker
}

type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.http = c }
}

// WithHealthChecker makes Ping use gRPC health checks.
func WithHealthChecker(hc *HealthChecker) HTTPOption {
	return func(h *HTTPClient) { h.health = hc }
}

func NewHTTPClient(baseURL string, timeout time.Duration, opts ...HTTPOption) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *HTTPClient) endpoint(path string) string {
	return c.baseURL + "/" + path
}

// post sends form to path and decodes a 2xx JSON reply into out.
func (c *HTTPClient) post(ctx context.Context, path string, form url.Values, out any) error {
	code, body, err := netx.PostForm(ctx, c.http, c.endpoint(path), form)
	if err != nil {
		return classify(err)
	}

	if code < 200 || code > 299 {
		se := &StatusError{Code: code, Body: string(body)}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil {
			se.Message = e.Error
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func (c *HTTPClient) FetchConnectionToken(ctx context.Context) (string, error) {
	var resp struct {
		Secret string `json:"secret"`
	}
	if err := c.post(ctx, "connection_token", url.Values{}, &resp); err != nil {
		return "", fmt.Errorf("connection token: %w", err)
	}
	if resp.Secret == "" {
		return "", fmt.Errorf("connection token: %w: empty secret", ErrBadResponse)
	}
	return resp.Secret, nil
}

func (c *HTTPClient) CreateLocation(ctx context.Context, loc LocationRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "create_location", loc.Form(), &resp); err != nil {
		return "", fmt.Errorf("create location: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create location: %w: empty id", ErrBadResponse)
	}
	return resp.ID, nil
}

// CreatePaymentIntent returns the created intent. An empty secret is
// reported as the value, not as an error, so callers can word it.
func (c *HTTPClient) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntentCreation, error) {
	var resp PaymentIntentCreation
	if err := c.post(ctx, "create_payment_intent", req.Form(), &resp); err != nil {
		return PaymentIntentCreation{}, fmt.Errorf("create payment intent: %w", err)
	}
	return resp, nil
}

func (c *HTTPClient) CapturePaymentIntent(ctx context.Context, intentID string) (CaptureResult, error) {
	var resp CaptureResult
	if err := c.post(ctx, "capture_payment_intent", url.Values{"payment_intent_id": {intentID}}, &resp); err != nil {
		return CaptureResult{}, fmt.Errorf("capture payment intent: %w", err)
	}
	return resp, nil
}

func (c *HTTPClient) CancelPaymentIntent(ctx context.Context, intentID string) error {
	if err := c.post(ctx, "cancel_payment_intent", url.Values{"payment_intent_id": {intentID}}, nil); err != nil {
		return fmt.Errorf("cancel payment intent: %w", err)
	}
	return nil
}

// Ping checks backend liveness, over gRPC health when configured and
// GET /healthz otherwise.
func (c *HTTPClient) Ping(ctx context.Context) error {
	if c.health != nil {
		return c.health.Check(ctx)
	}

	code, _, err := netx.Get(ctx, c.http, c.endpoint("healthz"))
	if err != nil {
		return classify(err)
	}
	if code != http.StatusOK {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	if c.health != nil {
		return c.health.Close()
	}
	return nil
}
