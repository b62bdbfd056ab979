package terminal

import (
	"context"
	"strings"
)

// ConnectionStatus mirrors the SDK's reader connection state.
type ConnectionStatus string

const (
	NotConnected ConnectionStatus = "not_connected"
	Connecting   ConnectionStatus = "connecting"
	Connected    ConnectionStatus = "connected"
)

// DiscoveryMethod is the transport used to look for readers.
type DiscoveryMethod string

const (
	BluetoothScan DiscoveryMethod = "bluetooth_scan"
	USB           DiscoveryMethod = "usb"
)

// ParseDiscoveryMethod accepts the stored or user supplied name of a method,
// case-insensitively.
func ParseDiscoveryMethod(s string) (DiscoveryMethod, bool) {
	switch DiscoveryMethod(strings.ToLower(strings.TrimSpace(s))) {
	case BluetoothScan:
		return BluetoothScan, true
	case USB:
		return USB, true
	}
	return "", false
}

type NetworkStatus string

const (
	Online  NetworkStatus = "online"
	Offline NetworkStatus = "offline"
	Unknown NetworkStatus = "unknown"
)

type Reader struct {
	ID              string
	SerialNumber    string
	DeviceType      string
	NetworkStatus   NetworkStatus
	LocationID      string
	LocationName    string
	SoftwareVersion string
	BatteryLevel    float64
}

// Identity is the reader id, or the serial number for readers that have
// not been registered to a location yet.
func (r Reader) Identity() string {
	if r.ID != "" {
		return r.ID
	}
	return r.SerialNumber
}

type DiscoveryConfig struct {
	Method    DiscoveryMethod
	Simulated bool
}

type ConnectionConfig struct {
	Method        DiscoveryMethod
	LocationID    string
	AutoReconnect bool
}

type IntentStatus string

const (
	RequiresPaymentMethod IntentStatus = "requires_payment_method"
	RequiresConfirmation  IntentStatus = "requires_confirmation"
	RequiresCapture       IntentStatus = "requires_capture"
	Succeeded             IntentStatus = "succeeded"
	Canceled              IntentStatus = "canceled"
)

type PaymentIntentParams struct {
	Amount             int64
	Currency           string
	PaymentMethodTypes []string
	ExtendedAuth       bool
	IncrementalAuth    bool
	Metadata           map[string]string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       IntentStatus
	Metadata     map[string]string
}

type CollectConfig struct {
	SkipTipping bool
}

type SetupIntent struct {
	ID     string
	Status IntentStatus
}

type RefundParams struct {
	PaymentIntentID string
	Amount          int64
	Currency        string
}

type Refund struct {
	ID              string
	PaymentIntentID string
	Amount          int64
	Currency        string
	Status          IntentStatus
}

// Terminal is the card-reader SDK surface used by the kiosk. Every blocking
// call honors ctx; a canceled call returns an *Error with CodeCanceled or the
// context error.
type Terminal interface {
	ConnectionStatus() ConnectionStatus

	// DiscoverReaders streams reader snapshots to onUpdate until ctx is
	// canceled or discovery fails. Each snapshot replaces the previous one.
	DiscoverReaders(ctx context.Context, cfg DiscoveryConfig, onUpdate func([]Reader)) error
	ConnectReader(ctx context.Context, reader Reader, cfg ConnectionConfig) (Reader, error)
	DisconnectReader(ctx context.Context) error
	ConnectedReader() (Reader, bool)

	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, clientSecret string) (PaymentIntent, error)
	// ProcessPaymentIntent collects a payment method and confirms the intent.
	ProcessPaymentIntent(ctx context.Context, intent PaymentIntent, cfg CollectConfig) (PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intent PaymentIntent) (PaymentIntent, error)

	CreateSetupIntent(ctx context.Context) (SetupIntent, error)
	ProcessSetupIntent(ctx context.Context, intent SetupIntent) (SetupIntent, error)
	CancelSetupIntent(ctx context.Context, intent SetupIntent) (SetupIntent, error)

	ProcessRefund(ctx context.Context, params RefundParams) (Refund, error)
	InstallAvailableUpdate(ctx context.Context) error
}

// IntentRegistrar creates payment intents on the backend for intents the
// reader creates itself, so the backend can later capture them.
type IntentRegistrar interface {
	RegisterPaymentIntent(ctx context.Context, params PaymentIntentParams) (id, secret string, err error)
}

// TokenProvider supplies connection tokens to the SDK.
type TokenProvider interface {
	FetchConnectionToken(ctx context.Context) (string, error)
}
