package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/paykiosk/internal/common"
)

// Client is the payment backend API.
type Client interface {
	FetchConnectionToken(ctx context.Context) (string, error)
	CreateLocation(ctx context.Context, loc LocationRequest) (string, error)
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntentCreation, error)
	CapturePaymentIntent(ctx context.Context, intentID string) (CaptureResult, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
	Ping(ctx context.Context) error
	Close() error
}

type LocationRequest struct {
	DisplayName string
	Line1       string
	Line2       string
	City        string
	PostalCode  string
	State       string
	Country     string
}

func (l LocationRequest) Form() url.Values {
	return url.Values{
		"display_name":         {l.DisplayName},
		"address[line1]":       {l.Line1},
		"address[line2]":       {l.Line2},
		"address[city]":        {l.City},
		"address[postal_code]": {l.PostalCode},
		"address[state]":       {l.State},
		"address[country]":     {l.Country},
	}
}

// PaymentIntentRequest is what the kiosk sends to create an intent on the
// backend. Empty metadata fields are omitted from the form.
type PaymentIntentRequest struct {
	Amount          int64
	Currency        string
	Email           string
	ExtendedAuth    bool
	IncrementalAuth bool

	CustomerID    string
	OrderID       string
	LocationID    string
	AdminUserID   string
	WashType      string
	PackageID     string
	VehicleID     string
	PhoneNumber   string
	PublicOrderID string
	Source        string
}

func (r PaymentIntentRequest) Form() url.Values {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(r.Amount, 10))
	form.Set("currency", strings.ToLower(r.Currency))
	if r.Email != "" {
		form.Set("email", r.Email)
	}
	form.Set("payment_method_options[card_present[request_extended_authorization]]", strconv.FormatBool(r.ExtendedAuth))
	form.Set("payment_method_options[card_present[request_incremental_authorization_support]]", strconv.FormatBool(r.IncrementalAuth))

	source := r.Source
	if source == "" {
		source = common.DefaultSource
	}

	meta := []struct{ key, value string }{
		{"customer_id", r.CustomerID},
		{"order_id", r.OrderID},
		{"location_id", r.LocationID},
		{"admin_user_id", r.AdminUserID},
		{"wash_type", r.WashType},
		{"package_id", r.PackageID},
		{"vehicle_id", r.VehicleID},
		{"phone_number", r.PhoneNumber},
		{"public_order_id", r.PublicOrderID},
		{"source", source},
	}
	for _, m := range meta {
		if m.value != "" {
			form.Set("metadata["+m.key+"]", m.value)
		}
	}
	return form
}

// PaymentIntentCreation is the backend's reply to a create call.
type PaymentIntentCreation struct {
	IntentID string `json:"intent"`
	Secret   string `json:"secret"`
}

type CaptureResult struct {
	IntentID string `json:"intent"`
	Status   string `json:"status"`
}
