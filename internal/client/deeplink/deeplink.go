// Package deeplink turns the URI the kiosk is launched with into an
// immutable payment payload.
//
// A deep link looks like
//
//	paykiosk://pay?amount=12.50&currency=cad&id=abc&email=a@b.c
//
// Only amount is required. It is a decimal string that must be greater than
// zero and is converted to minor units by multiplying by 100 and truncating.
package deeplink

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/paykiosk/internal/common"
)

var (
	ErrNoData            = errors.New("deep link has no data")
	ErrMalformedURI      = errors.New("deep link is not a valid uri")
	ErrMissingAmount     = errors.New("deep link has no amount")
	ErrInvalidAmount     = errors.New("deep link amount is not a number")
	ErrNonPositiveAmount = errors.New("deep link amount must be greater than zero")
)

var (
	hundred   = decimal.NewFromInt(100)
	maxAmount = decimal.NewFromInt(math.MaxInt64)
)

// Payload is the parsed deep link. It is passed by value; nothing in the
// kiosk mutates a Payload after Parse returns it.
type Payload struct {
	// Amount in minor currency units.
	Amount int64
	// AmountDisplay is the amount text exactly as received.
	AmountDisplay string
	// Currency is upper-case, USD when absent.
	Currency string

	CustomerID    string
	OrderID       string
	LocationID    string
	Email         string
	ID            string
	AdminUserID   string
	WashType      string
	PackageID     string
	VehicleID     string
	Source        string
	PhoneNumber   string
	PublicOrderID string
}

// Parse validates raw and returns its payload.
func Parse(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, ErrNoData
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}

	amountText := strings.TrimSpace(q.Get("amount"))
	if amountText == "" {
		return Payload{}, ErrMissingAmount
	}

	minor, err := MinorUnits(amountText)
	if err != nil {
		return Payload{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(q.Get("currency")))
	if currency == "" {
		currency = common.DefaultCurrency
	}

	orderID := q.Get("orderId")
	if orderID == "" {
		orderID = q.Get("order_id")
	}

	return Payload{
		Amount:        minor,
		AmountDisplay: amountText,
		Currency:      currency,
		CustomerID:    q.Get("customerId"),
		OrderID:       orderID,
		LocationID:    q.Get("locationId"),
		Email:         q.Get("email"),
		ID:            q.Get("id"),
		AdminUserID:   q.Get("admin_user_id"),
		WashType:      q.Get("wash_type"),
		PackageID:     q.Get("package_id"),
		VehicleID:     q.Get("vehicle_id"),
		Source:        q.Get("source"),
		PhoneNumber:   q.Get("phoneNumber"),
		PublicOrderID: q.Get("public_order_id"),
	}, nil
}

// MinorUnits converts a decimal amount such as "12.50" to 1250. Fractions of
// a minor unit are truncated. Amounts that round down to zero are rejected.
func MinorUnits(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %q", ErrNonPositiveAmount, amount)
	}

	minor := d.Mul(hundred).Truncate(0)
	if minor.IsZero() {
		return 0, fmt.Errorf("%w: %q is below one minor unit", ErrNonPositiveAmount, amount)
	}
	if minor.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, amount)
	}
	return minor.IntPart(), nil
}

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "$",
	"AUD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatAmount renders minor units for display: "$12.50" for dollar
// currencies, "12.50 SEK" for currencies without a known symbol.
func FormatAmount(minor int64, currency string) string {
	currency = strings.ToUpper(currency)
	text := decimal.New(minor, -2).StringFixed(2)
	if sym, ok := currencySymbols[currency]; ok {
		return sym + text
	}
	return text + " " + currency
}

// Display formats the payload amount for the UI.
func (p Payload) Display() string {
	return FormatAmount(p.Amount, p.Currency)
}
