// Package models defines the backend rows persisted in Postgres.
package models

import "time"

// Payment intent statuses. The backend does not talk to a processor, so an
// intent goes straight from RequiresPaymentMethod to Succeeded on capture.
const (
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresCapture       = "requires_capture"
	StatusSucceeded             = "succeeded"
	StatusCanceled              = "canceled"
)

// PaymentIntent is a row of payment_intents. Amount is in minor units and
// Currency is lower-case.
type PaymentIntent struct {
	ID              string
	ClientSecret    string
	Amount          int64
	Currency        string
	Status          string
	Email           string
	ExtendedAuth    bool
	IncrementalAuth bool
	Metadata        map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Capturable reports whether the intent may still be captured.
func (p *PaymentIntent) Capturable() bool {
	return p.Status == StatusRequiresPaymentMethod || p.Status == StatusRequiresCapture
}

// Cancelable reports whether the intent may still be canceled.
func (p *PaymentIntent) Cancelable() bool {
	return p.Capturable()
}
