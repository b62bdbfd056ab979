package models

import "time"

type Address struct {
	Line1      string
	Line2      string
	City       string
	PostalCode string
	State      string
	Country    string
}

// Location groups readers; a kiosk connects its reader to one location id.
type Location struct {
	ID          string
	DisplayName string
	Address     Address
	CreatedAt   time.Time
}
