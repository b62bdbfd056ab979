// Package client contains the kiosk's backend building blocks.
//
// # Overview
//
// The package provides:
//  1. The Client contract for the payment backend: connection tokens,
//     locations, and creating, capturing and canceling payment intents.
//  2. HTTPClient, a form-encoded HTTP implementation with a 30 second
//     timeout. It also satisfies terminal.TokenProvider.
//  3. HealthChecker, a grpc.health.v1 probe used by Ping when a health
//     address is configured.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Transport failures are classified into sentinel errors that callers match
// with errors.Is: ErrNoConnectivity, ErrTimeout, ErrUnavailable. Replies that
// cannot be decoded yield ErrBadResponse and non-2xx replies a *StatusError.
package client
