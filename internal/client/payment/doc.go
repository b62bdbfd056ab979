// Package payment orchestrates one payment, setup, refund or cancel attempt
// against the reader SDK and the backend.
//
// Every operation returns an *Attempt immediately and runs in its own
// goroutine. An attempt moves through
//
//	Idle → Creating → Collecting → Processing → Capturing → Complete
//
// and may end in Errored or Canceled from any non-terminal state. Whatever
// the outcome, Done is closed exactly once when the attempt settles. Errors
// never escape as panics or retries: they become event log entries and a
// user-facing status message.
package payment
