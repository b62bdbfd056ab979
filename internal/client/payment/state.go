package payment

import "fmt"

type State int

const (
	Idle State = iota
	Creating
	Collecting
	Processing
	Capturing
	Complete
	Errored
	Canceled
)

var stateNames = map[State]string{
	Idle:       "idle",
	Creating:   "creating",
	Collecting: "collecting",
	Processing: "processing",
	Capturing:  "capturing",
	Complete:   "complete",
	Errored:    "errored",
	Canceled:   "canceled",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether s absorbs all further transitions.
func (s State) Terminal() bool {
	return s == Complete || s == Errored || s == Canceled
}

// User-facing status messages.
const (
	StatusConnecting        = "Connecting to server..."
	StatusConnectionFailed  = "Connection failed. Please try again."
	StatusInvalidResponse   = "Invalid response from server. Please try again."
	StatusProcessing        = "Connected. Processing payment..."
	StatusRetrieving        = "Connected. Retrieving payment..."
	StatusWaitingForCard    = "Connected. Waiting for card..."
	StatusFinalizing        = "Connected. Finalizing payment..."
	StatusSuccess           = "Payment successful!"
	StatusCaptureFailed     = "Payment processed, but capture failed. Please check with support."
	StatusNoInternet        = "No internet connection. Please check your network."
	StatusTimeout           = "Connection timeout. Please try again."
	StatusUnableToConnect   = "Unable to connect to server. Please try again."
	StatusConnectionError   = "Connection error. Please try again."
	StatusNetworkError      = "Network error. Please try again."
	StatusPaymentCanceled   = "Payment canceled."
	StatusPaymentFailed     = "Payment failed. Please try again."
	StatusCardSaved         = "Card saved."
	StatusRefunded          = "Refund processed."
	StatusTransactionClosed = "Transaction canceled."
)
