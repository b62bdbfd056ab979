// Package common contains constants, sentinel errors and small helpers shared
// by the kiosk and the backend.
package common

// DefaultCurrency is used when a deep link or a manual payment omits currency.
const DefaultCurrency = "USD"

// DefaultSource tags backend-created payment intents launched from the web app.
const DefaultSource = "saas"

// ClientSecretSeparator joins an intent id and its random suffix in a client
// secret, e.g. "pi_3f2a..._secret_9c1e...".
const ClientSecretSeparator = "_secret_"
