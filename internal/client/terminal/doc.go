// Package terminal is the boundary between the kiosk and the card-reader SDK.
//
// The Terminal interface covers discovery, connection, payment intents, setup
// intents, refunds and reader software updates. SDK callbacks are delivered
// through a Listeners registry: components register a Listener and get back an
// unregister func, so no caller depends on which screen is currently active.
//
// Simulated implements Terminal without hardware. It fetches a connection
// token from a TokenProvider before connecting, just like the real SDK.
package terminal
