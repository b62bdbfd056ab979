// Package cli is the kiosk front end: a cobra command tree over the
// discovery, connect and payment packages.
//
// The default command takes a payment deep link, connects a reader (the
// saved one when it is found, otherwise one picked by the operator) and
// charges the amount. Without a deep link the kiosk stays at a small
// connected-idle prompt. See runREPL for its commands.
package cli
