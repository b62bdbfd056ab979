// Package config loads runtime configuration for the kiosk.
//
// Sources, lowest precedence first:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. KIOSK_* variables from the process environment, falling back to a
//     .env file (--env-file).
//  3. A JSON or YAML file chosen by --config/-c or KIOSK_CONFIG.
//  4. Command-line flags the user set explicitly.
//
// Durations in files accept "1s"-style strings or integer nanoseconds:
//
//	backend_url: http://127.0.0.1:8080
//	location_id: tml_123
//	discovery_method: usb
//	close_delay: 1s
package config
