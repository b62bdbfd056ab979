package config

import (
	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
)

// Flags are the command-line overrides. Only flags the user set are applied,
// so an untouched flag never masks a value from the environment or a file.
type Flags struct {
	ConfigFile string
	EnvFile    string

	fs   *pflag.FlagSet
	vals Config
}

// Bind registers the kiosk flags on fs. Help text shows the built-in
// defaults.
func (f *Flags) Bind(fs *pflag.FlagSet) {
	f.fs = fs

	var d Config
	d.LoadDefaults()

	fs.StringVarP(&f.ConfigFile, "config", "c", "", "config file (JSON or YAML)")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "dotenv file with KIOSK_* variables")
	fs.StringVarP(&f.vals.BackendURL, "backend", "a", d.BackendURL, "backend base URL")
	fs.StringVar(&f.vals.HealthAddr, "health-addr", d.HealthAddr, "backend gRPC health address")
	fs.StringVarP(&f.vals.LocationID, "location", "l", d.LocationID, "terminal location id")
	fs.StringVar((*string)(&f.vals.DiscoveryMethod), "discovery", string(d.DiscoveryMethod), "discovery method: bluetooth_scan or usb")
	fs.BoolVar(&f.vals.Simulated, "simulated", d.Simulated, "use the simulated reader")
	fs.DurationVar(&f.vals.DiscoveryTimeout, "discovery-timeout", d.DiscoveryTimeout, "give up discovery after this long")
	fs.DurationVar(&f.vals.CloseDelay, "close-delay", d.CloseDelay, "how long the result stays visible before exit")
	fs.DurationVarP(&f.vals.OnlineCheckInterval, "online-check", "i", d.OnlineCheckInterval, "backend reachability probe interval")
	fs.DurationVar(&f.vals.HTTPTimeout, "http-timeout", d.HTTPTimeout, "backend request timeout")
	fs.StringVar(&f.vals.DBPath, "db", d.DBPath, "path to the local preferences database")
	fs.StringVar(&f.vals.LogLevel, "log-level", d.LogLevel, "debug, info, warn or error")
}

func (f *Flags) apply(cfg *Config) {
	if f.fs == nil {
		return
	}
	// Persistent flags are parsed by the subcommand's flag set; Changed on
	// the shared *Flag is the only reliable marker.
	f.fs.VisitAll(func(fl *pflag.Flag) {
		if !fl.Changed {
			return
		}
		switch fl.Name {
		case "backend":
			cfg.BackendURL = f.vals.BackendURL
		case "health-addr":
			cfg.HealthAddr = f.vals.HealthAddr
		case "location":
			cfg.LocationID = f.vals.LocationID
		case "discovery":
			cfg.DiscoveryMethod = terminal.DiscoveryMethod(f.vals.DiscoveryMethod)
		case "simulated":
			cfg.Simulated = f.vals.Simulated
		case "discovery-timeout":
			cfg.DiscoveryTimeout = f.vals.DiscoveryTimeout
		case "close-delay":
			cfg.CloseDelay = f.vals.CloseDelay
		case "online-check":
			cfg.OnlineCheckInterval = f.vals.OnlineCheckInterval
		case "http-timeout":
			cfg.HTTPTimeout = f.vals.HTTPTimeout
		case "db":
			cfg.DBPath = f.vals.DBPath
		case "log-level":
			cfg.LogLevel = f.vals.LogLevel
		}
	})
}
