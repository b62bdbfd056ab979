package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
)

// Config holds runtime settings for the kiosk.
type Config struct {
	// BackendURL is the base URL of the payment backend HTTP API.
	BackendURL string
	// HealthAddr is the backend gRPC health endpoint. Empty means the HTTP
	// /healthz probe is used instead.
	HealthAddr string
	LocationID string

	DiscoveryMethod  terminal.DiscoveryMethod
	Simulated        bool
	DiscoveryTimeout time.Duration

	// CloseDelay is how long the result stays on screen before exiting.
	CloseDelay          time.Duration
	OnlineCheckInterval time.Duration
	HTTPTimeout         time.Duration

	DBPath   string
	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BackendURL = "http://127.0.0.1:8080"
	c.HealthAddr = ""
	c.LocationID = ""
	c.DiscoveryMethod = terminal.BluetoothScan
	c.Simulated = true
	c.DiscoveryTimeout = 15 * time.Second
	c.CloseDelay = time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.HTTPTimeout = 30 * time.Second
	c.DBPath = "kiosk.db"
	c.LogLevel = "info"
}

// Validate rejects values the kiosk cannot run with.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend url must be set")
	}
	if _, ok := terminal.ParseDiscoveryMethod(string(c.DiscoveryMethod)); !ok {
		return fmt.Errorf("unknown discovery method %q", c.DiscoveryMethod)
	}
	if c.DiscoveryTimeout <= 0 {
		return fmt.Errorf("discovery timeout must be positive, got %s", c.DiscoveryTimeout)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.CloseDelay < 0 {
		return fmt.Errorf("close delay must not be negative, got %s", c.CloseDelay)
	}
	return nil
}

// Load builds a Config from defaults, the environment, an optional config
// file and finally the flags the user actually set. Later sources take
// precedence over earlier ones.
func Load(f *Flags) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	envFile := ".env"
	if f != nil && f.EnvFile != "" {
		envFile = f.EnvFile
	}
	env, err := readEnv(envFile)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}

	path := env.get("KIOSK_CONFIG")
	if f != nil && f.ConfigFile != "" {
		path = f.ConfigFile
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if f != nil {
		f.apply(cfg)
	}

	if m, ok := terminal.ParseDiscoveryMethod(string(cfg.DiscoveryMethod)); ok {
		cfg.DiscoveryMethod = m
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
