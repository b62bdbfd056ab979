package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/filex"
)

// environment resolves KIOSK_* variables. The process environment wins over
// values read from the .env file.
type environment struct {
	file map[string]string
}

// readEnv loads path if it exists. A missing .env is not an error.
func readEnv(path string) (environment, error) {
	if !filex.Exists(path) {
		return environment{}, nil
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		return environment{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return environment{file: vals}, nil
}

func (e environment) get(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return e.file[key]
}

func applyEnv(cfg *Config, env environment) error {
	str := func(key string, dst *string) {
		if v := env.get(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v := env.get(key)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("KIOSK_BACKEND_URL", &cfg.BackendURL)
	str("KIOSK_HEALTH_ADDR", &cfg.HealthAddr)
	str("KIOSK_LOCATION_ID", &cfg.LocationID)
	str("KIOSK_DB_PATH", &cfg.DBPath)
	str("KIOSK_LOG_LEVEL", &cfg.LogLevel)

	if v := env.get("KIOSK_DISCOVERY_METHOD"); v != "" {
		cfg.DiscoveryMethod = terminal.DiscoveryMethod(v)
	}
	if v := env.get("KIOSK_SIMULATED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid KIOSK_SIMULATED: %w", err)
		}
		cfg.Simulated = b
	}

	for key, dst := range map[string]*time.Duration{
		"KIOSK_DISCOVERY_TIMEOUT":     &cfg.DiscoveryTimeout,
		"KIOSK_CLOSE_DELAY":           &cfg.CloseDelay,
		"KIOSK_ONLINE_CHECK_INTERVAL": &cfg.OnlineCheckInterval,
		"KIOSK_HTTP_TIMEOUT":          &cfg.HTTPTimeout,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	return nil
}
