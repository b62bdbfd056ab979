package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/timex"
)

// FileConfig is the on-disk form of the config. Pointer fields distinguish
// "absent" from the zero value so a file only overrides what it names.
type FileConfig struct {
	BackendURL          *string         `json:"backend_url" yaml:"backend_url"`
	HealthAddr          *string         `json:"health_addr" yaml:"health_addr"`
	LocationID          *string         `json:"location_id" yaml:"location_id"`
	DiscoveryMethod     *string         `json:"discovery_method" yaml:"discovery_method"`
	Simulated           *bool           `json:"simulated" yaml:"simulated"`
	DiscoveryTimeout    *timex.Duration `json:"discovery_timeout" yaml:"discovery_timeout"`
	CloseDelay          *timex.Duration `json:"close_delay" yaml:"close_delay"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	HTTPTimeout         *timex.Duration `json:"http_timeout" yaml:"http_timeout"`
	DBPath              *string         `json:"db_path" yaml:"db_path"`
	LogLevel            *string         `json:"log_level" yaml:"log_level"`
}

// loadFile overlays cfg with the file at path. ".yaml" and ".yml" files are
// read as YAML, everything else as JSON.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc FileConfig) apply(cfg *Config) {
	setString(&cfg.BackendURL, fc.BackendURL)
	setString(&cfg.HealthAddr, fc.HealthAddr)
	setString(&cfg.LocationID, fc.LocationID)
	setString(&cfg.DBPath, fc.DBPath)
	setString(&cfg.LogLevel, fc.LogLevel)
	if fc.DiscoveryMethod != nil {
		cfg.DiscoveryMethod = terminal.DiscoveryMethod(*fc.DiscoveryMethod)
	}
	if fc.Simulated != nil {
		cfg.Simulated = *fc.Simulated
	}
	if fc.DiscoveryTimeout != nil {
		cfg.DiscoveryTimeout = fc.DiscoveryTimeout.Duration
	}
	if fc.CloseDelay != nil {
		cfg.CloseDelay = fc.CloseDelay.Duration
	}
	if fc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.HTTPTimeout != nil {
		cfg.HTTPTimeout = fc.HTTPTimeout.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
