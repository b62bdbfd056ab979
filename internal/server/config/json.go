package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/paykiosk/internal/flagx"
	"github.com/dmitrijs2005/paykiosk/internal/timex"
)

// JsonConfig is the on-disk shape of the backend configuration. Durations
// use timex.Duration so both "10m" and integer nanoseconds are accepted.
// Fields left out of the file keep their current value.
type JsonConfig struct {
	EndpointAddrHTTP                *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC                *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                     *string         `json:"database_dsn"`
	SecretKey                       *string         `json:"secret_key"`
	ConnectionTokenValidityDuration *timex.Duration `json:"connection_token_validity_duration"`
	S3RootUser                      *string         `json:"s3_root_user"`
	S3RootPassword                  *string         `json:"s3_root_password"`
	S3Bucket                        *string         `json:"s3_bucket"`
	S3Region                        *string         `json:"s3_region"`
	S3BaseEndpoint                  *string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c or -config into config. Without the
// flag nothing happens. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.ConnectionTokenValidityDuration != nil {
		config.ConnectionTokenValidityDuration = c.ConnectionTokenValidityDuration.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
