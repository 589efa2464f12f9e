// Package config loads and validates the service configuration from YAML.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-signals/internal/bridge"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// Config is the top-level service configuration.
type Config struct {
	// Symbol is the trading pair to track.
	Symbol string `json:"symbol" yaml:"symbol" jsonschema:"title=Symbol,description=Trading pair symbol,default=BTCUSDT" validate:"required"`
	// Exchange name recorded with collected data.
	Exchange string `json:"exchange" yaml:"exchange" jsonschema:"title=Exchange,default=binance" validate:"required"`
	// UpdateIntervalSeconds between fusion cycles.
	UpdateIntervalSeconds int `json:"update_interval_seconds" yaml:"update_interval_seconds" jsonschema:"title=Update Interval,description=Seconds between fusion cycles,default=5" validate:"gte=1"`
	// StorePath is the DuckDB database file; empty uses an in-memory store.
	StorePath string `json:"store_path" yaml:"store_path" jsonschema:"title=Store Path,description=DuckDB database file path"`
	// ListenAddr for the status HTTP server.
	ListenAddr string `json:"listen_addr" yaml:"listen_addr" jsonschema:"title=Listen Address,default=:8080" validate:"required"`

	// NewsAPIKey enables the news collector when set.
	NewsAPIKey string `json:"news_api_key" yaml:"news_api_key" jsonschema:"title=News API Key"`
	// ExternalMarket enables the external reference price lookup.
	ExternalMarket string `json:"external_market" yaml:"external_market" jsonschema:"title=External Market"`

	// ReconnectDelaySeconds between collector reconnection attempts.
	ReconnectDelaySeconds int `json:"reconnect_delay_seconds" yaml:"reconnect_delay_seconds" jsonschema:"title=Reconnect Delay,default=5" validate:"gte=1"`
	// MaxReconnectAttempts before a collector gives up; 0 is unlimited.
	MaxReconnectAttempts int `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts" jsonschema:"title=Max Reconnect Attempts,default=0" validate:"gte=0"`

	// Filter configures the microstructure decision filter.
	Filter bridge.FilterConfig `json:"filter" yaml:"filter" jsonschema:"title=Decision Filter"`
}

// Default returns the configuration the service runs with when no file is
// given.
func Default() Config {
	return Config{
		Symbol:                "BTCUSDT",
		Exchange:              "binance",
		UpdateIntervalSeconds: 5,
		StorePath:             "signals.duckdb",
		ListenAddr:            ":8080",
		ReconnectDelaySeconds: 5,
		MaxReconnectAttempts:  0,
		Filter:                bridge.DefaultFilterConfig(),
	}
}

// Load reads a YAML config file, filling unset fields from defaults, and
// validates the result.
func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the configuration against its constraints.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid service config", err)
	}

	return nil
}

// UpdateInterval returns the fusion cycle interval as a duration.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

// ReconnectDelay returns the collector reconnect delay as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

// JSONSchema returns the JSON schema describing the configuration file.
func JSONSchema() (string, error) {
	reflector := new(jsonschema.Reflector)
	reflector.DoNotReference = true
	schema := reflector.Reflect(&Config{})

	data, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
