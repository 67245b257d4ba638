// Package config loads the service configuration from a YAML or JSON file
// with K_ prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/ttms/core/position"
	"github.com/kilianp07/ttms/infra/monitoring"
	"github.com/kilianp07/ttms/infra/mqtt"
	"github.com/kilianp07/ttms/infra/telemetry"
)

type Config struct {
	Store         StoreConfig       `json:"store"`
	MQTT          mqtt.Config       `json:"mqtt"`
	Telemetry     telemetry.Config  `json:"telemetry"`
	Alerts        position.Config   `json:"alerts"`
	Metrics       MetricsConfig     `json:"metrics"`
	Audit         SinksConfig       `json:"audit"`
	Notifications SinksConfig       `json:"notifications"`
	API           APIConfig         `json:"api"`
	Sentry        monitoring.Config `json:"sentry"`
}

// Load reads path, applies environment overrides such as K_STORE__DSN, fills
// defaults and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// K_STORE__DSN overrides store.dsn: "__" separates sections.
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, used when no
// file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults fills zero values in every section.
func (c *Config) SetDefaults() {
	c.Store.SetDefaults()
	c.Telemetry.SetDefaults()
	c.Alerts.SetDefaults()
	c.Metrics.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section and their cross dependencies.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	if c.Telemetry.Enabled && c.MQTT.Broker == "" {
		return errors.New("telemetry.enabled requires mqtt.broker")
	}
	for _, s := range []SinksConfig{c.Audit, c.Notifications} {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}
