package config

import (
	"fmt"
	"net"

	"github.com/kilianp07/ttms/core/factory"
)

// StoreConfig selects the schedule store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `json:"driver"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string `json:"dsn"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" && c.Driver == "sqlite" {
		c.DSN = "ttms.db"
	}
}

func (c StoreConfig) Validate() error {
	switch c.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("store.dsn is required for %s", c.Driver)
	}
	return nil
}

// MetricsConfig enables the builtin metrics sinks. Extra sinks are listed
// under Sinks.
type MetricsConfig struct {
	PrometheusEnabled bool                   `json:"prometheus_enabled"`
	PrometheusPort    int                    `json:"prometheus_port"`
	InfluxEnabled     bool                   `json:"influx_enabled"`
	InfluxURL         string                 `json:"influx_url"`
	InfluxToken       string                 `json:"influx_token"`
	InfluxOrg         string                 `json:"influx_org"`
	InfluxBucket      string                 `json:"influx_bucket"`
	Sinks             []factory.ModuleConfig `json:"sinks"`
}

func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusPort == 0 {
		c.PrometheusPort = 2112
	}
	if c.InfluxBucket == "" {
		c.InfluxBucket = "ttms"
	}
}

func (c MetricsConfig) Validate() error {
	if c.PrometheusPort < 1 || c.PrometheusPort > 65535 {
		return fmt.Errorf("metrics.prometheus_port %d out of range", c.PrometheusPort)
	}
	if c.InfluxEnabled && (c.InfluxURL == "" || c.InfluxOrg == "") {
		return fmt.Errorf("metrics.influx_enabled requires influx_url and influx_org")
	}
	return nil
}

// PrometheusAddr is the listen address of the /metrics endpoint.
func (c MetricsConfig) PrometheusAddr() string {
	return fmt.Sprintf(":%d", c.PrometheusPort)
}

// ModuleConfigs lists the sinks to build, builtins first.
func (c MetricsConfig) ModuleConfigs() []factory.ModuleConfig {
	var out []factory.ModuleConfig
	if c.PrometheusEnabled {
		out = append(out, factory.ModuleConfig{Type: "prometheus"})
	}
	if c.InfluxEnabled {
		out = append(out, factory.ModuleConfig{Type: "influx", Conf: map[string]any{
			"url":    c.InfluxURL,
			"token":  c.InfluxToken,
			"org":    c.InfluxOrg,
			"bucket": c.InfluxBucket,
		}})
	}
	return append(out, c.Sinks...)
}

// SinksConfig lists pluggable sinks by type.
type SinksConfig struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

func (c SinksConfig) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("sinks[%d]: type is required", i)
		}
	}
	return nil
}

// APIConfig configures the read-only HTTP API. An empty token disables
// authentication.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	Token   string `json:"token"`
}

func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

func (c APIConfig) Validate() error {
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("api.address: %w", err)
	}
	return nil
}
