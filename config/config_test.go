package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `store:
  driver: postgres
  dsn: "postgres://ttms@localhost/ttms"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "ttms"
  qos:
    alert: 1
telemetry:
  enabled: true
  topic: "rail/+/position"
alerts:
  delay_threshold_minutes: 20
metrics:
  prometheus_enabled: true
  influx_enabled: true
  influx_url: "http://localhost:8086"
  influx_org: "rail"
audit:
  sinks:
    - type: log
notifications:
  sinks:
    - type: kafka
      conf:
        brokers: ["localhost:9092"]
        topic: ttms.alerts
api:
  enabled: true
  token: secret
sentry:
  dsn: ""
  traces_sample_rate: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"store.driver", cfg.Store.Driver, "postgres"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.qos", cfg.MQTT.QoSFor("alert"), byte(1)},
		{"telemetry.topic", cfg.Telemetry.Topic, "rail/+/position"},
		{"telemetry.actor_id", cfg.Telemetry.ActorID, "telemetry"},
		{"alerts", cfg.Alerts.DelayThresholdMinutes, 20},
		{"metrics.port", cfg.Metrics.PrometheusPort, 2112},
		{"metrics.bucket", cfg.Metrics.InfluxBucket, "ttms"},
		{"audit", cfg.Audit.Sinks[0].Type, "log"},
		{"notifications", cfg.Notifications.Sinks[0].Conf["topic"], "ttms.alerts"},
		{"api.address", cfg.API.Address, ":8080"},
		{"api.token", cfg.API.Token, "secret"},
		{"sentry", cfg.Sentry.TracesSampleRate, 0.5},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}

	mods := cfg.Metrics.ModuleConfigs()
	require.Len(t, mods, 2)
	assert.Equal(t, "prometheus", mods[0].Type)
	assert.Equal(t, "influx", mods[1].Type)
	assert.Equal(t, "rail", mods[1].Conf["org"])
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{}`))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "ttms.db", cfg.Store.DSN)
	assert.Equal(t, 30, cfg.Alerts.DelayThresholdMinutes)
	assert.Empty(t, cfg.Metrics.ModuleConfigs())
	assert.Equal(t, *Default(), *cfg)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_STORE__DSN", "/var/lib/ttms/ttms.db")
	t.Setenv("K_ALERTS__DELAY_THRESHOLD_MINUTES", "45")
	t.Setenv("K_METRICS__PROMETHEUS_PORT", "9100")
	t.Setenv("K_TELEMETRY__ENABLED", "true")
	t.Setenv("K_MQTT__BROKER", "tcp://broker:1883")
	cfg, err := Load(writeConfig(t, "config.yaml", "store:\n  dsn: local.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ttms/ttms.db", cfg.Store.DSN)
	assert.Equal(t, 45, cfg.Alerts.DelayThresholdMinutes)
	assert.Equal(t, 9100, cfg.Metrics.PrometheusPort)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"driver":    "store:\n  driver: mysql\n",
		"postgres":  "store:\n  driver: postgres\n",
		"telemetry": "telemetry:\n  enabled: true\n",
		"influx":    "metrics:\n  influx_enabled: true\n",
		"port":      "metrics:\n  prometheus_port: 70000\n",
		"api":       "api:\n  address: nowhere\n",
		"sentry":    "sentry:\n  traces_sample_rate: 3\n",
		"sink":      "audit:\n  sinks:\n    - conf: {}\n",
	}
	for name, data := range cases {
		_, err := Load(writeConfig(t, "config.yaml", data))
		assert.Error(t, err, name)
	}

	_, err := Load(writeConfig(t, "config.toml", ""))
	assert.ErrorContains(t, err, "unsupported config format")
}
