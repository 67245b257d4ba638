// Package metrics defines the sinks that observe schedule lifecycle events,
// position reports and alerts. Sinks such as the Prometheus and InfluxDB
// implementations in infra/metrics are created from configuration through
// the plugin registry and combined with NewMultiSink when more than one is
// configured.
package metrics
