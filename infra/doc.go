// Package infra holds the adapters behind the core contracts: SQL stores,
// the MQTT telemetry ingestor, Kafka and MQTT sinks, metrics exporters and
// Sentry. Core packages never import it.
package infra
