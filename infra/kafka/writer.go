// Package kafka publishes JSON records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config selects the brokers and topic of a writer.
type Config struct {
	Brokers []string      `json:"brokers"`
	Topic   string        `json:"topic"`
	Timeout time.Duration `json:"timeout"`
	// Acks is "one" (default), "all" or "none".
	Acks string `json:"acks"`
}

// Validate checks that brokers and topic are set.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: brokers required")
	}
	if c.Topic == "" {
		return errors.New("kafka: topic required")
	}
	switch strings.ToLower(c.Acks) {
	case "", "one", "all", "none":
		return nil
	default:
		return fmt.Errorf("kafka: unknown acks %q", c.Acks)
	}
}

func (c Config) requiredAcks() kafka.RequiredAcks {
	switch strings.ToLower(c.Acks) {
	case "all":
		return kafka.RequireAll
	case "none":
		return kafka.RequireNone
	default:
		return kafka.RequireOne
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// JSONWriter encodes values as JSON messages keyed by the caller.
type JSONWriter struct {
	w       messageWriter
	topic   string
	timeout time.Duration
}

// NewJSONWriter creates a synchronous writer for cfg.
func NewJSONWriter(cfg Config) (*JSONWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: cfg.requiredAcks(),
		Async:        false,
	}
	return newJSONWriter(w, cfg), nil
}

func newJSONWriter(w messageWriter, cfg Config) *JSONWriter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &JSONWriter{w: w, topic: cfg.Topic, timeout: timeout}
}

// Write publishes v under key. Messages with the same key land on the same
// partition.
func (j *JSONWriter) Write(ctx context.Context, key string, v any, headers map[string]string) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kafka %s: encode: %w", j.topic, err)
	}
	msg := kafka.Message{Key: []byte(key), Value: value, Time: time.Now()}
	for k, h := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(h)})
	}
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	if err := j.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka %s: %w", j.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (j *JSONWriter) Close() error { return j.w.Close() }
