// Package notify provides the delivery channels for notification intents.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kilianp07/ttms/core/factory"
	"github.com/kilianp07/ttms/core/notify"
	infkafka "github.com/kilianp07/ttms/infra/kafka"
	"github.com/kilianp07/ttms/infra/logger"
	infmqtt "github.com/kilianp07/ttms/infra/mqtt"
)

// DefaultTopic receives alerts when no topic is configured.
const DefaultTopic = "ttms/alerts"

type publisher interface {
	Publish(ctx context.Context, kind, topic string, payload []byte) error
}

// MQTTEmitter publishes intents as JSON under topic/<priority>.
type MQTTEmitter struct {
	pub   publisher
	topic string
}

// MQTTConfig selects the topic and, optionally, a dedicated connection.
type MQTTConfig struct {
	Topic string         `json:"topic"`
	MQTT  infmqtt.Config `json:"mqtt"`
}

// NewMQTTEmitter connects a publisher for cfg.
func NewMQTTEmitter(cfg MQTTConfig) (*MQTTEmitter, error) {
	pub, err := infmqtt.NewPublisher(cfg.MQTT.WithClientSuffix("alerts"), logger.New("notify"))
	if err != nil {
		return nil, err
	}
	return newMQTTEmitter(pub, cfg.Topic), nil
}

func newMQTTEmitter(pub publisher, topic string) *MQTTEmitter {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTTEmitter{pub: pub, topic: strings.TrimSuffix(topic, "/")}
}

// Close disconnects the emitter's MQTT connection.
func (e *MQTTEmitter) Close() error {
	if d, ok := e.pub.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	return nil
}

func (e *MQTTEmitter) Notify(ctx context.Context, in notify.Intent) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return e.pub.Publish(ctx, "alert", e.topic+"/"+string(in.Priority), payload)
}

type recordWriter interface {
	Write(ctx context.Context, key string, v any, headers map[string]string) error
}

// KafkaEmitter publishes intents to a Kafka topic keyed by intent id.
type KafkaEmitter struct {
	w recordWriter
}

// NewKafkaEmitter connects an emitter to the configured topic.
func NewKafkaEmitter(cfg infkafka.Config) (*KafkaEmitter, error) {
	w, err := infkafka.NewJSONWriter(cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaEmitter{w: w}, nil
}

// Close flushes and closes the Kafka writer.
func (e *KafkaEmitter) Close() error {
	if c, ok := e.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (e *KafkaEmitter) Notify(ctx context.Context, in notify.Intent) error {
	return e.w.Write(ctx, in.ID, in, map[string]string{
		"type":     string(in.Type),
		"priority": string(in.Priority),
	})
}

// LogEmitter writes intents to the log at warning level.
type LogEmitter struct {
	log logger.Logger
}

// NewLogEmitter returns a LogEmitter tagged with the notify component.
func NewLogEmitter() *LogEmitter { return &LogEmitter{log: logger.New("notify")} }

func (e *LogEmitter) Notify(_ context.Context, in notify.Intent) error {
	e.log.Warnf("[%s] %s: %s", in.Priority, in.Title, in.Message)
	return nil
}

var (
	registerOnce sync.Once
	registerErr  error
)

// Register adds the builtin emitters. An mqtt emitter without its own broker
// reuses conn. Repeated calls are no-ops.
func Register(conn infmqtt.Config) error {
	registerOnce.Do(func() { registerErr = register(conn) })
	return registerErr
}

func register(conn infmqtt.Config) error {
	if err := notify.RegisterEmitter("log", func(map[string]any) (notify.Emitter, error) {
		return NewLogEmitter(), nil
	}); err != nil {
		return err
	}
	if err := notify.RegisterEmitter("kafka", func(conf map[string]any) (notify.Emitter, error) {
		var c infkafka.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewKafkaEmitter(c)
	}); err != nil {
		return err
	}
	return notify.RegisterEmitter("mqtt", func(conf map[string]any) (notify.Emitter, error) {
		var c MQTTConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.MQTT.Broker == "" {
			c.MQTT = conn
		}
		if c.MQTT.Broker == "" {
			return nil, fmt.Errorf("notify mqtt: no broker configured")
		}
		return NewMQTTEmitter(c)
	})
}
