package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/ttms/core/monitoring"
	"github.com/kilianp07/ttms/infra/logger"
)

// Publisher publishes payloads with bounded retries and exponential backoff.
type Publisher struct {
	cli        pahoClient
	cfg        Config
	log        logger.Logger
	maxRetries int
	backoff    time.Duration
}

// NewPublisher connects to the broker described by cfg.
func NewPublisher(cfg Config, log logger.Logger) (*Publisher, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("mqtt_publisher")
	}
	p := &Publisher{
		cfg:        cfg,
		log:        log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected to %s", cfg.Broker) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) { log.Warnf("reconnecting to MQTT broker") }

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// Publish sends payload on topic using the QoS configured for kind. Failed
// attempts are retried until the retry budget or ctx is exhausted.
func (p *Publisher) Publish(ctx context.Context, kind, topic string, payload []byte) error {
	qos := p.cfg.QoSFor(kind)
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return p.fail(topic, ctx.Err())
			case <-time.After(p.backoff * time.Duration(1<<(attempt-1))):
			}
		}
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			p.log.Debugf("published %s message to %s", kind, topic)
			return nil
		}
		p.log.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, err)
	}
	return p.fail(topic, err)
}

func (p *Publisher) fail(topic string, err error) error {
	monitoring.CaptureException(err, monitoring.Component("mqtt").With("topic", topic))
	return fmt.Errorf("publish to %s: %w", topic, err)
}

// Disconnect gracefully closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
