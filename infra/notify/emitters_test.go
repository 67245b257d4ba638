package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/factory"
	"github.com/kilianp07/ttms/core/notify"
	infmqtt "github.com/kilianp07/ttms/infra/mqtt"
)

type published struct {
	kind, topic string
	payload     []byte
}

type fakePublisher struct{ out []published }

func (f *fakePublisher) Publish(_ context.Context, kind, topic string, payload []byte) error {
	f.out = append(f.out, published{kind, topic, payload})
	return nil
}

type fakeWriter struct {
	keys    []string
	headers []map[string]string
}

func (f *fakeWriter) Write(_ context.Context, key string, _ any, headers map[string]string) error {
	f.keys = append(f.keys, key)
	f.headers = append(f.headers, headers)
	return nil
}

func TestMQTTEmitterTopicByPriority(t *testing.T) {
	pub := &fakePublisher{}
	e := newMQTTEmitter(pub, "rail/alerts/")
	in := notify.CancellationIntent("IC101", time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC), "Strike")

	require.NoError(t, e.Notify(context.Background(), in))
	require.Len(t, pub.out, 1)
	assert.Equal(t, "rail/alerts/high", pub.out[0].topic)
	assert.Equal(t, "alert", pub.out[0].kind)

	var got notify.Intent
	require.NoError(t, json.Unmarshal(pub.out[0].payload, &got))
	assert.Equal(t, in.Message, got.Message)
	assert.Equal(t, DefaultTopic, newMQTTEmitter(pub, "").topic)
}

func TestKafkaEmitterKeysByIntent(t *testing.T) {
	fw := &fakeWriter{}
	e := &KafkaEmitter{w: fw}
	in := notify.DelayIntent("RE303", 45)

	require.NoError(t, e.Notify(context.Background(), in))
	assert.Equal(t, []string{in.ID}, fw.keys)
	assert.Equal(t, "normal", fw.headers[0]["priority"])
}

func TestRegisterBuiltins(t *testing.T) {
	require.NoError(t, Register(infmqtt.Config{}))

	emitters, err := notify.NewEmitters([]factory.ModuleConfig{{Type: "log"}})
	require.NoError(t, err)
	require.Len(t, emitters, 1)
	assert.NoError(t, emitters[0].Notify(context.Background(), notify.DelayIntent("IC1", 31)))

	_, err = notify.NewEmitters([]factory.ModuleConfig{{Type: "mqtt", Conf: map[string]any{"topic": "x"}}})
	assert.ErrorContains(t, err, "no broker")
}

type disconnectingPublisher struct {
	fakePublisher
	disconnected bool
}

func (d *disconnectingPublisher) Disconnect() { d.disconnected = true }

type closingWriter struct {
	fakeWriter
	closed bool
}

func (c *closingWriter) Close() error {
	c.closed = true
	return nil
}

func TestEmittersReleaseConnections(t *testing.T) {
	pub := &disconnectingPublisher{}
	require.NoError(t, newMQTTEmitter(pub, "").Close())
	assert.True(t, pub.disconnected)

	w := &closingWriter{}
	require.NoError(t, (&KafkaEmitter{w: w}).Close())
	assert.True(t, w.closed)

	require.NoError(t, (&KafkaEmitter{w: &fakeWriter{}}).Close())
}
