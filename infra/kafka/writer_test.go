package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return c.err
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Topic: "t"}.Validate())
	assert.Error(t, Config{Brokers: []string{"b:9092"}}.Validate())
	assert.Error(t, Config{Brokers: []string{"b:9092"}, Topic: "t", Acks: "two"}.Validate())
	assert.NoError(t, Config{Brokers: []string{"b:9092"}, Topic: "t", Acks: "ALL"}.Validate())
	assert.Equal(t, kafka.RequireAll, Config{Acks: "all"}.requiredAcks())
	assert.Equal(t, kafka.RequireOne, Config{}.requiredAcks())
}

func TestWriteEncodesJSON(t *testing.T) {
	cw := &captureWriter{}
	w := newJSONWriter(cw, Config{Topic: "ttms.audit"})

	require.NoError(t, w.Write(context.Background(), "42", map[string]int{"id": 42}, map[string]string{"action": "cancel_train"}))
	require.Len(t, cw.msgs, 1)
	assert.Equal(t, "42", string(cw.msgs[0].Key))
	var got map[string]int
	require.NoError(t, json.Unmarshal(cw.msgs[0].Value, &got))
	assert.Equal(t, 42, got["id"])
	require.Len(t, cw.msgs[0].Headers, 1)
	assert.Equal(t, "action", cw.msgs[0].Headers[0].Key)

	require.NoError(t, w.Close())
	assert.True(t, cw.closed)
}

func TestWriteWrapsErrors(t *testing.T) {
	cw := &captureWriter{err: errors.New("leader not available")}
	w := newJSONWriter(cw, Config{Topic: "ttms.alerts"})
	err := w.Write(context.Background(), "k", "v", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ttms.alerts")

	assert.Error(t, w.Write(context.Background(), "k", make(chan int), nil))
}
