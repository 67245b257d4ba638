package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/audit"
	"github.com/kilianp07/ttms/core/factory"
)

type written struct {
	key     string
	value   any
	headers map[string]string
}

type fakeWriter struct{ out []written }

func (f *fakeWriter) Write(_ context.Context, key string, v any, headers map[string]string) error {
	f.out = append(f.out, written{key, v, headers})
	return nil
}

func TestKafkaSinkKeysByEntity(t *testing.T) {
	fw := &fakeWriter{}
	s := &KafkaSink{w: fw}
	rec := audit.Record{ActorID: "u1", Action: audit.ActionCancelTrain, Module: audit.Module, EntityTable: "train_schedules", EntityID: 7}

	require.NoError(t, s.Record(context.Background(), rec))
	require.Len(t, fw.out, 1)
	assert.Equal(t, "train_schedules/7", fw.out[0].key)
	assert.Equal(t, rec, fw.out[0].value)
	assert.Equal(t, "cancel_train", fw.out[0].headers["action"])
}

func TestRegisterBuiltins(t *testing.T) {
	require.NoError(t, Register())
	require.NoError(t, Register())

	sinks, err := audit.NewSinks([]factory.ModuleConfig{{Type: "log"}, {Type: "nop"}})
	require.NoError(t, err)
	assert.Len(t, sinks, 2)

	_, err = audit.NewSinks([]factory.ModuleConfig{{Type: "kafka", Conf: map[string]any{"topic": "ttms.audit"}}})
	assert.Error(t, err, "brokers are required")

	assert.NoError(t, NewLogSink().Record(context.Background(), audit.Record{Action: audit.ActionDeleteSchedule}))
}

type closingWriter struct {
	fakeWriter
	closed bool
}

func (c *closingWriter) Close() error {
	c.closed = true
	return nil
}

func TestKafkaSinkCloseReleasesWriter(t *testing.T) {
	w := &closingWriter{}
	require.NoError(t, (&KafkaSink{w: w}).Close())
	assert.True(t, w.closed)
}
