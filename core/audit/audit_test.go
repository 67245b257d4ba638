package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/factory"
)

type memSink struct{ recs []Record }

func (m *memSink) Record(_ context.Context, r Record) error {
	m.recs = append(m.recs, r)
	return nil
}

type failSink struct{}

func (failSink) Record(context.Context, Record) error { return errors.New("down") }

type panicSink struct{}

func (panicSink) Record(context.Context, Record) error { panic("boom") }

type nopLog struct{ errors int }

func (*nopLog) Debugf(string, ...any)         {}
func (*nopLog) Debugw(string, map[string]any) {}
func (*nopLog) Infof(string, ...any)          {}
func (*nopLog) Warnf(string, ...any)          {}
func (l *nopLog) Errorf(string, ...any)       { l.errors++ }

func TestRecorderStampsAndSwallowsFailures(t *testing.T) {
	mem := &memSink{}
	log := &nopLog{}
	r := NewRecorder(log, failSink{}, panicSink{}, mem)
	r.now = func() time.Time { return time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC) }

	r.Emit(context.Background(), Record{ActorID: "u1", Action: ActionCreateSchedule, EntityTable: "train_schedules", EntityID: 4})

	require.Len(t, mem.recs, 1)
	rec := mem.recs[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, Module, rec.Module)
	assert.Equal(t, 2025, rec.Timestamp.Year())
	assert.Equal(t, 2, log.errors)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() { r.Emit(context.Background(), Record{}) })
}

func TestNewSinks(t *testing.T) {
	require.NoError(t, RegisterSink("mem-test", func(map[string]any) (Sink, error) { return &memSink{}, nil }))
	sinks, err := NewSinks([]factory.ModuleConfig{{Type: "mem-test"}})
	require.NoError(t, err)
	assert.Len(t, sinks, 1)

	_, err = NewSinks([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
}
