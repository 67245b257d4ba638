package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/auth"
	"github.com/kilianp07/ttms/core/factory"
)

func TestCancellationIntent(t *testing.T) {
	dep := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	in := CancellationIntent("IC 101", dep, "signal failure")
	assert.Equal(t, "Train Cancellation", in.Title)
	assert.Equal(t, "Train IC 101 scheduled for 2025-02-01 08:00 has been cancelled. Reason: signal failure", in.Message)
	assert.Equal(t, TypeWarning, in.Type)
	assert.Equal(t, PriorityHigh, in.Priority)
	assert.ElementsMatch(t, []auth.Role{auth.RoleOperator, auth.RoleScheduler, auth.RoleAdministrator}, in.Recipients.Roles)
	assert.True(t, in.Recipients.ActiveOnly)
	assert.NotEmpty(t, in.ID)
}

func TestDelayIntent(t *testing.T) {
	in := DelayIntent("RE 7", 45)
	assert.Equal(t, "Train Delay Alert", in.Title)
	assert.Equal(t, "Train RE 7 is delayed by 45 minutes", in.Message)
	assert.Equal(t, PriorityNormal, in.Priority)
}

type countLog struct{ errs int }

func (*countLog) Debugf(string, ...any)         {}
func (*countLog) Debugw(string, map[string]any) {}
func (*countLog) Infof(string, ...any)          {}
func (*countLog) Warnf(string, ...any)          {}
func (l *countLog) Errorf(string, ...any)       { l.errs++ }

func TestDispatcherSwallowsErrors(t *testing.T) {
	var got []Intent
	ok := EmitterFunc(func(_ context.Context, in Intent) error {
		got = append(got, in)
		return nil
	})
	bad := EmitterFunc(func(context.Context, Intent) error { return errors.New("broker down") })
	boom := EmitterFunc(func(context.Context, Intent) error { panic("nil writer") })
	log := &countLog{}

	d := NewDispatcher(log, bad, boom, ok)
	d.Dispatch(context.Background(), DelayIntent("X", 31))

	require.Len(t, got, 1)
	assert.Equal(t, 2, log.errs)

	var nilD *Dispatcher
	assert.NotPanics(t, func() { nilD.Dispatch(context.Background(), Intent{}) })
}

func TestNewEmitters(t *testing.T) {
	require.NoError(t, RegisterEmitter("test-emitter", func(map[string]any) (Emitter, error) {
		return EmitterFunc(func(context.Context, Intent) error { return nil }), nil
	}))
	es, err := NewEmitters([]factory.ModuleConfig{{Type: "test-emitter"}, {Type: "test-emitter"}})
	require.NoError(t, err)
	assert.Len(t, es, 2)
}
