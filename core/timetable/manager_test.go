package timetable_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/audit"
	"github.com/kilianp07/ttms/core/auth"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/timetable"
	"github.com/kilianp07/ttms/infra/logger"
	"github.com/kilianp07/ttms/infra/store/sqlite"
)

type recorded []audit.Record

func (r *recorded) Record(_ context.Context, rec audit.Record) error {
	*r = append(*r, rec)
	return nil
}

func newManager(t *testing.T) (*timetable.Manager, *recorded) {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:", logger.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	recs := &recorded{}
	m, err := timetable.NewManager(st, audit.NewRecorder(logger.NopLogger{}, recs), logger.NopLogger{})
	require.NoError(t, err)
	return m, recs
}

func winter() timetable.CreateRequest {
	return timetable.CreateRequest{
		Name:          "T1",
		Version:       "1.0",
		EffectiveDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreate(t *testing.T) {
	m, recs := newManager(t)
	ctx := context.Background()
	actor := auth.NewActor("planner", auth.RoleScheduler)

	id, err := m.Create(ctx, actor, winter())
	require.NoError(t, err)
	require.NotZero(t, id)

	tt, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "T1", tt.Name)
	assert.Equal(t, "planner", tt.CreatedBy)
	assert.Equal(t, model.TimetableActive, tt.Status)
	assert.True(t, tt.ExpiryDate.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))

	require.Len(t, *recs, 1)
	rec := (*recs)[0]
	assert.Equal(t, audit.ActionCreateTimetable, rec.Action)
	assert.Equal(t, id, rec.EntityID)
	assert.Nil(t, rec.OldValue)
	assert.Equal(t, winter(), rec.NewValue)

	all, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateValidation(t *testing.T) {
	m, recs := newManager(t)
	ctx := context.Background()
	actor := auth.NewActor("planner", auth.RoleAdministrator)

	for name, mutate := range map[string]func(*timetable.CreateRequest){
		"name":     func(r *timetable.CreateRequest) { r.Name = " " },
		"version":  func(r *timetable.CreateRequest) { r.Version = "" },
		"expiry":   func(r *timetable.CreateRequest) { r.ExpiryDate = time.Time{} },
		"reversed": func(r *timetable.CreateRequest) { r.ExpiryDate = r.EffectiveDate },
	} {
		t.Run(name, func(t *testing.T) {
			req := winter()
			mutate(&req)
			_, err := m.Create(ctx, actor, req)
			assert.True(t, model.IsValidationError(err), "got %v", err)
		})
	}
	assert.Empty(t, *recs)
}

func TestCreateRequiresPermission(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Create(context.Background(), auth.NewActor("op", auth.RoleOperator), winter())
	assert.True(t, model.IsPermissionDeniedError(err))
}

func TestGetMissing(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Get(context.Background(), 42)
	assert.True(t, model.IsNotFoundError(err))
}
