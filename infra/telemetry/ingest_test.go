package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/auth"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/position"
)

type fakeReporter struct {
	reports []position.Report
	actors  []auth.Actor
	err     error
	panic   bool
}

func (f *fakeReporter) ReportPosition(_ context.Context, a auth.Actor, r position.Report) (*model.TrainPosition, error) {
	if f.panic {
		panic("boom")
	}
	f.actors = append(f.actors, a)
	f.reports = append(f.reports, r)
	if f.err != nil {
		return nil, f.err
	}
	return &model.TrainPosition{TrainID: r.TrainID, ScheduleID: r.ScheduleID}, nil
}

func TestTrainIDFromTopic(t *testing.T) {
	cases := []struct {
		pattern, topic string
		want           int64
	}{
		{DefaultTopic, "ttms/trains/42/position", 42},
		{"positions/#", "positions/7", 7},
		{"positions/+", "positions/abc", 0},
		{"a/b/c/+", "a/b", 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, trainIDFromTopic(c.pattern, c.topic), c.topic)
	}
}

func TestHandleStoresReport(t *testing.T) {
	rep := &fakeReporter{}
	in := newIngestor(nil, Config{ActorID: "rail-gw"}, rep)

	payload := []byte(`{"schedule_id":9,"latitude":48.8,"longitude":2.3,"speed_kmh":120,"delay_minutes":4,"estimated_arrival":1738400000}`)
	require.NoError(t, in.handle(context.Background(), "ttms/trains/100/position", payload))

	require.Len(t, rep.reports, 1)
	r := rep.reports[0]
	assert.Equal(t, int64(100), r.TrainID)
	assert.Equal(t, int64(9), r.ScheduleID)
	assert.Equal(t, model.StatusDelayed, r.Status)
	require.NotNil(t, r.EstimatedArrival)
	assert.Equal(t, int64(1738400000), r.EstimatedArrival.Unix())

	assert.Equal(t, "rail-gw", rep.actors[0].ID)
	assert.True(t, rep.actors[0].Can(auth.PermUpdateTrainStatus))
	assert.False(t, rep.actors[0].Can(auth.PermCreateSchedules))

	assert.Equal(t, 1.0, testutil.ToFloat64(in.received))
	assert.Equal(t, 0.0, testutil.ToFloat64(in.rejected))
	assert.Positive(t, testutil.ToFloat64(in.lastSeen))
}

func TestHandlePayloadTrainIDWins(t *testing.T) {
	rep := &fakeReporter{}
	in := newIngestor(nil, Config{}, rep)
	require.NoError(t, in.handle(context.Background(), "ttms/trains/100/position", []byte(`{"train_id":200,"schedule_id":1,"status":"early"}`)))
	assert.Equal(t, int64(200), rep.reports[0].TrainID)
	assert.Equal(t, model.StatusEarly, rep.reports[0].Status)
}

func TestHandleCountsOutcomes(t *testing.T) {
	rep := &fakeReporter{}
	in := newIngestor(nil, Config{}, rep)
	ctx := context.Background()

	assert.Error(t, in.handle(ctx, "ttms/trains/1/position", []byte(`{not json`)))
	assert.Equal(t, 1.0, testutil.ToFloat64(in.rejected))

	rep.err = model.NewValidationError("latitude", "must be within [-90, 90]")
	assert.Error(t, in.handle(ctx, "ttms/trains/1/position", []byte(`{"schedule_id":1,"latitude":95}`)))
	assert.Equal(t, 2.0, testutil.ToFloat64(in.rejected))

	rep.err = model.StoreError{Op: "report position", Err: errors.New("disk full")}
	assert.Error(t, in.handle(ctx, "ttms/trains/1/position", []byte(`{"schedule_id":1}`)))
	assert.Equal(t, 1.0, testutil.ToFloat64(in.failed))
	assert.Equal(t, 3.0, testutil.ToFloat64(in.received))
}

func TestHandleRecoversPanic(t *testing.T) {
	in := newIngestor(nil, Config{}, &fakeReporter{panic: true})
	err := in.handle(context.Background(), "ttms/trains/1/position", []byte(`{"schedule_id":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1.0, testutil.ToFloat64(in.failed))
}
