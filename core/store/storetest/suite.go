// Package storetest holds the compliance suite every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/refdata"
	"github.com/kilianp07/ttms/core/store"
)

// Base is the departure day used by the fixtures.
var Base = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

// At returns Base plus the given hour and minute.
func At(hour, minute int) time.Time {
	return Base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Run exercises the compliance suite against a fresh store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("timetables", func(t *testing.T) { testTimetables(t, makeStore(t)) })
	t.Run("schedules", func(t *testing.T) { testSchedules(t, makeStore(t)) })
	t.Run("track_scan", func(t *testing.T) { testTrackScan(t, makeStore(t)) })
	t.Run("cancel_is_terminal", func(t *testing.T) { testCancel(t, makeStore(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, makeStore(t)) })
	t.Run("conflicts", func(t *testing.T) { testConflicts(t, makeStore(t)) })
	t.Run("positions", func(t *testing.T) { testPositions(t, makeStore(t)) })
	t.Run("delete_cascade", func(t *testing.T) { testDelete(t, makeStore(t)) })
	t.Run("list_filters", func(t *testing.T) { testListFilters(t, makeStore(t)) })
	t.Run("refdata", func(t *testing.T) { testRefdata(t, makeStore(t)) })
}

// SeedTimetable inserts a timetable and returns its id.
func SeedTimetable(t *testing.T, s store.Store) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		id, err = tx.InsertTimetable(context.Background(), &model.Timetable{
			Name:          "Winter 2025",
			Version:       "1.0",
			EffectiveDate: Base,
			ExpiryDate:    Base.AddDate(0, 3, 0),
			CreatedBy:     "u1",
			Status:        model.TimetableActive,
			CreatedAt:     At(0, 0),
		})
		return err
	})
	require.NoError(t, err)
	return id
}

// NewSchedule returns an unsaved schedule on track running dep..arr.
func NewSchedule(timetableID, trainID int64, track string, dep, arr time.Time) *model.TrainSchedule {
	s := &model.TrainSchedule{
		TimetableID:   timetableID,
		TrainID:       trainID,
		RouteID:       1,
		ScheduleDate:  model.Day(dep),
		DepartureTime: dep,
		ArrivalTime:   arr,
		OperatingDays: model.EveryDay,
		PriorityLevel: 1,
		CreatedAt:     dep.Add(-24 * time.Hour),
		UpdatedAt:     dep.Add(-24 * time.Hour),
	}
	if track != "" {
		s.TrackAssignment = Ptr(track)
	}
	return s
}

// SeedSchedule inserts a schedule and returns its id.
func SeedSchedule(t *testing.T, s store.Store, sched *model.TrainSchedule, stops ...model.ScheduleStop) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		if id, err = tx.InsertSchedule(context.Background(), sched); err != nil {
			return err
		}
		if len(stops) == 0 {
			return nil
		}
		return tx.InsertStops(context.Background(), id, stops)
	})
	require.NoError(t, err)
	return id
}

func testTimetables(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := SeedTimetable(t, s)
	require.NotZero(t, id)

	tt, err := s.GetTimetable(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Winter 2025", tt.Name)
	assert.True(t, tt.EffectiveDate.Equal(Base))
	assert.Equal(t, model.TimetableActive, tt.Status)

	all, err := s.ListTimetables(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = s.GetTimetable(ctx, id+100)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testSchedules(t *testing.T, s store.Store) {
	ctx := context.Background()
	ttID := SeedTimetable(t, s)
	sched := NewSchedule(ttID, 100, "T1", At(8, 0), At(9, 0))
	sched.PlatformAssignment = Ptr("3")
	sched.OperatingDays = model.OperatingDays(0x1F)
	sched.IsTemporary = true
	id := SeedSchedule(t, s, sched,
		model.ScheduleStop{StationID: 10, DepartureTime: Ptr(At(8, 0)), StopType: model.StopOrigin, SequenceOrder: 1, IsMandatory: true, PassengerOperations: true},
		model.ScheduleStop{StationID: 11, ArrivalTime: Ptr(At(8, 30)), DepartureTime: Ptr(At(8, 32)), StopDuration: 2, StopType: model.StopIntermediate, SequenceOrder: 2, DistanceFromOrigin: 40.5, Platform: "2"},
		model.ScheduleStop{StationID: 12, ArrivalTime: Ptr(At(9, 0)), StopType: model.StopDestination, SequenceOrder: 3, DistanceFromOrigin: 81},
	)

	got, err := s.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, int64(100), got.TrainID)
	assert.Equal(t, "T1", got.Track())
	require.NotNil(t, got.PlatformAssignment)
	assert.Equal(t, "3", *got.PlatformAssignment)
	assert.Nil(t, got.CrewAssignment)
	assert.Equal(t, model.OperatingDays(0x1F), got.OperatingDays)
	assert.True(t, got.ScheduleDate.Equal(Base))
	assert.True(t, got.DepartureTime.Equal(At(8, 0)))
	assert.True(t, got.ArrivalTime.Equal(At(9, 0)))
	assert.True(t, got.IsTemporary)
	assert.False(t, got.IsCancelled)
	assert.Nil(t, got.CancelledAt)

	stops, err := s.ListStops(ctx, id)
	require.NoError(t, err)
	require.Len(t, stops, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{stops[0].SequenceOrder, stops[1].SequenceOrder, stops[2].SequenceOrder})
	assert.Nil(t, stops[0].ArrivalTime)
	require.NotNil(t, stops[1].DepartureTime)
	assert.True(t, stops[1].DepartureTime.Equal(At(8, 32)))
	assert.Equal(t, model.StopIntermediate, stops[1].StopType)
	assert.InDelta(t, 40.5, stops[1].DistanceFromOrigin, 1e-9)

	// update
	got.DepartureTime = At(8, 10)
	got.TrackAssignment = Ptr("T2")
	got.CrewAssignment = Ptr("crew-7")
	got.PriorityLevel = 3
	got.UpdatedAt = At(7, 0)
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateSchedule(ctx, got) }))
	after, err := s.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.True(t, after.DepartureTime.Equal(At(8, 10)))
	assert.Equal(t, "T2", after.Track())
	assert.Equal(t, 3, after.PriorityLevel)
	require.NotNil(t, after.CrewAssignment)
	assert.Equal(t, "crew-7", *after.CrewAssignment)
	assert.True(t, after.UpdatedAt.Equal(At(7, 0)))

	_, err = s.GetSchedule(ctx, id+100)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTrackScan(t *testing.T, s store.Store) {
	ctx := context.Background()
	ttID := SeedTimetable(t, s)
	a := SeedSchedule(t, s, NewSchedule(ttID, 1, "T1", At(8, 0), At(9, 0)))
	b := SeedSchedule(t, s, NewSchedule(ttID, 2, "T1", At(10, 0), At(11, 0)))
	SeedSchedule(t, s, NewSchedule(ttID, 3, "T2", At(8, 0), At(9, 0)))
	SeedSchedule(t, s, NewSchedule(ttID, 4, "T1", At(32, 0), At(33, 0)))
	c := SeedSchedule(t, s, NewSchedule(ttID, 5, "T1", At(12, 0), At(13, 0)))
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.CancelSchedule(ctx, c, "test", "u1", At(7, 0))
	}))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.LockTracks(ctx, store.TrackKey{Track: "T1", Date: Base}, store.TrackKey{Track: "T2", Date: Base}))
		all, err := tx.ListTrackSchedules(ctx, "T1", Base, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{a, b}, ids(all))

		excl, err := tx.ListTrackSchedules(ctx, "T1", Base, &a)
		require.NoError(t, err)
		assert.Equal(t, []int64{b}, ids(excl))
		return nil
	}))
}

func testCancel(t *testing.T, s store.Store) {
	ctx := context.Background()
	ttID := SeedTimetable(t, s)
	id := SeedSchedule(t, s, NewSchedule(ttID, 1, "T1", At(8, 0), At(9, 0)))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.CancelSchedule(ctx, id, "snow", "u1", At(7, 0))
	}))
	got, err := s.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.IsCancelled)
	require.NotNil(t, got.CancelledAt)
	assert.True(t, got.CancelledAt.Equal(At(7, 0)))
	assert.Equal(t, "snow", *got.CancellationReason)
	assert.Equal(t, "u1", *got.CancelledBy)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.CancelSchedule(ctx, id, "again", "u2", At(7, 30))
	})
	assert.ErrorIs(t, err, store.ErrStale)

	err = s.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateSchedule(ctx, got) })
	assert.ErrorIs(t, err, store.ErrStale)

	again, err := s.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.True(t, again.CancelledAt.Equal(At(7, 0)))
	assert.Equal(t, "snow", *again.CancellationReason)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	ttID := SeedTimetable(t, s)
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		id, err := tx.InsertSchedule(ctx, NewSchedule(ttID, 1, "T1", At(8, 0), At(9, 0)))
		require.NoError(t, err)
		require.NoError(t, tx.InsertStops(ctx, id, []model.ScheduleStop{{StationID: 1, SequenceOrder: 1, StopType: model.StopOrigin}}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := s.ListSchedules(ctx, store.ScheduleFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err = s.WithTx(cctx, func(tx store.Tx) error {
		_, err := tx.InsertSchedule(cctx, NewSchedule(ttID, 1, "T1", At(8, 0), At(9, 0)))
		return err
	})
	assert.Error(t, err)
	all, err = s.ListSchedules(ctx, store.ScheduleFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testConflicts(t *testing.T, s store.Store) {
	ctx := context.Background()
	ttID := SeedTimetable(t, s)
	a := SeedSchedule(t, s, NewSchedule(ttID, 1, "T1", At(8, 0), At(9, 0)))
	b := SeedSchedule(t, s, NewSchedule(ttID, 2, "T1", At(10, 0), At(11, 0)))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for _, c := range []model.Conflict{
			{Type: model.ConflictTrackOverlap, Severity: model.SeverityMedium, ScheduleID2: a, TimeStart: At(8, 30), TimeEnd: At(9, 0), ResourceID: "T1", Description: "first", DetectedBySystem: true, Status: model.ConflictDetected, CreatedAt: At(7, 0)},
			{Type: model.ConflictTrackOverlap, Severity: model.SeverityMedium, ScheduleID1: &a, ScheduleID2: b, TimeStart: At(10, 0), TimeEnd: At(10, 30), ResourceID: "T1", Description: "second", DetectedBySystem: true, Status: model.ConflictDetected, CreatedAt: At(7, 5)},
		} {
			c := c
			id, err := tx.InsertConflict(ctx, &c)
			require.NoError(t, err)
			assert.NotZero(t, id)
		}
		return nil
	}))

	all, err := s.ListConflicts(ctx, store.ConflictFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Description, "newest first")
	assert.Nil(t, all[1].ScheduleID1)
	require.NotNil(t, all[0].ScheduleID1)
	assert.Equal(t, a, *all[0].ScheduleID1)
	assert.True(t, all[1].TimeStart.Equal(At(8, 30)))

	byA, err := s.ListConflicts(ctx, store.ConflictFilter{ScheduleID: &a})
	require.NoError(t, err)
	assert.Len(t, byA, 2)
	byB, err := s.ListConflicts(ctx, store.ConflictFilter{ScheduleID: &b})
	require.NoError(t, err)
	assert.Len(t, byB, 1)
	limited, err := s.ListConflicts(ctx, store.ConflictFilter{Limit: 1, Resource: "T1", Status: model.ConflictDetected})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testPositions(t *testing.T, s store.Store) {
	ctx := context.Background()
	ttID := SeedTimetable(t, s)
	id := SeedSchedule(t, s, NewSchedule(ttID, 7, "T1", At(8, 0), At(9, 0)))

	p := &model.TrainPosition{TrainID: 7, ScheduleID: id, Latitude: 52.1, Longitude: 5.1, Status: model.StatusOnTime, CurrentStationID: Ptr(int64(10)), LastUpdated: At(8, 5)}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.UpsertPosition(ctx, p) }))
	p2 := &model.TrainPosition{TrainID: 7, ScheduleID: id, Latitude: 52.2, Longitude: 5.2, SpeedKmh: 120, Status: model.StatusDelayed, DelayMinutes: 12, EstimatedArrival: Ptr(At(9, 12)), LastUpdated: At(8, 10)}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.UpsertPosition(ctx, p2) }))

	all, err := s.ListPositions(ctx, store.PositionFilter{ScheduleID: &id})
	require.NoError(t, err)
	require.Len(t, all, 1)

	got, err := s.GetPosition(ctx, 7, id)
	require.NoError(t, err)
	assert.InDelta(t, 52.2, got.Latitude, 1e-9)
	assert.Equal(t, model.StatusDelayed, got.Status)
	assert.Equal(t, 12, got.DelayMinutes)
	assert.Nil(t, got.CurrentStationID)
	require.NotNil(t, got.EstimatedArrival)
	assert.True(t, got.EstimatedArrival.Equal(At(9, 12)))
	assert.True(t, got.LastUpdated.Equal(At(8, 10)))

	_, err = s.GetPosition(ctx, 8, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	ttID := SeedTimetable(t, s)
	id := SeedSchedule(t, s, NewSchedule(ttID, 7, "T1", At(8, 0), At(9, 0)),
		model.ScheduleStop{StationID: 1, SequenceOrder: 1, StopType: model.StopOrigin},
		model.ScheduleStop{StationID: 2, SequenceOrder: 2, StopType: model.StopDestination},
	)
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpsertPosition(ctx, &model.TrainPosition{TrainID: 7, ScheduleID: id, Status: model.StatusOnTime, LastUpdated: At(8, 1)})
	}))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.DeleteStops(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		n, err = tx.DeletePositions(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return tx.DeleteSchedule(ctx, id)
	}))

	_, err := s.GetSchedule(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	stops, err := s.ListStops(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, stops)
	pos, err := s.ListPositions(ctx, store.PositionFilter{ScheduleID: &id})
	require.NoError(t, err)
	assert.Empty(t, pos)

	err = s.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteSchedule(ctx, id) })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	tt1 := SeedTimetable(t, s)
	tt2 := SeedTimetable(t, s)
	late := NewSchedule(tt1, 1, "T1", At(10, 0), At(11, 0))
	early := NewSchedule(tt1, 2, "T2", At(8, 0), At(9, 0))
	lowPrio := NewSchedule(tt1, 3, "T3", At(8, 0), At(9, 0))
	lowPrio.PriorityLevel = 5
	nextDay := NewSchedule(tt2, 4, "T1", At(30, 0), At(31, 0))
	lateID := SeedSchedule(t, s, late)
	earlyID := SeedSchedule(t, s, early)
	lowID := SeedSchedule(t, s, lowPrio)
	nextID := SeedSchedule(t, s, nextDay)
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.CancelSchedule(ctx, lateID, "x", "u1", At(7, 0))
	}))

	all, err := s.ListSchedules(ctx, store.ScheduleFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{earlyID, lowID, lateID, nextID}, ids(all))

	active, err := s.ListSchedules(ctx, store.ScheduleFilter{ActiveOnly: true, Date: Ptr(Base)})
	require.NoError(t, err)
	assert.Equal(t, []int64{earlyID, lowID}, ids(active))

	byTT, err := s.ListSchedules(ctx, store.ScheduleFilter{TimetableID: &tt2})
	require.NoError(t, err)
	assert.Equal(t, []int64{nextID}, ids(byTT))
}

func testRefdata(t *testing.T, s store.Store) {
	w, ok := s.(refdata.Writer)
	if !ok {
		t.Skip("store does not hold reference data")
	}
	l, ok := s.(refdata.Lookup)
	require.True(t, ok, "reference writer must also be a lookup")
	ctx := context.Background()
	ds := refdata.Dataset{
		TrainTypes: []refdata.TrainType{{ID: 1, Code: "IC", Name: "InterCity", ColorCode: "#ffcc00"}},
		Stations:   []refdata.Station{{ID: 10, Code: "AMS", Name: "Amsterdam", Latitude: 52.37, Longitude: 4.89}, {ID: 11, Code: "UT", Name: "Utrecht"}},
		Trains:     []refdata.Train{{ID: 100, Number: "IC 101", Name: "Morning", TypeID: 1}},
		Routes:     []refdata.Route{{ID: 5, Code: "AMS-UT", Name: "Amsterdam - Utrecht", OriginStationID: 10, DestinationStationID: 11}},
	}
	require.NoError(t, w.SeedReferenceData(ctx, ds))
	ds.Trains[0].Name = "Early"
	require.NoError(t, w.SeedReferenceData(ctx, ds), "seeding is idempotent")

	tr, err := l.Train(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "IC 101", tr.Number)
	assert.Equal(t, "Early", tr.Name)
	assert.Equal(t, "InterCity", tr.Type.Name)
	assert.Equal(t, "#ffcc00", tr.Type.ColorCode)

	r, err := l.Route(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Amsterdam", r.Origin.Name)
	assert.Equal(t, "Utrecht", r.Destination.Name)

	st, err := l.Station(ctx, 10)
	require.NoError(t, err)
	assert.InDelta(t, 52.37, st.Latitude, 1e-9)

	_, err = l.Train(ctx, 999)
	assert.ErrorIs(t, err, refdata.ErrUnknown)
}

func ids(in []model.TrainSchedule) []int64 {
	out := make([]int64, 0, len(in))
	for _, s := range in {
		out = append(out, s.ID)
	}
	return out
}
