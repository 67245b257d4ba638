package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/store"
)

type sqlTx struct {
	tx *sql.Tx
	d  Dialect
}

var _ store.Tx = (*sqlTx)(nil)

func (t *sqlTx) LockTracks(ctx context.Context, keys ...store.TrackKey) error {
	keys = store.SortTrackKeys(keys)
	if len(keys) == 0 {
		return nil
	}
	return t.d.LockTracks(ctx, t.tx, keys)
}

func (t *sqlTx) GetTimetable(ctx context.Context, id int64) (*model.Timetable, error) {
	return getTimetable(ctx, t.tx, t.d, id)
}

func (t *sqlTx) InsertTimetable(ctx context.Context, tt *model.Timetable) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, t.d.Rebind(`INSERT INTO timetables
		(timetable_name, version, effective_date, expiry_date, notes, created_by, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		tt.Name, tt.Version, day(tt.EffectiveDate), day(tt.ExpiryDate), tt.Notes, tt.CreatedBy,
		string(tt.Status), unix(tt.CreatedAt)).Scan(&id)
	if err != nil {
		return 0, err
	}
	tt.ID = id
	return id, nil
}

func (t *sqlTx) GetSchedule(ctx context.Context, id int64) (*model.TrainSchedule, error) {
	return getSchedule(ctx, t.tx, t.d, id)
}

func (t *sqlTx) ListTrackSchedules(ctx context.Context, track string, d time.Time, excludeID *int64) ([]model.TrainSchedule, error) {
	q := `SELECT ` + scheduleCols + ` FROM train_schedules
		WHERE track_assignment = ? AND schedule_date = ? AND is_cancelled = ?`
	args := []any{track, day(d), false}
	if excludeID != nil {
		q += ` AND id <> ?`
		args = append(args, *excludeID)
	}
	q += ` ORDER BY departure_time, id`
	return querySchedules(ctx, t.tx, t.d.Rebind(q), args...)
}

func (t *sqlTx) InsertSchedule(ctx context.Context, s *model.TrainSchedule) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, t.d.Rebind(`INSERT INTO train_schedules
		(timetable_id, train_id, route_id, schedule_date, departure_time, arrival_time, operating_days,
		 track_assignment, platform_assignment, crew_assignment, priority_level, is_temporary, is_cancelled,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		s.TimetableID, s.TrainID, s.RouteID, day(s.ScheduleDate), unix(s.DepartureTime), unix(s.ArrivalTime),
		int64(s.OperatingDays), strOrNil(s.TrackAssignment), strOrNil(s.PlatformAssignment), strOrNil(s.CrewAssignment),
		s.PriorityLevel, s.IsTemporary, false, unix(s.CreatedAt), unix(s.UpdatedAt)).Scan(&id)
	if err != nil {
		return 0, err
	}
	s.ID = id
	return id, nil
}

func (t *sqlTx) InsertStops(ctx context.Context, scheduleID int64, stops []model.ScheduleStop) error {
	stmt, err := t.tx.PrepareContext(ctx, t.d.Rebind(`INSERT INTO schedule_stops
		(schedule_id, station_id, arrival_time, departure_time, platform, track, stop_duration, stop_type,
		 sequence_order, distance_from_origin, is_mandatory, passenger_operations, freight_operations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, st := range stops {
		if _, err := stmt.ExecContext(ctx, scheduleID, st.StationID, unixOrNil(st.ArrivalTime), unixOrNil(st.DepartureTime),
			st.Platform, st.Track, st.StopDuration, string(st.StopType), st.SequenceOrder, st.DistanceFromOrigin,
			st.IsMandatory, st.PassengerOperations, st.FreightOperations); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) UpdateSchedule(ctx context.Context, s *model.TrainSchedule) error {
	res, err := t.tx.ExecContext(ctx, t.d.Rebind(`UPDATE train_schedules SET
		departure_time = ?, arrival_time = ?, operating_days = ?, track_assignment = ?,
		platform_assignment = ?, crew_assignment = ?, priority_level = ?, updated_at = ?
		WHERE id = ? AND is_cancelled = ?`),
		unix(s.DepartureTime), unix(s.ArrivalTime), int64(s.OperatingDays), strOrNil(s.TrackAssignment),
		strOrNil(s.PlatformAssignment), strOrNil(s.CrewAssignment), s.PriorityLevel, unix(s.UpdatedAt),
		s.ID, false)
	if err != nil {
		return err
	}
	return expectOne(res, store.ErrStale)
}

func (t *sqlTx) CancelSchedule(ctx context.Context, id int64, reason, by string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, t.d.Rebind(`UPDATE train_schedules SET
		is_cancelled = ?, cancellation_reason = ?, cancelled_by = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ? AND is_cancelled = ?`),
		true, reason, by, unix(at), unix(at), id, false)
	if err != nil {
		return err
	}
	return expectOne(res, store.ErrStale)
}

func (t *sqlTx) DeleteStops(ctx context.Context, scheduleID int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.d.Rebind(`DELETE FROM schedule_stops WHERE schedule_id = ?`), scheduleID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *sqlTx) DeletePositions(ctx context.Context, scheduleID int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.d.Rebind(`DELETE FROM train_positions WHERE schedule_id = ?`), scheduleID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *sqlTx) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, t.d.Rebind(`DELETE FROM train_schedules WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectOne(res, store.ErrNotFound)
}

func (t *sqlTx) InsertConflict(ctx context.Context, c *model.Conflict) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, t.d.Rebind(`INSERT INTO conflicts
		(conflict_type, severity, schedule_id_1, schedule_id_2, conflict_time_start, conflict_time_end,
		 resource_id, description, detected_by_system, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		string(c.Type), string(c.Severity), int64OrNil(c.ScheduleID1), c.ScheduleID2, unix(c.TimeStart), unix(c.TimeEnd),
		c.ResourceID, c.Description, c.DetectedBySystem, string(c.Status), unix(c.CreatedAt)).Scan(&id)
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

func (t *sqlTx) UpsertPosition(ctx context.Context, p *model.TrainPosition) error {
	var id int64
	err := t.tx.QueryRowContext(ctx, t.d.Rebind(`INSERT INTO train_positions
		(train_id, schedule_id, current_station_id, next_station_id, latitude, longitude, speed_kmh,
		 heading_degrees, status, delay_minutes, estimated_arrival, distance_to_next_station,
		 fuel_level_percent, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (train_id, schedule_id) DO UPDATE SET
		 current_station_id = excluded.current_station_id,
		 next_station_id = excluded.next_station_id,
		 latitude = excluded.latitude,
		 longitude = excluded.longitude,
		 speed_kmh = excluded.speed_kmh,
		 heading_degrees = excluded.heading_degrees,
		 status = excluded.status,
		 delay_minutes = excluded.delay_minutes,
		 estimated_arrival = excluded.estimated_arrival,
		 distance_to_next_station = excluded.distance_to_next_station,
		 fuel_level_percent = excluded.fuel_level_percent,
		 last_updated = excluded.last_updated
		RETURNING id`),
		p.TrainID, p.ScheduleID, int64OrNil(p.CurrentStationID), int64OrNil(p.NextStationID), p.Latitude, p.Longitude,
		p.SpeedKmh, p.HeadingDegrees, string(p.Status), p.DelayMinutes, unixOrNil(p.EstimatedArrival),
		p.DistanceToNextStation, p.FuelLevelPercent, unix(p.LastUpdated)).Scan(&id)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func expectOne(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}
