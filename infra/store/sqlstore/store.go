package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/ttms/core/logger"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/store"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store, refdata.Lookup and refdata.Writer.
type Store struct {
	db  *sql.DB
	d   Dialect
	log logger.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps an open database. Call Migrate before first use.
func New(db *sql.DB, d Dialect, log logger.Logger) *Store {
	return &Store{db: db, d: d, log: log}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies the dialect schema.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", s.d.Name(), err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.d.TxOptions())
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{tx: tx, d: s.d}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) GetTimetable(ctx context.Context, id int64) (*model.Timetable, error) {
	return getTimetable(ctx, s.db, s.d, id)
}

func (s *Store) ListTimetables(ctx context.Context) ([]model.Timetable, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+timetableCols+` FROM timetables ORDER BY effective_date DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Timetable
	for rows.Next() {
		t, err := scanTimetable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) GetSchedule(ctx context.Context, id int64) (*model.TrainSchedule, error) {
	return getSchedule(ctx, s.db, s.d, id)
}

func (s *Store) ListSchedules(ctx context.Context, f store.ScheduleFilter) ([]model.TrainSchedule, error) {
	var (
		where []string
		args  []any
	)
	if f.TimetableID != nil {
		where = append(where, "timetable_id = ?")
		args = append(args, *f.TimetableID)
	}
	if f.Date != nil {
		where = append(where, "schedule_date = ?")
		args = append(args, day(*f.Date))
	}
	if f.ActiveOnly {
		where = append(where, "is_cancelled = ?")
		args = append(args, false)
	}
	q := `SELECT ` + scheduleCols + ` FROM train_schedules`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY departure_time, priority_level, id"
	return querySchedules(ctx, s.db, s.d.Rebind(q), args...)
}

func (s *Store) ListStops(ctx context.Context, scheduleID int64) ([]model.ScheduleStop, error) {
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(`SELECT `+stopCols+` FROM schedule_stops WHERE schedule_id = ? ORDER BY sequence_order`), scheduleID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.ScheduleStop
	for rows.Next() {
		var (
			st       model.ScheduleStop
			arr, dep sql.NullInt64
			stopType string
		)
		if err := rows.Scan(&st.ID, &st.ScheduleID, &st.StationID, &arr, &dep, &st.Platform, &st.Track,
			&st.StopDuration, &stopType, &st.SequenceOrder, &st.DistanceFromOrigin,
			&st.IsMandatory, &st.PassengerOperations, &st.FreightOperations); err != nil {
			return nil, err
		}
		st.ArrivalTime = timeOrNil(arr)
		st.DepartureTime = timeOrNil(dep)
		st.StopType = model.StopType(stopType)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) GetPosition(ctx context.Context, trainID, scheduleID int64) (*model.TrainPosition, error) {
	row := s.db.QueryRowContext(ctx, s.d.Rebind(`SELECT `+positionCols+` FROM train_positions WHERE train_id = ? AND schedule_id = ?`), trainID, scheduleID)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) ListPositions(ctx context.Context, f store.PositionFilter) ([]model.TrainPosition, error) {
	var (
		where []string
		args  []any
	)
	if f.ScheduleID != nil {
		where = append(where, "schedule_id = ?")
		args = append(args, *f.ScheduleID)
	}
	if f.TrainID != nil {
		where = append(where, "train_id = ?")
		args = append(args, *f.TrainID)
	}
	q := `SELECT ` + positionCols + ` FROM train_positions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY last_updated DESC, id"
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.TrainPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) ListConflicts(ctx context.Context, f store.ConflictFilter) ([]model.Conflict, error) {
	var (
		where []string
		args  []any
	)
	if f.ScheduleID != nil {
		where = append(where, "(schedule_id_1 = ? OR schedule_id_2 = ?)")
		args = append(args, *f.ScheduleID, *f.ScheduleID)
	}
	if f.Resource != "" {
		where = append(where, "resource_id = ?")
		args = append(args, f.Resource)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	q := `SELECT ` + conflictCols + ` FROM conflicts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Conflict
	for rows.Next() {
		var (
			c                     model.Conflict
			id1                   sql.NullInt64
			start, end, created   int64
			typ, severity, status string
		)
		if err := rows.Scan(&c.ID, &typ, &severity, &id1, &c.ScheduleID2, &start, &end,
			&c.ResourceID, &c.Description, &c.DetectedBySystem, &status, &created); err != nil {
			return nil, err
		}
		c.Type = model.ConflictType(typ)
		c.Severity = model.Severity(severity)
		c.Status = model.ConflictStatus(status)
		c.ScheduleID1 = nullInt64(id1)
		c.TimeStart, c.TimeEnd, c.CreatedAt = fromUnix(start), fromUnix(end), fromUnix(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

const timetableCols = `id, timetable_name, version, effective_date, expiry_date, notes, created_by, status, created_at`

func scanTimetable(row scanner) (*model.Timetable, error) {
	var (
		t                 model.Timetable
		eff, exp, created int64
		status            string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Version, &eff, &exp, &t.Notes, &t.CreatedBy, &status, &created); err != nil {
		return nil, err
	}
	t.EffectiveDate, t.ExpiryDate, t.CreatedAt = fromUnix(eff), fromUnix(exp), fromUnix(created)
	t.Status = model.TimetableStatus(status)
	return &t, nil
}

func getTimetable(ctx context.Context, q queryer, d Dialect, id int64) (*model.Timetable, error) {
	t, err := scanTimetable(q.QueryRowContext(ctx, d.Rebind(`SELECT `+timetableCols+` FROM timetables WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return t, err
}

const scheduleCols = `id, timetable_id, train_id, route_id, schedule_date, departure_time, arrival_time,
	operating_days, track_assignment, platform_assignment, crew_assignment, priority_level,
	is_temporary, is_cancelled, cancellation_reason, cancelled_by, cancelled_at, created_at, updated_at`

func scanSchedule(row scanner) (*model.TrainSchedule, error) {
	var (
		s                            model.TrainSchedule
		date, dep, arr, created, upd int64
		days                         int64
		track, platform, crew        sql.NullString
		reason, by                   sql.NullString
		cancelledAt                  sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.TimetableID, &s.TrainID, &s.RouteID, &date, &dep, &arr,
		&days, &track, &platform, &crew, &s.PriorityLevel,
		&s.IsTemporary, &s.IsCancelled, &reason, &by, &cancelledAt, &created, &upd); err != nil {
		return nil, err
	}
	s.ScheduleDate = fromUnix(date)
	s.DepartureTime, s.ArrivalTime = fromUnix(dep), fromUnix(arr)
	s.OperatingDays = model.OperatingDays(days)
	s.TrackAssignment, s.PlatformAssignment, s.CrewAssignment = nullStr(track), nullStr(platform), nullStr(crew)
	s.CancellationReason, s.CancelledBy = nullStr(reason), nullStr(by)
	s.CancelledAt = timeOrNil(cancelledAt)
	s.CreatedAt, s.UpdatedAt = fromUnix(created), fromUnix(upd)
	return &s, nil
}

func getSchedule(ctx context.Context, q queryer, d Dialect, id int64) (*model.TrainSchedule, error) {
	s, err := scanSchedule(q.QueryRowContext(ctx, d.Rebind(`SELECT `+scheduleCols+` FROM train_schedules WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return s, err
}

func querySchedules(ctx context.Context, q queryer, query string, args ...any) ([]model.TrainSchedule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.TrainSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

const stopCols = `id, schedule_id, station_id, arrival_time, departure_time, platform, track,
	stop_duration, stop_type, sequence_order, distance_from_origin,
	is_mandatory, passenger_operations, freight_operations`

const positionCols = `id, train_id, schedule_id, current_station_id, next_station_id, latitude, longitude,
	speed_kmh, heading_degrees, status, delay_minutes, estimated_arrival,
	distance_to_next_station, fuel_level_percent, last_updated`

func scanPosition(row scanner) (*model.TrainPosition, error) {
	var (
		p         model.TrainPosition
		cur, next sql.NullInt64
		eta       sql.NullInt64
		status    string
		updated   int64
	)
	if err := row.Scan(&p.ID, &p.TrainID, &p.ScheduleID, &cur, &next, &p.Latitude, &p.Longitude,
		&p.SpeedKmh, &p.HeadingDegrees, &status, &p.DelayMinutes, &eta,
		&p.DistanceToNextStation, &p.FuelLevelPercent, &updated); err != nil {
		return nil, err
	}
	p.CurrentStationID, p.NextStationID = nullInt64(cur), nullInt64(next)
	p.Status = model.PositionStatus(status)
	p.EstimatedArrival = timeOrNil(eta)
	p.LastUpdated = fromUnix(updated)
	return &p, nil
}

const conflictCols = `id, conflict_type, severity, schedule_id_1, schedule_id_2, conflict_time_start, conflict_time_end,
	resource_id, description, detected_by_system, status, created_at`
