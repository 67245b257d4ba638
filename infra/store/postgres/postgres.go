// Package postgres provides the shared-database store backend. Concurrent
// writers on the same track and day are serialised with row locks on the
// track_locks table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kilianp07/ttms/core/logger"
	"github.com/kilianp07/ttms/core/store"
	"github.com/kilianp07/ttms/infra/store/sqlstore"
)

type dialect struct{}

func (dialect) Name() string           { return "postgres" }
func (dialect) Rebind(q string) string { return sqlstore.DollarNumbers(q) }
func (dialect) Schema() []string       { return schema }

func (dialect) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

// LockTracks materialises one row per key and locks it FOR UPDATE. A second
// writer on the same key blocks until the first transaction ends.
func (dialect) LockTracks(ctx context.Context, tx *sql.Tx, keys []store.TrackKey) error {
	for _, k := range keys {
		day := k.Date.Unix()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO track_locks (track, schedule_date) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			k.Track, day); err != nil {
			return fmt.Errorf("lock %s: %w", k.Track, err)
		}
		var track string
		if err := tx.QueryRowContext(ctx,
			`SELECT track FROM track_locks WHERE track = $1 AND schedule_date = $2 FOR UPDATE`,
			k.Track, day).Scan(&track); err != nil {
			return fmt.Errorf("lock %s: %w", k.Track, err)
		}
	}
	return nil
}

// Open connects using a pgx DSN and applies the schema.
func Open(ctx context.Context, dsn string, log logger.Logger) (*sqlstore.Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := sqlstore.New(db, dialect{}, log)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS train_types (
		id BIGINT PRIMARY KEY,
		type_code TEXT NOT NULL UNIQUE,
		type_name TEXT NOT NULL,
		color_code TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS stations (
		id BIGINT PRIMARY KEY,
		station_code TEXT NOT NULL UNIQUE,
		station_name TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS trains (
		id BIGINT PRIMARY KEY,
		train_number TEXT NOT NULL UNIQUE,
		train_name TEXT NOT NULL DEFAULT '',
		train_type_id BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS routes (
		id BIGINT PRIMARY KEY,
		route_code TEXT NOT NULL UNIQUE,
		route_name TEXT NOT NULL,
		origin_station_id BIGINT NOT NULL,
		destination_station_id BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS timetables (
		id BIGSERIAL PRIMARY KEY,
		timetable_name TEXT NOT NULL,
		version TEXT NOT NULL,
		effective_date BIGINT NOT NULL,
		expiry_date BIGINT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at BIGINT NOT NULL,
		CHECK (effective_date < expiry_date)
	)`,
	`CREATE TABLE IF NOT EXISTS train_schedules (
		id BIGSERIAL PRIMARY KEY,
		timetable_id BIGINT NOT NULL REFERENCES timetables(id),
		train_id BIGINT NOT NULL,
		route_id BIGINT NOT NULL,
		schedule_date BIGINT NOT NULL,
		departure_time BIGINT NOT NULL,
		arrival_time BIGINT NOT NULL,
		operating_days SMALLINT NOT NULL DEFAULT 127,
		track_assignment TEXT,
		platform_assignment TEXT,
		crew_assignment TEXT,
		priority_level INTEGER NOT NULL DEFAULT 1,
		is_temporary BOOLEAN NOT NULL DEFAULT FALSE,
		is_cancelled BOOLEAN NOT NULL DEFAULT FALSE,
		cancellation_reason TEXT,
		cancelled_by TEXT,
		cancelled_at BIGINT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		CHECK (departure_time < arrival_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_train_schedules_track_date ON train_schedules(track_assignment, schedule_date)`,
	`CREATE INDEX IF NOT EXISTS idx_train_schedules_date ON train_schedules(schedule_date, departure_time)`,
	`CREATE TABLE IF NOT EXISTS schedule_stops (
		id BIGSERIAL PRIMARY KEY,
		schedule_id BIGINT NOT NULL REFERENCES train_schedules(id),
		station_id BIGINT NOT NULL,
		arrival_time BIGINT,
		departure_time BIGINT,
		platform TEXT NOT NULL DEFAULT '',
		track TEXT NOT NULL DEFAULT '',
		stop_duration INTEGER NOT NULL DEFAULT 0,
		stop_type TEXT NOT NULL DEFAULT 'intermediate',
		sequence_order INTEGER NOT NULL,
		distance_from_origin DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_mandatory BOOLEAN NOT NULL DEFAULT TRUE,
		passenger_operations BOOLEAN NOT NULL DEFAULT TRUE,
		freight_operations BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (schedule_id, sequence_order)
	)`,
	`CREATE TABLE IF NOT EXISTS train_positions (
		id BIGSERIAL PRIMARY KEY,
		train_id BIGINT NOT NULL,
		schedule_id BIGINT NOT NULL REFERENCES train_schedules(id),
		current_station_id BIGINT,
		next_station_id BIGINT,
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		speed_kmh DOUBLE PRECISION NOT NULL DEFAULT 0,
		heading_degrees DOUBLE PRECISION NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'on_time',
		delay_minutes INTEGER NOT NULL DEFAULT 0,
		estimated_arrival BIGINT,
		distance_to_next_station DOUBLE PRECISION NOT NULL DEFAULT 0,
		fuel_level_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_updated BIGINT NOT NULL,
		UNIQUE (train_id, schedule_id)
	)`,
	`CREATE TABLE IF NOT EXISTS conflicts (
		id BIGSERIAL PRIMARY KEY,
		conflict_type TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'medium',
		schedule_id_1 BIGINT,
		schedule_id_2 BIGINT NOT NULL,
		conflict_time_start BIGINT NOT NULL,
		conflict_time_end BIGINT NOT NULL,
		resource_id TEXT NOT NULL,
		description TEXT NOT NULL,
		detected_by_system BOOLEAN NOT NULL DEFAULT TRUE,
		status TEXT NOT NULL DEFAULT 'detected',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conflicts_created ON conflicts(created_at)`,
	`CREATE TABLE IF NOT EXISTS track_locks (
		track TEXT NOT NULL,
		schedule_date BIGINT NOT NULL,
		PRIMARY KEY (track, schedule_date)
	)`,
}
