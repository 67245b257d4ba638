// Package sqlite provides the embedded store backend. Writers are serialised
// by SQLite's database lock: the pool holds a single connection and every
// transaction starts with BEGIN IMMEDIATE.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/ttms/core/logger"
	"github.com/kilianp07/ttms/core/store"
	"github.com/kilianp07/ttms/infra/store/sqlstore"
)

type dialect struct{}

func (dialect) Name() string              { return "sqlite" }
func (dialect) Rebind(q string) string    { return sqlstore.QuestionMarks(q) }
func (dialect) TxOptions() *sql.TxOptions { return nil }
func (dialect) Schema() []string          { return schema }

// LockTracks is a no-op: the immediate transaction already holds the
// database write lock.
func (dialect) LockTracks(context.Context, *sql.Tx, []store.TrackKey) error { return nil }

// DSN builds the driver connection string for path. ":memory:" opens a
// private in-memory database.
func DSN(path string) string {
	if path == "" || path == ":memory:" {
		path = ":memory:"
	}
	params := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if strings.HasPrefix(path, "file:") {
		if strings.Contains(path, "?") {
			return path + "&" + params
		}
		return path + "?" + params
	}
	return "file:" + path + "?" + params
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, log logger.Logger) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
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
		id INTEGER PRIMARY KEY,
		type_code TEXT NOT NULL UNIQUE,
		type_name TEXT NOT NULL,
		color_code TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS stations (
		id INTEGER PRIMARY KEY,
		station_code TEXT NOT NULL UNIQUE,
		station_name TEXT NOT NULL,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS trains (
		id INTEGER PRIMARY KEY,
		train_number TEXT NOT NULL UNIQUE,
		train_name TEXT NOT NULL DEFAULT '',
		train_type_id INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS routes (
		id INTEGER PRIMARY KEY,
		route_code TEXT NOT NULL UNIQUE,
		route_name TEXT NOT NULL,
		origin_station_id INTEGER NOT NULL,
		destination_station_id INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS timetables (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timetable_name TEXT NOT NULL,
		version TEXT NOT NULL,
		effective_date INTEGER NOT NULL,
		expiry_date INTEGER NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at INTEGER NOT NULL,
		CHECK (effective_date < expiry_date)
	)`,
	`CREATE TABLE IF NOT EXISTS train_schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timetable_id INTEGER NOT NULL REFERENCES timetables(id),
		train_id INTEGER NOT NULL,
		route_id INTEGER NOT NULL,
		schedule_date INTEGER NOT NULL,
		departure_time INTEGER NOT NULL,
		arrival_time INTEGER NOT NULL,
		operating_days INTEGER NOT NULL DEFAULT 127,
		track_assignment TEXT,
		platform_assignment TEXT,
		crew_assignment TEXT,
		priority_level INTEGER NOT NULL DEFAULT 1,
		is_temporary BOOLEAN NOT NULL DEFAULT 0,
		is_cancelled BOOLEAN NOT NULL DEFAULT 0,
		cancellation_reason TEXT,
		cancelled_by TEXT,
		cancelled_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CHECK (departure_time < arrival_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_train_schedules_track_date ON train_schedules(track_assignment, schedule_date)`,
	`CREATE INDEX IF NOT EXISTS idx_train_schedules_date ON train_schedules(schedule_date, departure_time)`,
	`CREATE TABLE IF NOT EXISTS schedule_stops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		schedule_id INTEGER NOT NULL REFERENCES train_schedules(id),
		station_id INTEGER NOT NULL,
		arrival_time INTEGER,
		departure_time INTEGER,
		platform TEXT NOT NULL DEFAULT '',
		track TEXT NOT NULL DEFAULT '',
		stop_duration INTEGER NOT NULL DEFAULT 0,
		stop_type TEXT NOT NULL DEFAULT 'intermediate',
		sequence_order INTEGER NOT NULL,
		distance_from_origin REAL NOT NULL DEFAULT 0,
		is_mandatory BOOLEAN NOT NULL DEFAULT 1,
		passenger_operations BOOLEAN NOT NULL DEFAULT 1,
		freight_operations BOOLEAN NOT NULL DEFAULT 0,
		UNIQUE (schedule_id, sequence_order)
	)`,
	`CREATE TABLE IF NOT EXISTS train_positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		train_id INTEGER NOT NULL,
		schedule_id INTEGER NOT NULL REFERENCES train_schedules(id),
		current_station_id INTEGER,
		next_station_id INTEGER,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		speed_kmh REAL NOT NULL DEFAULT 0,
		heading_degrees REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'on_time',
		delay_minutes INTEGER NOT NULL DEFAULT 0,
		estimated_arrival INTEGER,
		distance_to_next_station REAL NOT NULL DEFAULT 0,
		fuel_level_percent REAL NOT NULL DEFAULT 0,
		last_updated INTEGER NOT NULL,
		UNIQUE (train_id, schedule_id)
	)`,
	`CREATE TABLE IF NOT EXISTS conflicts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conflict_type TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'medium',
		schedule_id_1 INTEGER,
		schedule_id_2 INTEGER NOT NULL,
		conflict_time_start INTEGER NOT NULL,
		conflict_time_end INTEGER NOT NULL,
		resource_id TEXT NOT NULL,
		description TEXT NOT NULL,
		detected_by_system BOOLEAN NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'detected',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conflicts_created ON conflicts(created_at)`,
}
