// Package store defines the persistence contract for timetables, schedules,
// stops, positions and conflict history. Multi-step mutations run inside
// WithTx and are all-or-nothing.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/refdata"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStale is returned when a conditional update matched no row because
	// the row left the expected state.
	ErrStale = errors.New("row changed concurrently")
)

// TrackKey identifies a contended resource: one track on one day.
type TrackKey struct {
	Track string
	Date  time.Time
}

// SortTrackKeys orders keys by date then track and drops duplicates. Locks
// must always be acquired in this order.
func SortTrackKeys(keys []TrackKey) []TrackKey {
	out := make([]TrackKey, 0, len(keys))
	seen := make(map[TrackKey]struct{}, len(keys))
	for _, k := range keys {
		k.Date = model.Day(k.Date)
		if k.Track == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Track < out[j].Track
	})
	return out
}

// ScheduleFilter narrows ListSchedules.
type ScheduleFilter struct {
	TimetableID *int64
	Date        *time.Time
	ActiveOnly  bool
}

// PositionFilter narrows ListPositions.
type PositionFilter struct {
	ScheduleID *int64
	TrainID    *int64
}

// ConflictFilter narrows ListConflicts.
type ConflictFilter struct {
	ScheduleID *int64
	Resource   string
	Status     model.ConflictStatus
	Limit      int
}

// Reader holds the queries available outside a transaction.
type Reader interface {
	GetTimetable(ctx context.Context, id int64) (*model.Timetable, error)
	ListTimetables(ctx context.Context) ([]model.Timetable, error)
	GetSchedule(ctx context.Context, id int64) (*model.TrainSchedule, error)
	// ListSchedules returns schedules ordered by departure then priority.
	ListSchedules(ctx context.Context, f ScheduleFilter) ([]model.TrainSchedule, error)
	ListStops(ctx context.Context, scheduleID int64) ([]model.ScheduleStop, error)
	GetPosition(ctx context.Context, trainID, scheduleID int64) (*model.TrainPosition, error)
	ListPositions(ctx context.Context, f PositionFilter) ([]model.TrainPosition, error)
	ListConflicts(ctx context.Context, f ConflictFilter) ([]model.Conflict, error)
}

// Tx is the set of operations available inside a transaction. Reads made
// while a Tx is open must go through it.
type Tx interface {
	refdata.Lookup

	// LockTracks serialises writers contending for the same track and day.
	// It must be called before any overlap scan for those keys.
	LockTracks(ctx context.Context, keys ...TrackKey) error

	GetTimetable(ctx context.Context, id int64) (*model.Timetable, error)
	InsertTimetable(ctx context.Context, t *model.Timetable) (int64, error)

	GetSchedule(ctx context.Context, id int64) (*model.TrainSchedule, error)
	// ListTrackSchedules returns non-cancelled schedules on track for day,
	// skipping excludeID when set.
	ListTrackSchedules(ctx context.Context, track string, day time.Time, excludeID *int64) ([]model.TrainSchedule, error)
	InsertSchedule(ctx context.Context, s *model.TrainSchedule) (int64, error)
	InsertStops(ctx context.Context, scheduleID int64, stops []model.ScheduleStop) error
	// UpdateSchedule writes the mutable fields of an active schedule. It
	// returns ErrStale when the schedule is cancelled.
	UpdateSchedule(ctx context.Context, s *model.TrainSchedule) error
	// CancelSchedule marks an active schedule cancelled. It returns ErrStale
	// when the schedule is already cancelled.
	CancelSchedule(ctx context.Context, id int64, reason, by string, at time.Time) error
	DeleteStops(ctx context.Context, scheduleID int64) (int64, error)
	DeletePositions(ctx context.Context, scheduleID int64) (int64, error)
	DeleteSchedule(ctx context.Context, id int64) error

	InsertConflict(ctx context.Context, c *model.Conflict) (int64, error)

	// UpsertPosition writes the position keyed by (train, schedule).
	UpsertPosition(ctx context.Context, p *model.TrainPosition) error
}

// Store is the full persistence contract.
type Store interface {
	Reader
	// WithTx runs fn in a transaction. A nil return commits, any error or
	// context cancellation rolls back.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
