// Package schedule owns the train schedule lifecycle: admission with conflict
// detection, updates, cancellation and deletion.
//
// Every mutation checks the actor's permission before touching the store and
// runs in a single transaction that locks the contended track and day before
// scanning for overlaps. Audit records, notifications and events are emitted
// only after commit and never fail the operation.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/ttms/core/audit"
	"github.com/kilianp07/ttms/core/auth"
	"github.com/kilianp07/ttms/core/conflict"
	"github.com/kilianp07/ttms/core/events"
	"github.com/kilianp07/ttms/core/logger"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/monitoring"
	"github.com/kilianp07/ttms/core/notify"
	"github.com/kilianp07/ttms/core/refdata"
	"github.com/kilianp07/ttms/core/store"
	"github.com/kilianp07/ttms/internal/eventbus"
)

// Manager implements the schedule lifecycle.
type Manager struct {
	store    store.Store
	detector *conflict.Detector
	lookup   refdata.Lookup
	audit    *audit.Recorder
	notifier *notify.Dispatcher
	bus      eventbus.EventBus[events.Event]
	log      logger.Logger

	mu  sync.RWMutex
	now func() time.Time
}

// NewManager creates a Manager. The recorder, dispatcher and bus are
// optional.
func NewManager(
	st store.Store,
	det *conflict.Detector,
	lookup refdata.Lookup,
	rec *audit.Recorder,
	notifier *notify.Dispatcher,
	bus eventbus.EventBus[events.Event],
	log logger.Logger,
) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if det == nil {
		return nil, fmt.Errorf("conflict detector is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Manager{
		store:    st,
		detector: det,
		lookup:   lookup,
		audit:    rec,
		notifier: notifier,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Manager) clock() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now().UTC()
}

// AddTrainSchedule admits a new schedule and returns its id. When the
// schedule overlaps an active schedule on the same track and day the
// detected conflicts are recorded, nothing else is written and a
// ScheduleConflictError is returned.
func (m *Manager) AddTrainSchedule(ctx context.Context, actor auth.Actor, req CreateRequest) (int64, error) {
	if err := auth.Require(actor, auth.PermCreateSchedules); err != nil {
		return 0, err
	}
	if err := req.Validate(); err != nil {
		return 0, err
	}
	sched := req.schedule(m.clock())
	stops := req.stops()

	var conflicts []model.ConflictDescriptor
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetTimetable(ctx, sched.TimetableID); err != nil {
			return notFound(err, "timetable", sched.TimetableID)
		}
		if err := tx.LockTracks(ctx, trackKeys(*sched)...); err != nil {
			return fmt.Errorf("lock tracks: %w", err)
		}
		found, err := m.detector.FindConflicts(ctx, tx, conflict.CandidateOf(*sched), nil)
		if err != nil {
			return err
		}
		if len(found) > 0 {
			// Commit the conflict records only.
			conflicts = found
			return nil
		}
		id, err := tx.InsertSchedule(ctx, sched)
		if err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
		if len(stops) == 0 {
			return nil
		}
		if err := tx.InsertStops(ctx, id, stops); err != nil {
			return fmt.Errorf("insert stops: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, m.fail("add schedule", err)
	}

	if len(conflicts) > 0 {
		m.log.Warnf("schedule for train %d on track %s rejected: %d conflict(s)", sched.TrainID, sched.Track(), len(conflicts))
		m.publish(events.ScheduleEvent{
			Action:    events.ScheduleRejected,
			TrainID:   sched.TrainID,
			Track:     sched.Track(),
			Date:      sched.ScheduleDate,
			Conflicts: len(conflicts),
		})
		return 0, model.ScheduleConflictError{Conflicts: conflicts}
	}

	m.log.Infof("schedule %d added for train %d by %s", sched.ID, sched.TrainID, actor.ID)
	m.audit.Emit(ctx, audit.Record{
		ActorID:     actor.ID,
		Action:      audit.ActionCreateSchedule,
		EntityTable: "train_schedules",
		EntityID:    sched.ID,
		NewValue:    req,
	})
	m.publish(scheduleEvent(events.ScheduleCreated, *sched))
	return sched.ID, nil
}

// UpdateSchedule applies patch to an active schedule. The merged schedule is
// checked for conflicts against every other active schedule on its track.
func (m *Manager) UpdateSchedule(ctx context.Context, actor auth.Actor, id int64, patch Patch) (*model.TrainSchedule, error) {
	if err := auth.Require(actor, auth.PermEditSchedules); err != nil {
		return nil, err
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}

	var (
		before, after model.TrainSchedule
		conflicts     []model.ConflictDescriptor
	)
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return notFound(err, "schedule", id)
		}
		if cur.IsCancelled {
			return terminal(id)
		}
		before = *cur
		after = patch.Apply(before)
		if !after.DepartureTime.Before(after.ArrivalTime) {
			return model.NewValidationError("arrival_time", "must be after departure_time")
		}
		if err := tx.LockTracks(ctx, trackKeys(before, after)...); err != nil {
			return fmt.Errorf("lock tracks: %w", err)
		}
		found, err := m.detector.FindConflicts(ctx, tx, conflict.CandidateOf(after), &after.ID)
		if err != nil {
			return err
		}
		if len(found) > 0 {
			conflicts = found
			return nil
		}
		after.UpdatedAt = m.clock()
		if err := tx.UpdateSchedule(ctx, &after); err != nil {
			if errors.Is(err, store.ErrStale) {
				return terminal(id)
			}
			return fmt.Errorf("update schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, m.fail("update schedule", err)
	}

	if len(conflicts) > 0 {
		m.log.Warnf("update of schedule %d rejected: %d conflict(s)", id, len(conflicts))
		ev := scheduleEvent(events.ScheduleRejected, after)
		ev.Conflicts = len(conflicts)
		m.publish(ev)
		return nil, model.ScheduleConflictError{Conflicts: conflicts}
	}

	m.log.Infof("schedule %d updated by %s", id, actor.ID)
	m.audit.Emit(ctx, audit.Record{
		ActorID:     actor.ID,
		Action:      audit.ActionUpdateSchedule,
		EntityTable: "train_schedules",
		EntityID:    id,
		OldValue:    before,
		NewValue:    after,
	})
	m.publish(scheduleEvent(events.ScheduleUpdated, after))
	return &after, nil
}

// CancelTrain cancels an active schedule and notifies operations staff.
// Cancellation is terminal.
func (m *Manager) CancelTrain(ctx context.Context, actor auth.Actor, id int64, reason string) error {
	if err := auth.Require(actor, auth.PermCancelTrains); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.NewValidationError("reason", "is required")
	}

	var (
		before model.TrainSchedule
		at     = m.clock()
	)
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return notFound(err, "schedule", id)
		}
		if cur.IsCancelled {
			return terminal(id)
		}
		before = *cur
		if err := tx.CancelSchedule(ctx, id, reason, actor.ID, at); err != nil {
			if errors.Is(err, store.ErrStale) {
				return terminal(id)
			}
			return fmt.Errorf("cancel schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return m.fail("cancel train", err)
	}

	after := before
	after.IsCancelled = true
	after.CancellationReason = &reason
	after.CancelledBy = &actor.ID
	after.CancelledAt = &at
	after.UpdatedAt = at

	m.log.Infof("schedule %d cancelled by %s: %s", id, actor.ID, reason)
	m.audit.Emit(ctx, audit.Record{
		ActorID:     actor.ID,
		Action:      audit.ActionCancelTrain,
		EntityTable: "train_schedules",
		EntityID:    id,
		OldValue:    before,
		NewValue:    after,
	})
	number := refdata.TrainNumber(ctx, m.lookup, before.TrainID)
	m.notifier.Dispatch(ctx, notify.CancellationIntent(number, before.DepartureTime, reason))
	m.publish(scheduleEvent(events.ScheduleCancelled, after))
	m.publish(events.AlertEvent{Kind: events.AlertCancellation, TrainID: before.TrainID, ScheduleID: id, Time: at})
	return nil
}

// DeleteSchedule removes a schedule together with its stops and positions.
func (m *Manager) DeleteSchedule(ctx context.Context, actor auth.Actor, id int64) error {
	if err := auth.Require(actor, auth.PermDeleteSchedules); err != nil {
		return err
	}

	var (
		before           model.TrainSchedule
		stops, positions int64
	)
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return notFound(err, "schedule", id)
		}
		before = *cur
		if err := tx.LockTracks(ctx, trackKeys(before)...); err != nil {
			return fmt.Errorf("lock tracks: %w", err)
		}
		if stops, err = tx.DeleteStops(ctx, id); err != nil {
			return fmt.Errorf("delete stops: %w", err)
		}
		if positions, err = tx.DeletePositions(ctx, id); err != nil {
			return fmt.Errorf("delete positions: %w", err)
		}
		if err := tx.DeleteSchedule(ctx, id); err != nil {
			return notFound(err, "schedule", id)
		}
		return nil
	})
	if err != nil {
		return m.fail("delete schedule", err)
	}

	m.log.Infof("schedule %d deleted by %s (%d stops, %d positions)", id, actor.ID, stops, positions)
	m.audit.Emit(ctx, audit.Record{
		ActorID:     actor.ID,
		Action:      audit.ActionDeleteSchedule,
		EntityTable: "train_schedules",
		EntityID:    id,
		OldValue:    before,
	})
	m.publish(scheduleEvent(events.ScheduleDeleted, before))
	return nil
}

func (m *Manager) publish(ev events.Event) {
	if m.bus == nil {
		return
	}
	switch e := ev.(type) {
	case events.ScheduleEvent:
		if e.Time.IsZero() {
			e.Time = m.clock()
		}
		ev = e
	}
	m.bus.Publish(ev)
}

// fail passes domain errors through and wraps everything else as a
// StoreError.
func (m *Manager) fail(op string, err error) error {
	if model.IsDomainError(err) {
		return err
	}
	monitoring.CaptureException(err, monitoring.Op(op).With("module", "schedule"))
	m.log.Errorf("%s: %v", op, err)
	return model.StoreError{Op: op, Err: err}
}

func scheduleEvent(action events.ScheduleAction, s model.TrainSchedule) events.ScheduleEvent {
	return events.ScheduleEvent{
		Action:     action,
		ScheduleID: s.ID,
		TrainID:    s.TrainID,
		Track:      s.Track(),
		Date:       s.ScheduleDate,
	}
}

func trackKeys(ss ...model.TrainSchedule) []store.TrackKey {
	keys := make([]store.TrackKey, 0, len(ss))
	for _, s := range ss {
		if t := s.Track(); t != "" {
			keys = append(keys, store.TrackKey{Track: t, Date: s.ScheduleDate})
		}
	}
	return keys
}

func notFound(err error, entity string, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return model.NewNotFoundError(entity, id)
	}
	return err
}

func terminal(id int64) error {
	return model.AlreadyTerminalError{Entity: "schedule", ID: id, State: string(model.ScheduleCancelled)}
}
