// Package position records live train positions and raises delay alerts.
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/ttms/core/audit"
	"github.com/kilianp07/ttms/core/auth"
	"github.com/kilianp07/ttms/core/events"
	"github.com/kilianp07/ttms/core/logger"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/monitoring"
	"github.com/kilianp07/ttms/core/notify"
	"github.com/kilianp07/ttms/core/refdata"
	"github.com/kilianp07/ttms/core/store"
	"github.com/kilianp07/ttms/internal/eventbus"
)

// DefaultDelayThreshold is the delay in minutes above which an alert is raised.
const DefaultDelayThreshold = 30

const stripes = 64

// Config tunes the tracker.
type Config struct {
	DelayThresholdMinutes int `json:"delay_threshold_minutes" mapstructure:"delay_threshold_minutes"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.DelayThresholdMinutes <= 0 {
		c.DelayThresholdMinutes = DefaultDelayThreshold
	}
}

// Tracker upserts position reports. Reports for the same train and schedule
// are applied one at a time, other pairs proceed in parallel.
type Tracker struct {
	store    store.Store
	lookup   refdata.Lookup
	audit    *audit.Recorder
	notifier *notify.Dispatcher
	bus      eventbus.EventBus[events.Event]
	cfg      Config
	log      logger.Logger
	now      func() time.Time

	locks [stripes]sync.Mutex
}

// NewTracker creates a Tracker. The recorder, dispatcher and bus are optional.
func NewTracker(
	st store.Store,
	lookup refdata.Lookup,
	rec *audit.Recorder,
	notifier *notify.Dispatcher,
	bus eventbus.EventBus[events.Event],
	cfg Config,
	log logger.Logger,
) (*Tracker, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	cfg.SetDefaults()
	return &Tracker{
		store:    st,
		lookup:   lookup,
		audit:    rec,
		notifier: notifier,
		bus:      bus,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}, nil
}

// Threshold returns the configured delay alert threshold in minutes.
func (t *Tracker) Threshold() int { return t.cfg.DelayThresholdMinutes }

func (t *Tracker) stripe(trainID, scheduleID int64) *sync.Mutex {
	h := uint64(trainID)*0x9E3779B97F4A7C15 ^ uint64(scheduleID)
	return &t.locks[h%stripes]
}

// ReportPosition stores r as the latest position of its train on its
// schedule. A delay strictly above the threshold notifies operations staff.
func (t *Tracker) ReportPosition(ctx context.Context, actor auth.Actor, r Report) (*model.TrainPosition, error) {
	if err := auth.Require(actor, auth.PermUpdateTrainStatus); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	mu := t.stripe(r.TrainID, r.ScheduleID)
	mu.Lock()
	defer mu.Unlock()

	p := r.position(t.now().UTC())
	err := t.store.WithTx(ctx, func(tx store.Tx) error {
		s, err := tx.GetSchedule(ctx, r.ScheduleID)
		if errors.Is(err, store.ErrNotFound) {
			return model.NewNotFoundError("schedule", r.ScheduleID)
		}
		if err != nil {
			return err
		}
		if s.TrainID != r.TrainID {
			return model.NewValidationError("train_id",
				fmt.Sprintf("schedule %d belongs to train %d", s.ID, s.TrainID))
		}
		return tx.UpsertPosition(ctx, p)
	})
	if err != nil {
		if model.IsDomainError(err) {
			return nil, err
		}
		monitoring.CaptureException(err, monitoring.Op("report position").Train(r.TrainID).Schedule(r.ScheduleID))
		t.log.Errorf("report position train=%d schedule=%d: %v", r.TrainID, r.ScheduleID, err)
		return nil, model.StoreError{Op: "report position", Err: err}
	}

	t.log.Debugw("position updated", map[string]any{
		"train_id":    p.TrainID,
		"schedule_id": p.ScheduleID,
		"status":      string(p.Status),
		"delay":       p.DelayMinutes,
	})
	t.audit.Emit(ctx, audit.Record{
		ActorID:     actor.ID,
		Action:      audit.ActionUpdateTrainPosition,
		EntityTable: "train_positions",
		EntityID:    p.ID,
		NewValue:    r,
	})
	if p.DelayMinutes > t.cfg.DelayThresholdMinutes {
		number := refdata.TrainNumber(ctx, t.lookup, p.TrainID)
		t.log.Warnf("train %s delayed by %d minutes", number, p.DelayMinutes)
		t.notifier.Dispatch(ctx, notify.DelayIntent(number, p.DelayMinutes))
		t.publish(events.AlertEvent{Kind: events.AlertDelay, TrainID: p.TrainID, ScheduleID: p.ScheduleID, Time: p.LastUpdated})
	}
	t.publish(events.PositionEvent{Position: *p, Time: p.LastUpdated})
	return p, nil
}

func (t *Tracker) publish(ev events.Event) {
	if t.bus != nil {
		t.bus.Publish(ev)
	}
}

// Get returns the latest position of a train on a schedule.
func (t *Tracker) Get(ctx context.Context, trainID, scheduleID int64) (*model.TrainPosition, error) {
	p, err := t.store.GetPosition(ctx, trainID, scheduleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.NewNotFoundError("train_position", scheduleID)
	}
	if err != nil {
		return nil, model.StoreError{Op: "get position", Err: err}
	}
	return p, nil
}

// List returns stored positions matching f.
func (t *Tracker) List(ctx context.Context, f store.PositionFilter) ([]model.TrainPosition, error) {
	out, err := t.store.ListPositions(ctx, f)
	if err != nil {
		return nil, model.StoreError{Op: "list positions", Err: err}
	}
	return out, nil
}
