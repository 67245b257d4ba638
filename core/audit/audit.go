// Package audit defines the audit trail record and the sinks that receive it.
// Records are emitted after a successful commit and never fail the caller.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/ttms/core/logger"
)

// Module is stamped on every record written by this service.
const Module = "train_schedule"

// Action names an audited mutation.
type Action string

const (
	ActionCreateTimetable     Action = "create_timetable"
	ActionCreateSchedule      Action = "create_schedule"
	ActionUpdateSchedule      Action = "update_schedule"
	ActionCancelTrain         Action = "cancel_train"
	ActionDeleteSchedule      Action = "delete_schedule"
	ActionUpdateTrainPosition Action = "update_train_position"
)

// Record is one audit trail entry.
type Record struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id"`
	Action      Action    `json:"action"`
	Module      string    `json:"module"`
	EntityTable string    `json:"table_name"`
	EntityID    int64     `json:"record_id"`
	OldValue    any       `json:"old_values,omitempty"`
	NewValue    any       `json:"new_values,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sink receives audit records.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// NopSink discards records.
type NopSink struct{}

func (NopSink) Record(context.Context, Record) error { return nil }

// Recorder stamps records and fans them out to its sinks. Sink failures are
// logged and swallowed.
type Recorder struct {
	sinks []Sink
	log   logger.Logger
	now   func() time.Time
}

// NewRecorder creates a Recorder writing to the given sinks.
func NewRecorder(log logger.Logger, sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks, log: log, now: time.Now}
}

// Emit delivers rec to every sink.
func (r *Recorder) Emit(ctx context.Context, rec Record) {
	if r == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Module == "" {
		rec.Module = Module
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now().UTC()
	}
	for _, s := range r.sinks {
		if err := safeRecord(ctx, s, rec); err != nil && r.log != nil {
			r.log.Errorf("audit %s %s/%d: %v", rec.Action, rec.EntityTable, rec.EntityID, err)
		}
	}
}

func safeRecord(ctx context.Context, s Sink, rec Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("audit sink panic: %v", p)
		}
	}()
	return s.Record(ctx, rec)
}
