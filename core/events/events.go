package events

import (
	"time"

	"github.com/kilianp07/ttms/core/model"
)

// Event is any value published on the bus.
type Event interface {
	EventTime() time.Time
}

// ScheduleAction describes what happened to a schedule.
type ScheduleAction string

const (
	ScheduleCreated   ScheduleAction = "created"
	ScheduleRejected  ScheduleAction = "rejected"
	ScheduleUpdated   ScheduleAction = "updated"
	ScheduleCancelled ScheduleAction = "cancelled"
	ScheduleDeleted   ScheduleAction = "deleted"
)

// ScheduleEvent reports a committed schedule lifecycle change. Rejected
// admissions carry ScheduleID 0 and the number of conflicts recorded.
type ScheduleEvent struct {
	Action     ScheduleAction
	ScheduleID int64
	TrainID    int64
	Track      string
	Date       time.Time
	Conflicts  int
	Time       time.Time
}

func (e ScheduleEvent) EventTime() time.Time { return e.Time }

// PositionEvent carries a stored position.
type PositionEvent struct {
	Position model.TrainPosition
	Time     time.Time
}

func (e PositionEvent) EventTime() time.Time { return e.Time }

// AlertKind names the notification that was raised.
type AlertKind string

const (
	AlertDelay        AlertKind = "delay"
	AlertCancellation AlertKind = "cancellation"
)

// AlertEvent reports an emitted notification intent.
type AlertEvent struct {
	Kind       AlertKind
	TrainID    int64
	ScheduleID int64
	Time       time.Time
}

func (e AlertEvent) EventTime() time.Time { return e.Time }
