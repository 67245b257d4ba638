// Package notify builds notification intents and hands them to delivery
// sinks. Recipient resolution and delivery happen outside the service.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/ttms/core/auth"
	"github.com/kilianp07/ttms/core/logger"
)

// Type is the presentation class of a notification.
type Type string

const (
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeSuccess Type = "success"
)

// Priority orders notifications for delivery.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// RecipientRule selects recipients by role. Resolution into users is done by
// the delivery side.
type RecipientRule struct {
	Roles      []auth.Role `json:"roles"`
	ActiveOnly bool        `json:"active_only"`
}

// OperationsStaff targets active operators, schedulers and administrators.
func OperationsStaff() RecipientRule {
	return RecipientRule{
		Roles:      []auth.Role{auth.RoleOperator, auth.RoleScheduler, auth.RoleAdministrator},
		ActiveOnly: true,
	}
}

// Intent is a notification waiting to be delivered.
type Intent struct {
	ID         string        `json:"id"`
	Recipients RecipientRule `json:"recipients"`
	Title      string        `json:"title"`
	Message    string        `json:"message"`
	Type       Type          `json:"type"`
	Priority   Priority      `json:"priority"`
	CreatedAt  time.Time     `json:"created_at"`
}

// DepartureLayout formats departure instants in notification messages.
const DepartureLayout = "2006-01-02 15:04"

// CancellationIntent announces a cancelled train.
func CancellationIntent(trainNumber string, departure time.Time, reason string) Intent {
	return Intent{
		ID:         uuid.NewString(),
		Recipients: OperationsStaff(),
		Title:      "Train Cancellation",
		Message: fmt.Sprintf("Train %s scheduled for %s has been cancelled. Reason: %s",
			trainNumber, departure.UTC().Format(DepartureLayout), reason),
		Type:      TypeWarning,
		Priority:  PriorityHigh,
		CreatedAt: time.Now().UTC(),
	}
}

// DelayIntent announces a train running late.
func DelayIntent(trainNumber string, delayMinutes int) Intent {
	return Intent{
		ID:         uuid.NewString(),
		Recipients: OperationsStaff(),
		Title:      "Train Delay Alert",
		Message:    fmt.Sprintf("Train %s is delayed by %d minutes", trainNumber, delayMinutes),
		Type:       TypeWarning,
		Priority:   PriorityNormal,
		CreatedAt:  time.Now().UTC(),
	}
}

// Emitter delivers an intent to one channel.
type Emitter interface {
	Notify(ctx context.Context, in Intent) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, in Intent) error

func (f EmitterFunc) Notify(ctx context.Context, in Intent) error { return f(ctx, in) }

// Dispatcher fans intents out to every emitter. Failures are logged and never
// reach the caller.
type Dispatcher struct {
	emitters []Emitter
	log      logger.Logger
}

// NewDispatcher creates a Dispatcher over the given emitters.
func NewDispatcher(log logger.Logger, emitters ...Emitter) *Dispatcher {
	return &Dispatcher{emitters: emitters, log: log}
}

// Dispatch delivers in to all emitters.
func (d *Dispatcher) Dispatch(ctx context.Context, in Intent) {
	if d == nil {
		return
	}
	for _, e := range d.emitters {
		if err := safeNotify(ctx, e, in); err != nil && d.log != nil {
			d.log.Errorf("notify %q: %v", in.Title, err)
		}
	}
}

func safeNotify(ctx context.Context, e Emitter, in Intent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("emitter panic: %v", p)
		}
	}()
	return e.Notify(ctx, in)
}
