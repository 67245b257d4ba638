// Package timetable creates and reads timetables. Timetables are append-only.
package timetable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/ttms/core/audit"
	"github.com/kilianp07/ttms/core/auth"
	"github.com/kilianp07/ttms/core/logger"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/monitoring"
	"github.com/kilianp07/ttms/core/store"
)

// CreateRequest is the payload for Create.
type CreateRequest struct {
	Name          string    `json:"timetable_name"`
	Version       string    `json:"version"`
	EffectiveDate time.Time `json:"effective_date"`
	ExpiryDate    time.Time `json:"expiry_date"`
	Notes         string    `json:"notes,omitempty"`
}

// Validate checks required fields and the date range.
func (r CreateRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return model.NewValidationError("timetable_name", "is required")
	case strings.TrimSpace(r.Version) == "":
		return model.NewValidationError("version", "is required")
	case r.EffectiveDate.IsZero():
		return model.NewValidationError("effective_date", "is required")
	case r.ExpiryDate.IsZero():
		return model.NewValidationError("expiry_date", "is required")
	case !model.Day(r.EffectiveDate).Before(model.Day(r.ExpiryDate)):
		return model.NewValidationError("expiry_date", "must be after effective_date")
	}
	return nil
}

// Manager owns timetable creation.
type Manager struct {
	store store.Store
	audit *audit.Recorder
	log   logger.Logger
	now   func() time.Time
}

// NewManager creates a Manager.
func NewManager(st store.Store, rec *audit.Recorder, log logger.Logger) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Manager{store: st, audit: rec, log: log, now: time.Now}, nil
}

// Create inserts a new active timetable and returns its id.
func (m *Manager) Create(ctx context.Context, actor auth.Actor, req CreateRequest) (int64, error) {
	if err := auth.Require(actor, auth.PermCreateSchedules); err != nil {
		return 0, err
	}
	if err := req.Validate(); err != nil {
		return 0, err
	}
	tt := model.Timetable{
		Name:          strings.TrimSpace(req.Name),
		Version:       strings.TrimSpace(req.Version),
		EffectiveDate: model.Day(req.EffectiveDate),
		ExpiryDate:    model.Day(req.ExpiryDate),
		Notes:         req.Notes,
		CreatedBy:     actor.ID,
		Status:        model.TimetableActive,
		CreatedAt:     m.now().UTC(),
	}
	var id int64
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		id, err = tx.InsertTimetable(ctx, &tt)
		return err
	})
	if err != nil {
		return 0, m.fail("create timetable", err)
	}
	m.log.Infof("timetable %d %q v%s created by %s", id, tt.Name, tt.Version, actor.ID)
	m.audit.Emit(ctx, audit.Record{
		ActorID:     actor.ID,
		Action:      audit.ActionCreateTimetable,
		EntityTable: "timetables",
		EntityID:    id,
		NewValue:    req,
	})
	return id, nil
}

// Get returns a timetable by id.
func (m *Manager) Get(ctx context.Context, id int64) (*model.Timetable, error) {
	tt, err := m.store.GetTimetable(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.NewNotFoundError("timetable", id)
	}
	if err != nil {
		return nil, m.fail("get timetable", err)
	}
	return tt, nil
}

// List returns all timetables, newest effective date first.
func (m *Manager) List(ctx context.Context) ([]model.Timetable, error) {
	tts, err := m.store.ListTimetables(ctx)
	if err != nil {
		return nil, m.fail("list timetables", err)
	}
	return tts, nil
}

func (m *Manager) fail(op string, err error) error {
	if model.IsDomainError(err) {
		return err
	}
	monitoring.CaptureException(err, monitoring.Op(op).With("module", "timetable"))
	m.log.Errorf("%s: %v", op, err)
	return model.StoreError{Op: op, Err: err}
}
