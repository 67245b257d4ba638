package schedule

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/refdata"
	"github.com/kilianp07/ttms/core/store"
)

// View is a schedule enriched with reference data and its live position.
// Fields that cannot be resolved are left blank.
type View struct {
	model.TrainSchedule
	State           model.ScheduleState  `json:"state"`
	TrainNumber     string               `json:"train_number"`
	TrainName       string               `json:"train_name"`
	TrainType       string               `json:"train_type"`
	TypeColor       string               `json:"color_code,omitempty"`
	RouteCode       string               `json:"route_code"`
	RouteName       string               `json:"route_name"`
	Origin          string               `json:"origin_station"`
	Destination     string               `json:"destination_station"`
	PositionStatus  model.PositionStatus `json:"position_status,omitempty"`
	DelayMinutes    int                  `json:"delay_minutes"`
	PositionUpdated *time.Time           `json:"position_updated,omitempty"`
}

// Filter narrows ListActive. TrainType matches the type code and Status the
// live position status.
type Filter struct {
	TimetableID *int64
	Date        *time.Time
	TrainType   string
	Status      model.PositionStatus
}

// Get returns the enriched view of one schedule.
func (m *Manager) Get(ctx context.Context, id int64) (View, error) {
	s, err := m.store.GetSchedule(ctx, id)
	if err != nil {
		return View{}, m.fail("get schedule", notFound(err, "schedule", id))
	}
	return m.view(ctx, *s), nil
}

// ListActive returns non-cancelled schedules ordered by departure then
// priority.
func (m *Manager) ListActive(ctx context.Context, f Filter) ([]View, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, model.NewValidationError("status", "unknown position status "+string(f.Status))
	}
	rows, err := m.store.ListSchedules(ctx, store.ScheduleFilter{
		TimetableID: f.TimetableID,
		Date:        f.Date,
		ActiveOnly:  true,
	})
	if err != nil {
		return nil, m.fail("list schedules", err)
	}
	out := make([]View, 0, len(rows))
	for _, s := range rows {
		v := m.view(ctx, s)
		if f.TrainType != "" && !strings.EqualFold(v.TrainType, f.TrainType) {
			continue
		}
		if f.Status != "" && v.PositionStatus != f.Status {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Stops returns the stops of a schedule in sequence order.
func (m *Manager) Stops(ctx context.Context, id int64) ([]model.ScheduleStop, error) {
	if _, err := m.store.GetSchedule(ctx, id); err != nil {
		return nil, m.fail("list stops", notFound(err, "schedule", id))
	}
	stops, err := m.store.ListStops(ctx, id)
	if err != nil {
		return nil, m.fail("list stops", err)
	}
	return stops, nil
}

// Conflicts returns recorded conflicts, newest first.
func (m *Manager) Conflicts(ctx context.Context, f store.ConflictFilter) ([]model.Conflict, error) {
	out, err := m.store.ListConflicts(ctx, f)
	if err != nil {
		return nil, m.fail("list conflicts", err)
	}
	return out, nil
}

func (m *Manager) view(ctx context.Context, s model.TrainSchedule) View {
	v := View{TrainSchedule: s, State: s.State()}
	if m.lookup != nil {
		if t, err := m.lookup.Train(ctx, s.TrainID); err == nil {
			v.TrainNumber = t.Number
			v.TrainName = t.Name
			v.TrainType = t.Type.Code
			v.TypeColor = t.Type.ColorCode
		} else if !errors.Is(err, refdata.ErrUnknown) {
			m.log.Warnf("lookup train %d: %v", s.TrainID, err)
		}
		if r, err := m.lookup.Route(ctx, s.RouteID); err == nil {
			v.RouteCode = r.Code
			v.RouteName = r.Name
			v.Origin = r.Origin.Name
			v.Destination = r.Destination.Name
		} else if !errors.Is(err, refdata.ErrUnknown) {
			m.log.Warnf("lookup route %d: %v", s.RouteID, err)
		}
	}
	if p, err := m.store.GetPosition(ctx, s.TrainID, s.ID); err == nil {
		v.PositionStatus = p.Status
		v.DelayMinutes = p.DelayMinutes
		updated := p.LastUpdated
		v.PositionUpdated = &updated
	} else if !errors.Is(err, store.ErrNotFound) {
		m.log.Warnf("position for schedule %d: %v", s.ID, err)
	}
	return v
}
