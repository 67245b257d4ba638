package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/ttms/core/model"
)

// StopRequest is one stop of a CreateRequest.
type StopRequest struct {
	StationID           int64          `json:"station_id"`
	ArrivalTime         *time.Time     `json:"arrival_time,omitempty"`
	DepartureTime       *time.Time     `json:"departure_time,omitempty"`
	Platform            string         `json:"platform,omitempty"`
	Track               string         `json:"track,omitempty"`
	StopDuration        int            `json:"stop_duration"`
	StopType            model.StopType `json:"stop_type"`
	SequenceOrder       int            `json:"sequence_order"`
	DistanceFromOrigin  float64        `json:"distance_from_origin"`
	IsMandatory         *bool          `json:"is_mandatory,omitempty"`
	PassengerOperations *bool          `json:"passenger_operations,omitempty"`
	FreightOperations   bool           `json:"freight_operations"`
}

// CreateRequest is the payload for AddTrainSchedule. ScheduleDate defaults
// to the UTC day of DepartureTime and OperatingDays to every day.
type CreateRequest struct {
	TimetableID        int64                `json:"timetable_id"`
	TrainID            int64                `json:"train_id"`
	RouteID            int64                `json:"route_id"`
	ScheduleDate       time.Time            `json:"schedule_date"`
	DepartureTime      time.Time            `json:"departure_time"`
	ArrivalTime        time.Time            `json:"arrival_time"`
	OperatingDays      *model.OperatingDays `json:"operating_days,omitempty"`
	TrackAssignment    *string              `json:"track_assignment,omitempty"`
	PlatformAssignment *string              `json:"platform_assignment,omitempty"`
	CrewAssignment     *string              `json:"crew_assignment,omitempty"`
	PriorityLevel      *int                 `json:"priority_level,omitempty"`
	IsTemporary        bool                 `json:"is_temporary"`
	Stops              []StopRequest        `json:"stops,omitempty"`
}

// Validate checks required fields, the run interval and the stop list.
func (r CreateRequest) Validate() error {
	switch {
	case r.TimetableID <= 0:
		return model.NewValidationError("timetable_id", "is required")
	case r.TrainID <= 0:
		return model.NewValidationError("train_id", "is required")
	case r.RouteID <= 0:
		return model.NewValidationError("route_id", "is required")
	case r.DepartureTime.IsZero():
		return model.NewValidationError("departure_time", "is required")
	case r.ArrivalTime.IsZero():
		return model.NewValidationError("arrival_time", "is required")
	case !stored(r.DepartureTime).Before(stored(r.ArrivalTime)):
		return model.NewValidationError("arrival_time", "must be after departure_time")
	}
	if r.OperatingDays != nil && !r.OperatingDays.Valid() {
		return model.NewValidationError("operating_days", "must be a 7 day mask")
	}
	if r.PriorityLevel != nil && *r.PriorityLevel < 1 {
		return model.NewValidationError("priority_level", "must be at least 1")
	}
	return validateStops(r.Stops)
}

func validateStops(stops []StopRequest) error {
	prev := 0
	for i, st := range stops {
		field := fmt.Sprintf("stops[%d]", i)
		if st.StationID <= 0 {
			return model.NewValidationError(field+".station_id", "is required")
		}
		if st.SequenceOrder < 1 || (i > 0 && st.SequenceOrder <= prev) {
			return model.NewValidationError(field+".sequence_order", "must be strictly increasing from 1")
		}
		prev = st.SequenceOrder
		if st.ArrivalTime != nil && st.DepartureTime != nil && st.ArrivalTime.After(*st.DepartureTime) {
			return model.NewValidationError(field+".departure_time", "must not be before arrival_time")
		}
		if st.StopType != "" && !st.StopType.Valid() {
			return model.NewValidationError(field+".stop_type", fmt.Sprintf("unknown stop type %q", st.StopType))
		}
		if st.StopDuration < 0 {
			return model.NewValidationError(field+".stop_duration", "must not be negative")
		}
	}
	return nil
}

func (r CreateRequest) schedule(now time.Time) *model.TrainSchedule {
	s := &model.TrainSchedule{
		TimetableID:        r.TimetableID,
		TrainID:            r.TrainID,
		RouteID:            r.RouteID,
		ScheduleDate:       r.ScheduleDate,
		DepartureTime:      stored(r.DepartureTime),
		ArrivalTime:        stored(r.ArrivalTime),
		OperatingDays:      model.EveryDay,
		TrackAssignment:    trimmed(r.TrackAssignment),
		PlatformAssignment: trimmed(r.PlatformAssignment),
		CrewAssignment:     trimmed(r.CrewAssignment),
		PriorityLevel:      1,
		IsTemporary:        r.IsTemporary,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if s.ScheduleDate.IsZero() {
		s.ScheduleDate = s.DepartureTime
	}
	s.ScheduleDate = model.Day(s.ScheduleDate)
	if r.OperatingDays != nil {
		s.OperatingDays = *r.OperatingDays
	}
	if r.PriorityLevel != nil {
		s.PriorityLevel = *r.PriorityLevel
	}
	return s
}

func (r CreateRequest) stops() []model.ScheduleStop {
	out := make([]model.ScheduleStop, 0, len(r.Stops))
	for _, st := range r.Stops {
		stop := model.ScheduleStop{
			StationID:           st.StationID,
			ArrivalTime:         utcPtr(st.ArrivalTime),
			DepartureTime:       utcPtr(st.DepartureTime),
			Platform:            st.Platform,
			Track:               st.Track,
			StopDuration:        st.StopDuration,
			StopType:            st.StopType,
			SequenceOrder:       st.SequenceOrder,
			DistanceFromOrigin:  st.DistanceFromOrigin,
			IsMandatory:         true,
			PassengerOperations: true,
			FreightOperations:   st.FreightOperations,
		}
		if stop.StopType == "" {
			stop.StopType = model.StopIntermediate
		}
		if st.IsMandatory != nil {
			stop.IsMandatory = *st.IsMandatory
		}
		if st.PassengerOperations != nil {
			stop.PassengerOperations = *st.PassengerOperations
		}
		out = append(out, stop)
	}
	return out
}

// Patch lists the schedule fields UpdateSchedule may change. Nil fields are
// left untouched. An empty TrackAssignment, PlatformAssignment or
// CrewAssignment clears the value.
type Patch struct {
	DepartureTime      *time.Time           `json:"departure_time,omitempty"`
	ArrivalTime        *time.Time           `json:"arrival_time,omitempty"`
	OperatingDays      *model.OperatingDays `json:"operating_days,omitempty"`
	TrackAssignment    *string              `json:"track_assignment,omitempty"`
	PlatformAssignment *string              `json:"platform_assignment,omitempty"`
	CrewAssignment     *string              `json:"crew_assignment,omitempty"`
	PriorityLevel      *int                 `json:"priority_level,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.DepartureTime == nil && p.ArrivalTime == nil && p.OperatingDays == nil &&
		p.TrackAssignment == nil && p.PlatformAssignment == nil && p.CrewAssignment == nil &&
		p.PriorityLevel == nil
}

func (p Patch) validate() error {
	if p.IsEmpty() {
		return model.NewValidationError("patch", "no fields to update")
	}
	if p.OperatingDays != nil && !p.OperatingDays.Valid() {
		return model.NewValidationError("operating_days", "must be a 7 day mask")
	}
	if p.PriorityLevel != nil && *p.PriorityLevel < 1 {
		return model.NewValidationError("priority_level", "must be at least 1")
	}
	return nil
}

// Apply returns a copy of s with the patch merged in.
func (p Patch) Apply(s model.TrainSchedule) model.TrainSchedule {
	if p.DepartureTime != nil {
		s.DepartureTime = stored(*p.DepartureTime)
	}
	if p.ArrivalTime != nil {
		s.ArrivalTime = stored(*p.ArrivalTime)
	}
	if p.OperatingDays != nil {
		s.OperatingDays = *p.OperatingDays
	}
	if p.TrackAssignment != nil {
		s.TrackAssignment = trimmed(p.TrackAssignment)
	}
	if p.PlatformAssignment != nil {
		s.PlatformAssignment = trimmed(p.PlatformAssignment)
	}
	if p.CrewAssignment != nil {
		s.CrewAssignment = trimmed(p.CrewAssignment)
	}
	if p.PriorityLevel != nil {
		s.PriorityLevel = *p.PriorityLevel
	}
	return s
}

// stored brings t to the resolution the store keeps, whole UTC seconds, so
// conflicts are detected on the same instants that get persisted.
func stored(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

// trimmed returns nil for nil or blank values.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := stored(*t)
	return &v
}
