package model

import (
	"fmt"
	"strings"
	"time"
)

// OperatingDays is a seven bit weekday mask. Bit 0 is Monday.
type OperatingDays uint8

// EveryDay runs the schedule on all seven weekdays.
const EveryDay OperatingDays = 0x7F

// Valid reports whether only the seven weekday bits are set.
func (d OperatingDays) Valid() bool { return d&^EveryDay == 0 }

// Has reports whether the mask includes the given weekday.
func (d OperatingDays) Has(w time.Weekday) bool {
	bit := (int(w) + 6) % 7
	return d&(1<<bit) != 0
}

// String renders the mask Monday first, e.g. "1111100".
func (d OperatingDays) String() string {
	var b strings.Builder
	for i := 0; i < 7; i++ {
		if d&(1<<i) != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// ParseOperatingDays parses the seven character form produced by String.
func ParseOperatingDays(s string) (OperatingDays, error) {
	if len(s) != 7 {
		return 0, fmt.Errorf("operating days must have 7 characters, got %q", s)
	}
	var d OperatingDays
	for i, c := range s {
		switch c {
		case '1':
			d |= 1 << i
		case '0':
		default:
			return 0, fmt.Errorf("operating days: unexpected %q", c)
		}
	}
	return d, nil
}

// ScheduleState is derived from the cancellation flag.
type ScheduleState string

const (
	ScheduleActive    ScheduleState = "active"
	ScheduleCancelled ScheduleState = "cancelled"
)

// TrainSchedule is one run of a train on a route within a timetable.
type TrainSchedule struct {
	ID                 int64         `json:"id"`
	TimetableID        int64         `json:"timetable_id"`
	TrainID            int64         `json:"train_id"`
	RouteID            int64         `json:"route_id"`
	ScheduleDate       time.Time     `json:"schedule_date"`
	DepartureTime      time.Time     `json:"departure_time"`
	ArrivalTime        time.Time     `json:"arrival_time"`
	OperatingDays      OperatingDays `json:"operating_days"`
	TrackAssignment    *string       `json:"track_assignment,omitempty"`
	PlatformAssignment *string       `json:"platform_assignment,omitempty"`
	CrewAssignment     *string       `json:"crew_assignment,omitempty"`
	PriorityLevel      int           `json:"priority_level"`
	IsTemporary        bool          `json:"is_temporary"`
	IsCancelled        bool          `json:"is_cancelled"`
	CancellationReason *string       `json:"cancellation_reason,omitempty"`
	CancelledBy        *string       `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// State returns the lifecycle state of the schedule.
func (s TrainSchedule) State() ScheduleState {
	if s.IsCancelled {
		return ScheduleCancelled
	}
	return ScheduleActive
}

// Track returns the assigned track or "" when none is set.
func (s TrainSchedule) Track() string {
	if s.TrackAssignment == nil {
		return ""
	}
	return strings.TrimSpace(*s.TrackAssignment)
}

// StopType classifies a stop along a schedule.
type StopType string

const (
	StopOrigin       StopType = "origin"
	StopIntermediate StopType = "intermediate"
	StopDestination  StopType = "destination"
	StopTechnical    StopType = "technical"
)

// Valid reports whether t is a known stop type.
func (t StopType) Valid() bool {
	switch t {
	case StopOrigin, StopIntermediate, StopDestination, StopTechnical:
		return true
	}
	return false
}

// ScheduleStop is an ordered station visit of a schedule.
type ScheduleStop struct {
	ID                  int64      `json:"id"`
	ScheduleID          int64      `json:"schedule_id"`
	StationID           int64      `json:"station_id"`
	ArrivalTime         *time.Time `json:"arrival_time,omitempty"`
	DepartureTime       *time.Time `json:"departure_time,omitempty"`
	Platform            string     `json:"platform,omitempty"`
	Track               string     `json:"track,omitempty"`
	StopDuration        int        `json:"stop_duration"`
	StopType            StopType   `json:"stop_type"`
	SequenceOrder       int        `json:"sequence_order"`
	DistanceFromOrigin  float64    `json:"distance_from_origin"`
	IsMandatory         bool       `json:"is_mandatory"`
	PassengerOperations bool       `json:"passenger_operations"`
	FreightOperations   bool       `json:"freight_operations"`
}
