package model

import "time"

// TimetableStatus describes the lifecycle state of a timetable.
type TimetableStatus string

const (
	TimetableActive TimetableStatus = "active"
)

// Timetable groups the schedules valid over a date range.
type Timetable struct {
	ID            int64           `json:"id"`
	Name          string          `json:"timetable_name"`
	Version       string          `json:"version"`
	EffectiveDate time.Time       `json:"effective_date"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"created_by"`
	Status        TimetableStatus `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Day truncates t to midnight UTC of its calendar day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
