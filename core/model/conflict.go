package model

import "time"

// ConflictType names the contended resource kind.
type ConflictType string

const (
	ConflictTrackOverlap    ConflictType = "track_overlap"
	ConflictPlatformOverlap ConflictType = "platform_overlap"
)

// Severity grades a conflict.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ConflictStatus tracks whether a conflict was handled.
type ConflictStatus string

const (
	ConflictDetected ConflictStatus = "detected"
	ConflictResolved ConflictStatus = "resolved"
)

// Conflict is a persisted record of a detected resource clash.
// ScheduleID1 is nil when the candidate had not been inserted yet.
type Conflict struct {
	ID               int64          `json:"id"`
	Type             ConflictType   `json:"conflict_type"`
	Severity         Severity       `json:"severity"`
	ScheduleID1      *int64         `json:"schedule_id_1,omitempty"`
	ScheduleID2      int64          `json:"schedule_id_2"`
	TimeStart        time.Time      `json:"conflict_time_start"`
	TimeEnd          time.Time      `json:"conflict_time_end"`
	ResourceID       string         `json:"resource_id"`
	Description      string         `json:"description"`
	DetectedBySystem bool           `json:"detected_by_system"`
	Status           ConflictStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ConflictDescriptor is what the detector reports back to the caller for a
// single clash.
type ConflictDescriptor struct {
	ScheduleID1 *int64    `json:"schedule_id_1,omitempty"`
	ScheduleID2 int64     `json:"schedule_id_2"`
	TrainID     int64     `json:"train_id"`
	TrainNumber string    `json:"train_number"`
	Resource    string    `json:"resource"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Message     string    `json:"message"`
}
