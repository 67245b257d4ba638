package model

import "time"

// PositionStatus is the running state reported for a train.
type PositionStatus string

const (
	StatusOnTime    PositionStatus = "on_time"
	StatusDelayed   PositionStatus = "delayed"
	StatusEarly     PositionStatus = "early"
	StatusStopped   PositionStatus = "stopped"
	StatusCancelled PositionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s PositionStatus) Valid() bool {
	switch s {
	case StatusOnTime, StatusDelayed, StatusEarly, StatusStopped, StatusCancelled:
		return true
	}
	return false
}

// TrainPosition is the latest known position of a train on a schedule.
// At most one exists per (TrainID, ScheduleID).
type TrainPosition struct {
	ID                    int64          `json:"id"`
	TrainID               int64          `json:"train_id"`
	ScheduleID            int64          `json:"schedule_id"`
	CurrentStationID      *int64         `json:"current_station_id,omitempty"`
	NextStationID         *int64         `json:"next_station_id,omitempty"`
	Latitude              float64        `json:"latitude"`
	Longitude             float64        `json:"longitude"`
	SpeedKmh              float64        `json:"speed_kmh"`
	HeadingDegrees        float64        `json:"heading_degrees"`
	Status                PositionStatus `json:"status"`
	DelayMinutes          int            `json:"delay_minutes"`
	EstimatedArrival      *time.Time     `json:"estimated_arrival,omitempty"`
	DistanceToNextStation float64        `json:"distance_to_next_station"`
	FuelLevelPercent      float64        `json:"fuel_level_percent"`
	LastUpdated           time.Time      `json:"last_updated"`
}
