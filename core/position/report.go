package position

import (
	"fmt"
	"time"

	"github.com/kilianp07/ttms/core/model"
)

// Report is a live position sample for one train on one schedule.
type Report struct {
	TrainID               int64                `json:"train_id"`
	ScheduleID            int64                `json:"schedule_id"`
	CurrentStationID      *int64               `json:"current_station_id,omitempty"`
	NextStationID         *int64               `json:"next_station_id,omitempty"`
	Latitude              float64              `json:"latitude"`
	Longitude             float64              `json:"longitude"`
	SpeedKmh              float64              `json:"speed_kmh"`
	HeadingDegrees        float64              `json:"heading_degrees"`
	Status                model.PositionStatus `json:"status"`
	DelayMinutes          int                  `json:"delay_minutes"`
	EstimatedArrival      *time.Time           `json:"estimated_arrival,omitempty"`
	DistanceToNextStation float64              `json:"distance_to_next_station"`
	FuelLevelPercent      float64              `json:"fuel_level_percent"`
}

// Validate checks ids, the status and coordinate ranges.
func (r Report) Validate() error {
	switch {
	case r.TrainID <= 0:
		return model.NewValidationError("train_id", "is required")
	case r.ScheduleID <= 0:
		return model.NewValidationError("schedule_id", "is required")
	case !r.Status.Valid():
		return model.NewValidationError("status", fmt.Sprintf("unknown status %q", r.Status))
	case r.Latitude < -90 || r.Latitude > 90:
		return model.NewValidationError("latitude", "must be within [-90, 90]")
	case r.Longitude < -180 || r.Longitude > 180:
		return model.NewValidationError("longitude", "must be within [-180, 180]")
	case r.SpeedKmh < 0:
		return model.NewValidationError("speed_kmh", "must not be negative")
	case r.HeadingDegrees < 0 || r.HeadingDegrees >= 360:
		return model.NewValidationError("heading_degrees", "must be within [0, 360)")
	case r.FuelLevelPercent < 0 || r.FuelLevelPercent > 100:
		return model.NewValidationError("fuel_level_percent", "must be within [0, 100]")
	case r.DistanceToNextStation < 0:
		return model.NewValidationError("distance_to_next_station", "must not be negative")
	}
	return nil
}

// position builds the row to upsert. Instants are cut to whole seconds, the
// resolution the store keeps, so the returned value matches later reads.
func (r Report) position(now time.Time) *model.TrainPosition {
	p := &model.TrainPosition{
		TrainID:               r.TrainID,
		ScheduleID:            r.ScheduleID,
		CurrentStationID:      r.CurrentStationID,
		NextStationID:         r.NextStationID,
		Latitude:              r.Latitude,
		Longitude:             r.Longitude,
		SpeedKmh:              r.SpeedKmh,
		HeadingDegrees:        r.HeadingDegrees,
		Status:                r.Status,
		DelayMinutes:          r.DelayMinutes,
		DistanceToNextStation: r.DistanceToNextStation,
		FuelLevelPercent:      r.FuelLevelPercent,
		LastUpdated:           now.UTC().Truncate(time.Second),
	}
	if r.EstimatedArrival != nil {
		eta := r.EstimatedArrival.UTC().Truncate(time.Second)
		p.EstimatedArrival = &eta
	}
	return p
}
