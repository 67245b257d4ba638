package main

import (
	"math"
	"math/rand"
	"time"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Run is one simulated train run between two stations.
type Run struct {
	TrainID       int64     `json:"train_id"`
	ScheduleID    int64     `json:"schedule_id"`
	From          Point     `json:"from"`
	To            Point     `json:"to"`
	FromStationID *int64    `json:"from_station_id,omitempty"`
	ToStationID   *int64    `json:"to_station_id,omitempty"`
	Departure     time.Time `json:"departure"`
	Arrival       time.Time `json:"arrival"`
}

// Sample is the payload published for one position report.
type Sample struct {
	TrainID               int64   `json:"train_id"`
	ScheduleID            int64   `json:"schedule_id"`
	CurrentStationID      *int64  `json:"current_station_id,omitempty"`
	NextStationID         *int64  `json:"next_station_id,omitempty"`
	Latitude              float64 `json:"latitude"`
	Longitude             float64 `json:"longitude"`
	SpeedKmh              float64 `json:"speed_kmh"`
	HeadingDegrees        float64 `json:"heading_degrees"`
	Status                string  `json:"status"`
	DelayMinutes          int     `json:"delay_minutes"`
	EstimatedArrival      int64   `json:"estimated_arrival"`
	DistanceToNextStation float64 `json:"distance_to_next_station"`
	FuelLevelPercent      float64 `json:"fuel_level_percent"`
}

// SimulatedTrain moves linearly along its run and accumulates a random
// delay bounded by maxDrift minutes per sample.
type SimulatedTrain struct {
	Run
	delay    int
	maxDrift int
	rng      *rand.Rand
}

// NewSimulatedTrain creates a train with its own random source.
func NewSimulatedTrain(r Run, maxDrift int, seed int64) *SimulatedTrain {
	return &SimulatedTrain{Run: r, maxDrift: maxDrift, rng: rand.New(rand.NewSource(seed))}
}

// Done reports whether the train has reached its destination at now.
func (t *SimulatedTrain) Done(now time.Time) bool {
	return t.progress(now) >= 1
}

func (t *SimulatedTrain) progress(now time.Time) float64 {
	total := t.Arrival.Sub(t.Departure)
	if total <= 0 {
		return 1
	}
	elapsed := now.Sub(t.Departure.Add(time.Duration(t.delay) * time.Minute))
	return math.Max(0, math.Min(1, float64(elapsed)/float64(total)))
}

// Sample advances the delay and returns the position at now.
func (t *SimulatedTrain) Sample(now time.Time) Sample {
	if t.maxDrift > 0 && !t.Done(now) {
		t.delay += t.rng.Intn(2*t.maxDrift+1) - t.maxDrift
		if t.delay < 0 {
			t.delay = 0
		}
	}
	p := t.progress(now)
	total := haversineKm(t.From, t.To)
	s := Sample{
		TrainID:               t.TrainID,
		ScheduleID:            t.ScheduleID,
		Latitude:              t.From.Lat + (t.To.Lat-t.From.Lat)*p,
		Longitude:             t.From.Lon + (t.To.Lon-t.From.Lon)*p,
		HeadingDegrees:        bearing(t.From, t.To),
		DelayMinutes:          t.delay,
		EstimatedArrival:      t.Arrival.Add(time.Duration(t.delay) * time.Minute).Unix(),
		DistanceToNextStation: math.Round(total*(1-p)*10) / 10,
		FuelLevelPercent:      math.Round((100-40*p)*10) / 10,
		NextStationID:         t.ToStationID,
	}
	switch {
	case p <= 0:
		s.Status = "stopped"
		s.CurrentStationID = t.FromStationID
	case p >= 1:
		s.Status = "stopped"
		s.CurrentStationID = t.ToStationID
		s.NextStationID = nil
	default:
		s.Status = "on_time"
		s.SpeedKmh = math.Round(total/t.Arrival.Sub(t.Departure).Hours()*10) / 10
	}
	if s.DelayMinutes > 0 {
		s.Status = "delayed"
	}
	return s
}

const earthRadiusKm = 6371.0

func haversineKm(a, b Point) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// bearing returns the initial heading from a to b in [0, 360).
func bearing(a, b Point) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x)*180/math.Pi + 360
	return math.Mod(math.Round(deg*10)/10, 360)
}
