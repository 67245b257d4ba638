// Package refdata exposes read-only reference lookups for trains, routes and
// stations. Schedules reference these by id only.
package refdata

import (
	"context"
	"errors"
	"strconv"
)

// ErrUnknown is returned when a reference id has no entry.
var ErrUnknown = errors.New("unknown reference")

// TrainType classifies trains.
type TrainType struct {
	ID        int64  `json:"id" yaml:"id"`
	Code      string `json:"type_code" yaml:"code"`
	Name      string `json:"type_name" yaml:"name"`
	ColorCode string `json:"color_code" yaml:"color"`
}

// Train is rolling stock identified by its public number.
type Train struct {
	ID     int64     `json:"id" yaml:"id"`
	Number string    `json:"train_number" yaml:"number"`
	Name   string    `json:"train_name" yaml:"name"`
	TypeID int64     `json:"train_type_id" yaml:"type_id"`
	Type   TrainType `json:"train_type" yaml:"-"`
}

// Station is a stop on the corridor.
type Station struct {
	ID        int64   `json:"id" yaml:"id"`
	Code      string  `json:"station_code" yaml:"code"`
	Name      string  `json:"station_name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Route connects an origin and a destination station.
type Route struct {
	ID                   int64   `json:"id" yaml:"id"`
	Code                 string  `json:"route_code" yaml:"code"`
	Name                 string  `json:"route_name" yaml:"name"`
	OriginStationID      int64   `json:"origin_station_id" yaml:"origin_station_id"`
	DestinationStationID int64   `json:"destination_station_id" yaml:"destination_station_id"`
	Origin               Station `json:"origin" yaml:"-"`
	Destination          Station `json:"destination" yaml:"-"`
}

// Lookup resolves reference ids.
type Lookup interface {
	Train(ctx context.Context, id int64) (Train, error)
	Route(ctx context.Context, id int64) (Route, error)
	Station(ctx context.Context, id int64) (Station, error)
}

// Dataset is a full set of reference rows, used for seeding.
type Dataset struct {
	TrainTypes []TrainType `yaml:"train_types"`
	Stations   []Station   `yaml:"stations"`
	Trains     []Train     `yaml:"trains"`
	Routes     []Route     `yaml:"routes"`
}

// Writer persists a Dataset, replacing rows with the same ids.
type Writer interface {
	SeedReferenceData(ctx context.Context, ds Dataset) error
}

// TrainNumber returns the public train number, falling back to "#<id>" when
// the lookup fails.
func TrainNumber(ctx context.Context, l Lookup, id int64) string {
	if l != nil {
		if t, err := l.Train(ctx, id); err == nil && t.Number != "" {
			return t.Number
		}
	}
	return "#" + strconv.FormatInt(id, 10)
}
