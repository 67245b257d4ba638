package refdata

import (
	"context"
	"fmt"
)

// Static is an in-memory Lookup built from a Dataset.
type Static struct {
	types    map[int64]TrainType
	trains   map[int64]Train
	routes   map[int64]Route
	stations map[int64]Station
}

// NewStatic indexes ds by id.
func NewStatic(ds Dataset) *Static {
	s := &Static{
		types:    make(map[int64]TrainType, len(ds.TrainTypes)),
		trains:   make(map[int64]Train, len(ds.Trains)),
		routes:   make(map[int64]Route, len(ds.Routes)),
		stations: make(map[int64]Station, len(ds.Stations)),
	}
	for _, t := range ds.TrainTypes {
		s.types[t.ID] = t
	}
	for _, st := range ds.Stations {
		s.stations[st.ID] = st
	}
	for _, t := range ds.Trains {
		s.trains[t.ID] = t
	}
	for _, r := range ds.Routes {
		s.routes[r.ID] = r
	}
	return s
}

func (s *Static) Train(_ context.Context, id int64) (Train, error) {
	t, ok := s.trains[id]
	if !ok {
		return Train{}, fmt.Errorf("train %d: %w", id, ErrUnknown)
	}
	t.Type = s.types[t.TypeID]
	return t, nil
}

func (s *Static) Route(_ context.Context, id int64) (Route, error) {
	r, ok := s.routes[id]
	if !ok {
		return Route{}, fmt.Errorf("route %d: %w", id, ErrUnknown)
	}
	r.Origin = s.stations[r.OriginStationID]
	r.Destination = s.stations[r.DestinationStationID]
	return r, nil
}

func (s *Static) Station(_ context.Context, id int64) (Station, error) {
	st, ok := s.stations[id]
	if !ok {
		return Station{}, fmt.Errorf("station %d: %w", id, ErrUnknown)
	}
	return st, nil
}

// Validate checks that every foreign id in ds resolves within ds.
func (ds Dataset) Validate() error {
	s := NewStatic(ds)
	for _, t := range ds.Trains {
		if t.Number == "" {
			return fmt.Errorf("train %d: number is required", t.ID)
		}
		if t.TypeID != 0 {
			if _, ok := s.types[t.TypeID]; !ok {
				return fmt.Errorf("train %s: train type %d: %w", t.Number, t.TypeID, ErrUnknown)
			}
		}
	}
	for _, r := range ds.Routes {
		for _, id := range []int64{r.OriginStationID, r.DestinationStationID} {
			if _, ok := s.stations[id]; !ok {
				return fmt.Errorf("route %s: station %d: %w", r.Code, id, ErrUnknown)
			}
		}
	}
	return nil
}
