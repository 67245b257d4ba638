package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kilianp07/ttms/core/refdata"
	"github.com/kilianp07/ttms/core/store"
)

var (
	_ refdata.Lookup = (*Store)(nil)
	_ refdata.Writer = (*Store)(nil)
)

// SeedReferenceData upserts every row of ds in one transaction.
func (s *Store) SeedReferenceData(ctx context.Context, ds refdata.Dataset) error {
	return s.WithTx(ctx, func(stx store.Tx) error {
		tx := stx.(*sqlTx).tx
		for _, t := range ds.TrainTypes {
			if _, err := tx.ExecContext(ctx, s.d.Rebind(`INSERT INTO train_types (id, type_code, type_name, color_code)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET type_code = excluded.type_code, type_name = excluded.type_name,
				 color_code = excluded.color_code`), t.ID, t.Code, t.Name, t.ColorCode); err != nil {
				return fmt.Errorf("train type %s: %w", t.Code, err)
			}
		}
		for _, st := range ds.Stations {
			if _, err := tx.ExecContext(ctx, s.d.Rebind(`INSERT INTO stations (id, station_code, station_name, latitude, longitude)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET station_code = excluded.station_code, station_name = excluded.station_name,
				 latitude = excluded.latitude, longitude = excluded.longitude`),
				st.ID, st.Code, st.Name, st.Latitude, st.Longitude); err != nil {
				return fmt.Errorf("station %s: %w", st.Code, err)
			}
		}
		for _, t := range ds.Trains {
			if _, err := tx.ExecContext(ctx, s.d.Rebind(`INSERT INTO trains (id, train_number, train_name, train_type_id)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET train_number = excluded.train_number, train_name = excluded.train_name,
				 train_type_id = excluded.train_type_id`), t.ID, t.Number, t.Name, t.TypeID); err != nil {
				return fmt.Errorf("train %s: %w", t.Number, err)
			}
		}
		for _, r := range ds.Routes {
			if _, err := tx.ExecContext(ctx, s.d.Rebind(`INSERT INTO routes (id, route_code, route_name, origin_station_id, destination_station_id)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET route_code = excluded.route_code, route_name = excluded.route_name,
				 origin_station_id = excluded.origin_station_id, destination_station_id = excluded.destination_station_id`),
				r.ID, r.Code, r.Name, r.OriginStationID, r.DestinationStationID); err != nil {
				return fmt.Errorf("route %s: %w", r.Code, err)
			}
		}
		return nil
	})
}

func (s *Store) Train(ctx context.Context, id int64) (refdata.Train, error) {
	return lookupTrain(ctx, s.db, s.d, id)
}

func (s *Store) Route(ctx context.Context, id int64) (refdata.Route, error) {
	return lookupRoute(ctx, s.db, s.d, id)
}

func (s *Store) Station(ctx context.Context, id int64) (refdata.Station, error) {
	return lookupStation(ctx, s.db, s.d, id)
}

func (t *sqlTx) Train(ctx context.Context, id int64) (refdata.Train, error) {
	return lookupTrain(ctx, t.tx, t.d, id)
}

func (t *sqlTx) Route(ctx context.Context, id int64) (refdata.Route, error) {
	return lookupRoute(ctx, t.tx, t.d, id)
}

func (t *sqlTx) Station(ctx context.Context, id int64) (refdata.Station, error) {
	return lookupStation(ctx, t.tx, t.d, id)
}

func lookupTrain(ctx context.Context, q queryer, d Dialect, id int64) (refdata.Train, error) {
	var t refdata.Train
	var typeCode, typeName, color sql.NullString
	err := q.QueryRowContext(ctx, d.Rebind(`SELECT t.id, t.train_number, t.train_name, t.train_type_id,
		tt.type_code, tt.type_name, tt.color_code
		FROM trains t LEFT JOIN train_types tt ON tt.id = t.train_type_id
		WHERE t.id = ?`), id).Scan(&t.ID, &t.Number, &t.Name, &t.TypeID, &typeCode, &typeName, &color)
	if errors.Is(err, sql.ErrNoRows) {
		return refdata.Train{}, fmt.Errorf("train %d: %w", id, refdata.ErrUnknown)
	}
	if err != nil {
		return refdata.Train{}, err
	}
	t.Type = refdata.TrainType{ID: t.TypeID, Code: typeCode.String, Name: typeName.String, ColorCode: color.String}
	return t, nil
}

func lookupRoute(ctx context.Context, q queryer, d Dialect, id int64) (refdata.Route, error) {
	var r refdata.Route
	err := q.QueryRowContext(ctx, d.Rebind(`SELECT id, route_code, route_name, origin_station_id, destination_station_id
		FROM routes WHERE id = ?`), id).Scan(&r.ID, &r.Code, &r.Name, &r.OriginStationID, &r.DestinationStationID)
	if errors.Is(err, sql.ErrNoRows) {
		return refdata.Route{}, fmt.Errorf("route %d: %w", id, refdata.ErrUnknown)
	}
	if err != nil {
		return refdata.Route{}, err
	}
	if r.Origin, err = lookupStation(ctx, q, d, r.OriginStationID); err != nil && !errors.Is(err, refdata.ErrUnknown) {
		return refdata.Route{}, err
	}
	if r.Destination, err = lookupStation(ctx, q, d, r.DestinationStationID); err != nil && !errors.Is(err, refdata.ErrUnknown) {
		return refdata.Route{}, err
	}
	return r, nil
}

func lookupStation(ctx context.Context, q queryer, d Dialect, id int64) (refdata.Station, error) {
	var st refdata.Station
	err := q.QueryRowContext(ctx, d.Rebind(`SELECT id, station_code, station_name, latitude, longitude
		FROM stations WHERE id = ?`), id).Scan(&st.ID, &st.Code, &st.Name, &st.Latitude, &st.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return refdata.Station{}, fmt.Errorf("station %d: %w", id, refdata.ErrUnknown)
	}
	return st, err
}
