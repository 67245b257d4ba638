package sqlstore

import (
	"database/sql"
	"time"

	"github.com/kilianp07/ttms/core/model"
)

// Instants are stored as unix seconds and days as the unix seconds of their
// UTC midnight.

func unix(t time.Time) int64 { return t.Unix() }

func day(t time.Time) int64 { return model.Day(t).Unix() }

func fromUnix(v int64) time.Time { return time.Unix(v, 0).UTC() }

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int64OrNil(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

type scanner interface {
	Scan(dest ...any) error
}
