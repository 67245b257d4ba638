// Package export writes schedule listings in exchange formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/ttms/core/schedule"
)

// Header is the first CSV row written by WriteCSV.
var Header = []string{
	"schedule_id", "timetable_id", "train_number", "route_code", "schedule_date",
	"departure", "arrival", "track", "platform", "operating_days", "priority", "state", "delay_minutes",
}

// WriteJSON writes the schedules to w as a JSON array.
func WriteJSON(w io.Writer, views []schedule.View) error {
	if views == nil {
		views = []schedule.View{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

// WriteCSV writes one row per schedule. Times are RFC 3339 in UTC.
func WriteCSV(w io.Writer, views []schedule.View) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, v := range views {
		rec := []string{
			strconv.FormatInt(v.ID, 10),
			strconv.FormatInt(v.TimetableID, 10),
			v.TrainNumber,
			v.RouteCode,
			v.ScheduleDate.UTC().Format(time.DateOnly),
			v.DepartureTime.UTC().Format(time.RFC3339),
			v.ArrivalTime.UTC().Format(time.RFC3339),
			str(v.TrackAssignment),
			str(v.PlatformAssignment),
			v.OperatingDays.String(),
			strconv.Itoa(v.PriorityLevel),
			string(v.State),
			strconv.Itoa(v.DelayMinutes),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
