package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/schedule"
	"github.com/kilianp07/ttms/core/store"
)

// DateLayout is the format of date query parameters.
const DateLayout = "2006-01-02"

func pathID(r *http.Request) int64 {
	// The route pattern only admits digits.
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func queryInt64(q url.Values, key string) (*int64, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return nil, model.NewValidationError(key, "must be a positive integer")
	}
	return &n, nil
}

func (s *Server) listTimetables(w http.ResponseWriter, r *http.Request) {
	tts, err := s.timetables.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"timetables": tts, "count": len(tts)})
}

func (s *Server) getTimetable(w http.ResponseWriter, r *http.Request) {
	tt, err := s.timetables.Get(r.Context(), pathID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tt)
}

// listSchedules GET /api/schedules?timetable_id=&date=&train_type=&status=
func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f schedule.Filter
	var err error
	if f.TimetableID, err = queryInt64(q, "timetable_id"); err != nil {
		writeDomainError(w, err)
		return
	}
	if v := q.Get("date"); v != "" {
		d, err := time.Parse(DateLayout, v)
		if err != nil {
			writeDomainError(w, model.NewValidationError("date", "must be YYYY-MM-DD"))
			return
		}
		f.Date = &d
	}
	f.TrainType = q.Get("train_type")
	f.Status = model.PositionStatus(q.Get("status"))

	views, err := s.schedules.ListActive(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": views, "count": len(views)})
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	v, err := s.schedules.Get(r.Context(), pathID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) listStops(w http.ResponseWriter, r *http.Request) {
	stops, err := s.schedules.Stops(r.Context(), pathID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stops": stops, "count": len(stops)})
}

// listConflicts GET /api/conflicts?schedule_id=&track=&status=&limit=
func (s *Server) listConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ConflictFilter{Resource: q.Get("track"), Status: model.ConflictStatus(q.Get("status"))}
	var err error
	if f.ScheduleID, err = queryInt64(q, "schedule_id"); err != nil {
		writeDomainError(w, err)
		return
	}
	switch f.Status {
	case "", model.ConflictDetected, model.ConflictResolved:
	default:
		writeDomainError(w, model.NewValidationError("status", "must be detected or resolved"))
		return
	}
	limit, err := queryInt64(q, "limit")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if limit != nil {
		f.Limit = int(*limit)
	}
	conflicts, err := s.schedules.Conflicts(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts, "count": len(conflicts)})
}

// listPositions GET /api/positions?schedule_id=&train_id=
func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.PositionFilter
	var err error
	if f.ScheduleID, err = queryInt64(q, "schedule_id"); err != nil {
		writeDomainError(w, err)
		return
	}
	if f.TrainID, err = queryInt64(q, "train_id"); err != nil {
		writeDomainError(w, err)
		return
	}
	positions, err := s.positions.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions, "count": len(positions)})
}

func (s *Server) positionSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.positions.DelaySummary(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
