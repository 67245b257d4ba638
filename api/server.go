// Package api serves the read-only query endpoints over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/position"
	"github.com/kilianp07/ttms/core/schedule"
	"github.com/kilianp07/ttms/core/store"
	"github.com/kilianp07/ttms/infra/logger"
)

// Schedules answers schedule queries.
type Schedules interface {
	Get(ctx context.Context, id int64) (schedule.View, error)
	ListActive(ctx context.Context, f schedule.Filter) ([]schedule.View, error)
	Stops(ctx context.Context, id int64) ([]model.ScheduleStop, error)
	Conflicts(ctx context.Context, f store.ConflictFilter) ([]model.Conflict, error)
}

// Positions answers live position queries.
type Positions interface {
	List(ctx context.Context, f store.PositionFilter) ([]model.TrainPosition, error)
	DelaySummary(ctx context.Context) (position.Summary, error)
}

// Timetables answers timetable queries.
type Timetables interface {
	Get(ctx context.Context, id int64) (*model.Timetable, error)
	List(ctx context.Context) ([]model.Timetable, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes API requests to the managers.
type Server struct {
	schedules  Schedules
	positions  Positions
	timetables Timetables
	health     Pinger
	token      string
	log        logger.Logger
}

// NewServer builds a Server. An empty token leaves the API open.
func NewServer(s Schedules, p Positions, tt Timetables, health Pinger, token string, log logger.Logger) *Server {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Server{schedules: s, positions: p, timetables: tt, health: health, token: token, log: log}
}

// Router returns the HTTP routes. /healthz is never authenticated.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/timetables", s.listTimetables).Methods(http.MethodGet)
	api.HandleFunc("/timetables/{id:[0-9]+}", s.getTimetable).Methods(http.MethodGet)
	api.HandleFunc("/schedules", s.listSchedules).Methods(http.MethodGet)
	api.HandleFunc("/schedules/{id:[0-9]+}", s.getSchedule).Methods(http.MethodGet)
	api.HandleFunc("/schedules/{id:[0-9]+}/stops", s.listStops).Methods(http.MethodGet)
	api.HandleFunc("/conflicts", s.listConflicts).Methods(http.MethodGet)
	api.HandleFunc("/positions", s.listPositions).Methods(http.MethodGet)
	api.HandleFunc("/positions/summary", s.positionSummary).Methods(http.MethodGet)
	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Warnf("health check: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Serve runs the API on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
		cancel()
	}()
	s.log.Infof("api listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
