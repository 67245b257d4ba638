package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/ttms/core/events"
	coremetrics "github.com/kilianp07/ttms/core/metrics"
	"github.com/kilianp07/ttms/core/model"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(data)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func lineProtocol(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordScheduleEvent(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	ev := events.ScheduleEvent{Action: events.ScheduleRejected, TrainID: 200, Track: "1", Conflicts: 2, Time: now}
	if err := sink.RecordScheduleEvent(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("schedule_event").
		AddTag("action", "rejected").
		AddTag("component", "schedule_manager").
		AddTag("track", "1").
		AddField("schedule_id", int64(0)).
		AddField("train_id", int64(200)).
		AddField("conflicts", 2).
		SetTime(now)
	if got := bodies(); len(got) != 1 || got[0] != lineProtocol(p) {
		t.Errorf("unexpected bodies: %#v", got)
	}
}

func TestInfluxSink_RecordPosition(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	ev := events.PositionEvent{Position: model.TrainPosition{
		TrainID:          100,
		ScheduleID:       7,
		Latitude:         48.85,
		Longitude:        2.35,
		SpeedKmh:         120.12345,
		Status:           model.StatusDelayed,
		DelayMinutes:     12,
		FuelLevelPercent: 80,
	}, Time: now}
	if err := sink.RecordPosition(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("train_position").
		AddTag("train_id", "100").
		AddTag("schedule_id", "7").
		AddTag("status", "delayed").
		AddField("latitude", 48.85).
		AddField("longitude", 2.35).
		AddField("speed_kmh", 120.123).
		AddField("heading_degrees", 0.0).
		AddField("delay_minutes", 12).
		AddField("fuel_level_percent", 80.0).
		SetTime(now)
	if got := bodies(); len(got) != 1 || got[0] != lineProtocol(p) {
		t.Errorf("unexpected bodies: %#v", got)
	}
}

func TestInfluxSink_RecordAlert(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	if err := sink.RecordAlert(events.AlertEvent{Kind: events.AlertDelay, TrainID: 100, ScheduleID: 7, Time: now}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("alert").
		AddTag("kind", "delay").
		AddTag("train_id", "100").
		AddField("schedule_id", int64(7)).
		SetTime(now)
	if got := bodies(); len(got) != 1 || got[0] != lineProtocol(p) {
		t.Errorf("unexpected bodies: %#v", got)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink on failing health check, got %T", sink)
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
