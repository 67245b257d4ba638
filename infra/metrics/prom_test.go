package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/ttms/core/events"
	"github.com/kilianp07/ttms/core/model"
)

func TestPromSink_RecordScheduleEvent(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	_ = sink.RecordScheduleEvent(events.ScheduleEvent{Action: events.ScheduleCreated})
	_ = sink.RecordScheduleEvent(events.ScheduleEvent{Action: events.ScheduleRejected, Track: "1", Conflicts: 2})

	expected := `
# HELP ttms_schedule_events_total Schedule lifecycle events by action
# TYPE ttms_schedule_events_total counter
ttms_schedule_events_total{action="created"} 1
ttms_schedule_events_total{action="rejected"} 1
`
	if err := testutil.CollectAndCompare(sink.schedules, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if v := testutil.ToFloat64(sink.conflicts.WithLabelValues("1")); v != 2 {
		t.Errorf("expected 2 conflicts, got %v", v)
	}
}

func TestPromSink_RecordPositionAndAlert(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	now := time.Now()
	_ = sink.RecordPosition(events.PositionEvent{Position: model.TrainPosition{TrainID: 100, ScheduleID: 7, Status: model.StatusDelayed, DelayMinutes: 45}, Time: now})
	_ = sink.RecordPosition(events.PositionEvent{Position: model.TrainPosition{TrainID: 100, ScheduleID: 7, Status: model.StatusDelayed, DelayMinutes: 40}, Time: now})
	_ = sink.RecordAlert(events.AlertEvent{Kind: events.AlertDelay, Time: now})

	if v := testutil.ToFloat64(sink.delay.WithLabelValues("100", "7")); v != 40 {
		t.Errorf("expected latest delay 40, got %v", v)
	}
	if v := testutil.ToFloat64(sink.positions.WithLabelValues("delayed")); v != 2 {
		t.Errorf("expected 2 reports, got %v", v)
	}
	if v := testutil.ToFloat64(sink.alerts.WithLabelValues("delay")); v != 1 {
		t.Errorf("expected 1 alert, got %v", v)
	}
	if c := testutil.CollectAndCount(sink.delays); c != 1 {
		t.Errorf("expected delay histogram, got %d series", c)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}
	_ = first.RecordAlert(events.AlertEvent{Kind: events.AlertCancellation})
	if v := testutil.ToFloat64(second.alerts.WithLabelValues("cancellation")); v != 1 {
		t.Errorf("collectors not shared: %v", v)
	}
}
