package metrics_test

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ttms/core/events"
	"github.com/kilianp07/ttms/core/factory"
	metrics "github.com/kilianp07/ttms/core/metrics"
	_ "github.com/kilianp07/ttms/infra/metrics"
)

/*
TestMetricsFactory_Builtins verifies registration via infra/metrics/factory.go.

	Cases:
	- instantiate builtin nop sink
	- unknown type returns error
*/
func TestMetricsFactory_Builtins(t *testing.T) {
	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if s == nil {
		t.Fatal("expected sink instance")
	}
	if _, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

/*
TestNewMetricsSink_Multi validates NewMetricsSink with zero and several configs.

	Cases:
	- no config -> NopSink
	- two configs -> MultiSink with two sub-sinks
*/
func TestNewMetricsSink_Multi(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}
}

func TestMetricsConfigDecodeYAML(t *testing.T) {
	data := `sinks:
  - type: nop
  - type: nop
`
	var cfg metrics.Config
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	s, err := metrics.NewMetricsSink(cfg.Sinks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := s.(*metrics.MultiSink); !ok {
		t.Fatalf("expected MultiSink")
	}
}

func TestMetricsConfigDecodeJSON_Invalid(t *testing.T) {
	data := `{"sinks":[{"type":"missing"}]}`
	var cfg metrics.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if _, err := metrics.NewMetricsSink(cfg.Sinks); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

type countingSink struct {
	schedules, positions, alerts int
}

func (c *countingSink) RecordScheduleEvent(events.ScheduleEvent) error {
	c.schedules++
	return nil
}

func (c *countingSink) RecordPosition(events.PositionEvent) error {
	c.positions++
	return nil
}

func (c *countingSink) RecordAlert(events.AlertEvent) error {
	c.alerts++
	return nil
}

type scheduleOnly struct{ n int }

func (s *scheduleOnly) RecordScheduleEvent(events.ScheduleEvent) error {
	s.n++
	return nil
}

// TestRecordRoutesEvents ensures every event kind reaches the sinks that
// support it and is skipped by the others.
func TestRecordRoutesEvents(t *testing.T) {
	full := &countingSink{}
	partial := &scheduleOnly{}
	m := metrics.NewMultiSink(full, partial)

	now := time.Now()
	for _, ev := range []events.Event{
		events.ScheduleEvent{Action: events.ScheduleCreated, Time: now},
		events.PositionEvent{Time: now},
		events.AlertEvent{Kind: events.AlertDelay, Time: now},
	} {
		if err := metrics.Record(m, ev); err != nil {
			t.Fatalf("record %T: %v", ev, err)
		}
	}
	if full.schedules != 1 || full.positions != 1 || full.alerts != 1 {
		t.Fatalf("unexpected counts %+v", *full)
	}
	if partial.n != 1 {
		t.Fatalf("expected 1 schedule event, got %d", partial.n)
	}
	if err := metrics.Record(partial, events.PositionEvent{}); err != nil {
		t.Fatalf("unsupported event should be ignored: %v", err)
	}
}

type closableSink struct {
	scheduleOnly
	closed bool
}

func (c *closableSink) Close() error {
	c.closed = true
	return nil
}

func TestMultiSinkClosesClosers(t *testing.T) {
	c := &closableSink{}
	m := metrics.NewMultiSink(&scheduleOnly{}, c)
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !c.closed {
		t.Fatalf("closable sink not closed")
	}
}
