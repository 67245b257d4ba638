package metrics

import (
	"errors"
	"io"

	"github.com/kilianp07/ttms/core/events"
)

// MetricsSink records schedule lifecycle events.
type MetricsSink interface {
	RecordScheduleEvent(ev events.ScheduleEvent) error
}

// PositionRecorder is implemented by sinks that track live positions.
type PositionRecorder interface {
	RecordPosition(ev events.PositionEvent) error
}

// AlertRecorder is implemented by sinks that count raised alerts.
type AlertRecorder interface {
	RecordAlert(ev events.AlertEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordScheduleEvent(events.ScheduleEvent) error { return nil }
func (NopSink) RecordPosition(events.PositionEvent) error      { return nil }
func (NopSink) RecordAlert(events.AlertEvent) error            { return nil }

// Record routes ev to the matching recorder of sink. Events the sink does
// not support are ignored.
func Record(sink MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.ScheduleEvent:
		return sink.RecordScheduleEvent(e)
	case events.PositionEvent:
		if r, ok := sink.(PositionRecorder); ok {
			return r.RecordPosition(e)
		}
	case events.AlertEvent:
		if r, ok := sink.(AlertRecorder); ok {
			return r.RecordAlert(e)
		}
	}
	return nil
}

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink over sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// RecordScheduleEvent forwards ev to all sinks, returning the first error.
func (m *MultiSink) RecordScheduleEvent(ev events.ScheduleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordScheduleEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordPosition forwards ev to the sinks that track positions.
func (m *MultiSink) RecordPosition(ev events.PositionEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(PositionRecorder); ok {
			if err := r.RecordPosition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAlert forwards ev to the sinks that count alerts.
func (m *MultiSink) RecordAlert(ev events.AlertEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(AlertRecorder); ok {
			if err := r.RecordAlert(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
