package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/ttms/core/events"
	coremetrics "github.com/kilianp07/ttms/core/metrics"
)

// PromSink exposes schedule, position and alert activity as Prometheus
// metrics.
type PromSink struct {
	schedules *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	positions *prometheus.CounterVec
	delay     *prometheus.GaugeVec
	delays    prometheus.Histogram
	alerts    *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the metrics on reg. A nil registerer
// defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		schedules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ttms_schedule_events_total",
			Help: "Schedule lifecycle events by action",
		}, []string{"action"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ttms_conflicts_detected_total",
			Help: "Track conflicts detected during admission or update",
		}, []string{"track"}),
		positions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ttms_position_reports_total",
			Help: "Position reports stored by status",
		}, []string{"status"}),
		delay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ttms_train_delay_minutes",
			Help: "Latest reported delay per train and schedule",
		}, []string{"train_id", "schedule_id"}),
		delays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ttms_reported_delay_minutes",
			Help:    "Distribution of reported delays",
			Buckets: []float64{0, 2, 5, 10, 15, 30, 45, 60, 120},
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ttms_alerts_total",
			Help: "Notifications raised by kind",
		}, []string{"kind"}),
	}
	var err error
	if s.schedules, err = register(reg, s.schedules); err != nil {
		return nil, err
	}
	if s.conflicts, err = register(reg, s.conflicts); err != nil {
		return nil, err
	}
	if s.positions, err = register(reg, s.positions); err != nil {
		return nil, err
	}
	if s.delay, err = register(reg, s.delay); err != nil {
		return nil, err
	}
	if s.delays, err = register(reg, s.delays); err != nil {
		return nil, err
	}
	if s.alerts, err = register(reg, s.alerts); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordScheduleEvent counts the event and the conflicts it carries.
func (s *PromSink) RecordScheduleEvent(ev events.ScheduleEvent) error {
	s.schedules.WithLabelValues(string(ev.Action)).Inc()
	if ev.Conflicts > 0 {
		s.conflicts.WithLabelValues(ev.Track).Add(float64(ev.Conflicts))
	}
	return nil
}

// RecordPosition counts the report and tracks the latest delay.
func (s *PromSink) RecordPosition(ev events.PositionEvent) error {
	p := ev.Position
	s.positions.WithLabelValues(string(p.Status)).Inc()
	s.delay.WithLabelValues(strconv.FormatInt(p.TrainID, 10), strconv.FormatInt(p.ScheduleID, 10)).Set(float64(p.DelayMinutes))
	s.delays.Observe(float64(p.DelayMinutes))
	return nil
}

// RecordAlert counts raised notifications.
func (s *PromSink) RecordAlert(ev events.AlertEvent) error {
	s.alerts.WithLabelValues(string(ev.Kind)).Inc()
	return nil
}

var (
	_ coremetrics.MetricsSink      = (*PromSink)(nil)
	_ coremetrics.PositionRecorder = (*PromSink)(nil)
	_ coremetrics.AlertRecorder    = (*PromSink)(nil)
)
