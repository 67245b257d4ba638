// Package app assembles the schedule service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kilianp07/ttms/api"
	"github.com/kilianp07/ttms/app/plugins"
	"github.com/kilianp07/ttms/config"
	"github.com/kilianp07/ttms/core/audit"
	"github.com/kilianp07/ttms/core/conflict"
	"github.com/kilianp07/ttms/core/events"
	coremetrics "github.com/kilianp07/ttms/core/metrics"
	coremon "github.com/kilianp07/ttms/core/monitoring"
	"github.com/kilianp07/ttms/core/notify"
	"github.com/kilianp07/ttms/core/position"
	"github.com/kilianp07/ttms/core/schedule"
	"github.com/kilianp07/ttms/core/timetable"
	"github.com/kilianp07/ttms/infra/logger"
	"github.com/kilianp07/ttms/infra/metrics"
	"github.com/kilianp07/ttms/infra/monitoring"
	"github.com/kilianp07/ttms/infra/store/sqlstore"
	"github.com/kilianp07/ttms/infra/telemetry"
	"github.com/kilianp07/ttms/internal/eventbus"
)

// Service holds the managers and the background components around them.
type Service struct {
	Store      *sqlstore.Store
	Timetables *timetable.Manager
	Schedules  *schedule.Manager
	Tracker    *position.Tracker

	cfg     *config.Config
	bus     *eventbus.Bus[events.Event]
	sink    coremetrics.MetricsSink
	closers []io.Closer
	log     logger.Logger
}

// New opens the store and builds the managers with the configured sinks.
// Sinks already connected are closed again when a later step fails.
func New(ctx context.Context, cfg *config.Config) (svc *Service, err error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	if err := plugins.Register(cfg); err != nil {
		return nil, fmt.Errorf("register plugins: %w", err)
	}

	var closers []io.Closer
	defer func() {
		if err != nil {
			_ = closeAll(closers)
		}
	}()

	auditSinks, err := audit.NewSinks(cfg.Audit.Sinks)
	if err != nil {
		return nil, fmt.Errorf("audit sinks: %w", err)
	}
	closers = appendClosers(closers, auditSinks...)
	emitters, err := notify.NewEmitters(cfg.Notifications.Sinks)
	if err != nil {
		return nil, fmt.Errorf("notification sinks: %w", err)
	}
	closers = appendClosers(closers, emitters...)
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.ModuleConfigs())
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	closers = appendClosers(closers, sink)

	st, err := OpenStore(ctx, cfg.Store, logger.New("store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	closers = append(closers, st)

	rec := audit.NewRecorder(logger.New("audit"), auditSinks...)
	disp := notify.NewDispatcher(logger.New("notify"), emitters...)
	bus := eventbus.New[events.Event]()

	tt, err := timetable.NewManager(st, rec, logger.New("timetable"))
	if err != nil {
		return nil, err
	}
	sched, err := schedule.NewManager(st, conflict.NewDetector(logger.New("conflict")), st, rec, disp, bus, logger.New("schedule"))
	if err != nil {
		return nil, err
	}
	tracker, err := position.NewTracker(st, st, rec, disp, bus, cfg.Alerts, logger.New("position"))
	if err != nil {
		return nil, err
	}

	return &Service{
		Store:      st,
		Timetables: tt,
		Schedules:  sched,
		Tracker:    tracker,
		cfg:        cfg,
		bus:        bus,
		sink:       sink,
		closers:    closers,
		log:        logg,
	}, nil
}

// Run starts the metrics collector and, when enabled, the telemetry
// ingestor, the query API and the Prometheus endpoint. It blocks until ctx
// is cancelled or a component fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collected := metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics"))
	errs := make(chan error, 3)
	running := 0
	start := func(name string, fn func(context.Context) error) {
		running++
		go func() {
			if err := fn(ctx); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
				return
			}
			errs <- nil
		}()
	}

	if s.cfg.Telemetry.Enabled {
		in, err := telemetry.NewIngestor(s.cfg.MQTT, s.cfg.Telemetry, s.Tracker, nil)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		start("telemetry", in.Start)
	}
	if s.cfg.API.Enabled {
		srv := api.NewServer(s.Schedules, s.Tracker, s.Timetables, s.Store, s.cfg.API.Token, logger.New("api"))
		start("api", func(ctx context.Context) error { return srv.Serve(ctx, s.cfg.API.Address) })
	}
	if s.cfg.Metrics.PrometheusEnabled {
		start("prometheus", func(ctx context.Context) error {
			return metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr(), s.log)
		})
	}
	s.log.Infof("service started (store=%s, components=%d)", s.cfg.Store.Driver, running)

	var firstErr error
	select {
	case <-ctx.Done():
	case err := <-errs:
		running--
		firstErr = err
	}
	cancel()
	for ; running > 0; running-- {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	<-collected
	return firstErr
}

// Close releases the bus, every sink holding a connection or file, and the
// store.
func (s *Service) Close() error {
	s.bus.Close()
	err := closeAll(s.closers)
	s.closers = nil
	coremon.Flush(2 * time.Second)
	return err
}

func appendClosers[T any](dst []io.Closer, items ...T) []io.Closer {
	for _, it := range items {
		if c, ok := any(it).(io.Closer); ok {
			dst = append(dst, c)
		}
	}
	return dst
}

// closeAll closes in reverse order of acquisition.
func closeAll(closers []io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i].Close())
	}
	return errors.Join(errs...)
}
