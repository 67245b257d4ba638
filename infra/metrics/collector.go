package metrics

import (
	"context"

	"github.com/kilianp07/ttms/core/events"
	coremetrics "github.com/kilianp07/ttms/core/metrics"
	"github.com/kilianp07/ttms/infra/logger"
	"github.com/kilianp07/ttms/internal/eventbus"
)

// StartEventCollector subscribes to the bus and records every event on sink.
// It stops when ctx is cancelled or the bus is closed. The returned channel
// is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := coremetrics.Record(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}
