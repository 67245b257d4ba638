// Package audit provides the audit trail sinks selectable from configuration.
package audit

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kilianp07/ttms/core/audit"
	"github.com/kilianp07/ttms/core/factory"
	infkafka "github.com/kilianp07/ttms/infra/kafka"
	"github.com/kilianp07/ttms/infra/logger"
)

type recordWriter interface {
	Write(ctx context.Context, key string, v any, headers map[string]string) error
}

// KafkaSink publishes every record to a Kafka topic keyed by entity.
type KafkaSink struct {
	w recordWriter
}

// NewKafkaSink connects a sink to the configured topic.
func NewKafkaSink(cfg infkafka.Config) (*KafkaSink, error) {
	w, err := infkafka.NewJSONWriter(cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{w: w}, nil
}

// Close flushes and closes the Kafka writer.
func (s *KafkaSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *KafkaSink) Record(ctx context.Context, rec audit.Record) error {
	key := fmt.Sprintf("%s/%d", rec.EntityTable, rec.EntityID)
	return s.w.Write(ctx, key, rec, map[string]string{
		"action": string(rec.Action),
		"module": rec.Module,
	})
}

// LogSink writes records to the structured log.
type LogSink struct {
	log logger.Logger
}

// NewLogSink returns a LogSink tagged with the audit component.
func NewLogSink() *LogSink { return &LogSink{log: logger.New("audit")} }

func (s *LogSink) Record(_ context.Context, rec audit.Record) error {
	s.log.Debugw("audit", map[string]any{
		"id":        rec.ID,
		"actor_id":  rec.ActorID,
		"action":    string(rec.Action),
		"table":     rec.EntityTable,
		"record_id": rec.EntityID,
	})
	return nil
}

var (
	registerOnce sync.Once
	registerErr  error
)

// Register adds the builtin sinks to the audit registry. Repeated calls are
// no-ops.
func Register() error {
	registerOnce.Do(func() { registerErr = register() })
	return registerErr
}

func register() error {
	if err := audit.RegisterSink("log", func(map[string]any) (audit.Sink, error) {
		return NewLogSink(), nil
	}); err != nil {
		return err
	}
	if err := audit.RegisterSink("nop", func(map[string]any) (audit.Sink, error) {
		return audit.NopSink{}, nil
	}); err != nil {
		return err
	}
	if err := audit.RegisterSink("file", func(conf map[string]any) (audit.Sink, error) {
		var c FileConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewFileSink(c)
	}); err != nil {
		return err
	}
	return audit.RegisterSink("kafka", func(conf map[string]any) (audit.Sink, error) {
		var c infkafka.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewKafkaSink(c)
	})
}
