package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/ttms/core/events"
	coremetrics "github.com/kilianp07/ttms/core/metrics"
	"github.com/kilianp07/ttms/infra/logger"
)

// InfluxSink writes schedule events, positions and alerts to InfluxDB using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink writing to bucket on the given endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// when the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

// RecordScheduleEvent writes a schedule_event point.
func (s *InfluxSink) RecordScheduleEvent(ev events.ScheduleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_event").
		AddTag("action", string(ev.Action)).
		AddTag("component", "schedule_manager")
	if ev.Track != "" {
		p = p.AddTag("track", ev.Track)
	}
	p = p.AddField("schedule_id", ev.ScheduleID).
		AddField("train_id", ev.TrainID).
		AddField("conflicts", ev.Conflicts).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPosition writes a train_position point.
func (s *InfluxSink) RecordPosition(ev events.PositionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pos := ev.Position
	p := write.NewPointWithMeasurement("train_position").
		AddTag("train_id", strconv.FormatInt(pos.TrainID, 10)).
		AddTag("schedule_id", strconv.FormatInt(pos.ScheduleID, 10)).
		AddTag("status", string(pos.Status)).
		AddField("latitude", pos.Latitude).
		AddField("longitude", pos.Longitude).
		AddField("speed_kmh", round3(pos.SpeedKmh)).
		AddField("heading_degrees", round3(pos.HeadingDegrees)).
		AddField("delay_minutes", pos.DelayMinutes).
		AddField("fuel_level_percent", round3(pos.FuelLevelPercent)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAlert writes an alert point.
func (s *InfluxSink) RecordAlert(ev events.AlertEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("alert").
		AddTag("kind", string(ev.Kind)).
		AddTag("train_id", strconv.FormatInt(ev.TrainID, 10)).
		AddField("schedule_id", ev.ScheduleID).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
