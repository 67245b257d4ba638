// Package telemetry ingests live position reports published by trains over
// MQTT and feeds them to the position tracker.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/ttms/core/auth"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/monitoring"
	"github.com/kilianp07/ttms/core/position"
	"github.com/kilianp07/ttms/infra/logger"
	infmqtt "github.com/kilianp07/ttms/infra/mqtt"
)

// DefaultTopic matches one position topic per train.
const DefaultTopic = "ttms/trains/+/position"

// Config enables ingestion and names the identity reports are stored under.
type Config struct {
	Enabled bool   `json:"enabled"`
	Topic   string `json:"topic"`
	QoS     byte   `json:"qos"`
	ActorID string `json:"actor_id"`
	// TimeoutSeconds bounds the handling of one message.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.ActorID == "" {
		c.ActorID = "telemetry"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}
}

// Reporter stores a position report.
type Reporter interface {
	ReportPosition(ctx context.Context, actor auth.Actor, r position.Report) (*model.TrainPosition, error)
}

type subscriber interface {
	IsConnected() bool
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

// Ingestor subscribes to position topics and forwards decoded reports.
type Ingestor struct {
	cfg   Config
	cli   subscriber
	rep   Reporter
	actor auth.Actor
	log   logger.Logger

	received prometheus.Counter
	rejected prometheus.Counter
	failed   prometheus.Counter
	lastSeen prometheus.Gauge
}

// NewIngestor connects to the broker. Counters are registered on reg, the
// default registerer when nil.
func NewIngestor(mqttCfg infmqtt.Config, cfg Config, rep Reporter, reg prometheus.Registerer) (*Ingestor, error) {
	opts, err := infmqtt.NewClientOptions(mqttCfg.WithClientSuffix("telemetry"))
	if err != nil {
		return nil, err
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	in := newIngestor(cli, cfg, rep)
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{in.received, in.rejected, in.failed, in.lastSeen} {
		if err := reg.Register(c); err != nil {
			cli.Disconnect(250)
			return nil, fmt.Errorf("register telemetry metrics: %w", err)
		}
	}
	return in, nil
}

func newIngestor(cli subscriber, cfg Config, rep Reporter) *Ingestor {
	cfg.SetDefaults()
	return &Ingestor{
		cfg:   cfg,
		cli:   cli,
		rep:   rep,
		actor: auth.NewActor(cfg.ActorID, auth.RoleOperator),
		log:   logger.New("telemetry"),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ttms_telemetry_messages_total", Help: "Position messages received",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ttms_telemetry_rejected_total", Help: "Position messages rejected as invalid",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ttms_telemetry_failures_total", Help: "Position messages that could not be stored",
		}),
		lastSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ttms_telemetry_last_message_timestamp_seconds", Help: "Unix time of the last stored position",
		}),
	}
}

// Start subscribes and blocks until ctx is done.
func (in *Ingestor) Start(ctx context.Context) error {
	if token := in.cli.Subscribe(in.cfg.Topic, in.cfg.QoS, in.onMessage); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", in.cfg.Topic, token.Error())
	}
	in.log.Infof("listening for positions on %s", in.cfg.Topic)
	<-ctx.Done()
	if in.cli.IsConnected() {
		in.cli.Disconnect(250)
	}
	return nil
}

func (in *Ingestor) onMessage(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(in.cfg.TimeoutSeconds)*time.Second)
	defer cancel()
	if err := in.handle(ctx, msg.Topic(), msg.Payload()); err != nil {
		in.log.Warnf("position on %s: %v", msg.Topic(), err)
	}
}

type wireReport struct {
	TrainID               int64                `json:"train_id"`
	ScheduleID            int64                `json:"schedule_id"`
	CurrentStationID      *int64               `json:"current_station_id"`
	NextStationID         *int64               `json:"next_station_id"`
	Latitude              float64              `json:"latitude"`
	Longitude             float64              `json:"longitude"`
	SpeedKmh              float64              `json:"speed_kmh"`
	HeadingDegrees        float64              `json:"heading_degrees"`
	Status                model.PositionStatus `json:"status"`
	DelayMinutes          int                  `json:"delay_minutes"`
	EstimatedArrival      *int64               `json:"estimated_arrival"`
	DistanceToNextStation float64              `json:"distance_to_next_station"`
	FuelLevelPercent      float64              `json:"fuel_level_percent"`
}

// handle decodes one message and stores it. A missing train id is taken
// from the topic segment matched by the wildcard.
func (in *Ingestor) handle(ctx context.Context, topic string, payload []byte) (err error) {
	in.received.Inc()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			in.failed.Inc()
			monitoring.CaptureException(err, monitoring.Component("telemetry").With("topic", topic))
		}
	}()

	var w wireReport
	if err := json.Unmarshal(payload, &w); err != nil {
		in.rejected.Inc()
		return fmt.Errorf("decode: %w", err)
	}
	if w.TrainID == 0 {
		w.TrainID = trainIDFromTopic(in.cfg.Topic, topic)
	}
	if w.Status == "" {
		w.Status = model.StatusOnTime
		if w.DelayMinutes > 0 {
			w.Status = model.StatusDelayed
		}
	}
	r := position.Report{
		TrainID:               w.TrainID,
		ScheduleID:            w.ScheduleID,
		CurrentStationID:      w.CurrentStationID,
		NextStationID:         w.NextStationID,
		Latitude:              w.Latitude,
		Longitude:             w.Longitude,
		SpeedKmh:              w.SpeedKmh,
		HeadingDegrees:        w.HeadingDegrees,
		Status:                w.Status,
		DelayMinutes:          w.DelayMinutes,
		DistanceToNextStation: w.DistanceToNextStation,
		FuelLevelPercent:      w.FuelLevelPercent,
	}
	if w.EstimatedArrival != nil {
		eta := time.Unix(*w.EstimatedArrival, 0).UTC()
		r.EstimatedArrival = &eta
	}

	if _, err := in.rep.ReportPosition(ctx, in.actor, r); err != nil {
		if model.IsStoreError(err) || !model.IsDomainError(err) {
			in.failed.Inc()
		} else {
			in.rejected.Inc()
		}
		return err
	}
	in.lastSeen.SetToCurrentTime()
	return nil
}

// trainIDFromTopic returns the numeric segment of topic at the position of
// the first "+" wildcard in pattern, or the last segment when the pattern
// has none.
func trainIDFromTopic(pattern, topic string) int64 {
	parts := strings.Split(topic, "/")
	idx := len(parts) - 1
	for i, seg := range strings.Split(pattern, "/") {
		if seg == "+" {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(parts) {
		return 0
	}
	id, err := strconv.ParseInt(parts[idx], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
