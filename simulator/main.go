// Command simulator publishes synthetic train positions to the telemetry
// topics so the ingestion path can be exercised without real trains.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kilianp07/ttms/infra/logger"
	infmqtt "github.com/kilianp07/ttms/infra/mqtt"
)

// publisher is satisfied by infra/mqtt.Publisher.
type publisher interface {
	Publish(ctx context.Context, kind, topic string, payload []byte) error
}

func main() {
	cfg := parseFlags()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	runs, err := loadRuns(cfg, time.Now().UTC())
	if err != nil {
		log.Fatalf("runs: %v", err)
	}
	pub, err := infmqtt.NewPublisher(infmqtt.Config{Broker: cfg.Broker}.WithClientSuffix("simulator"), logger.New("simulator"))
	if err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	defer pub.Disconnect()

	runTrains(ctx, runs, cfg, pub)
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.TopicPattern, "topic", "ttms/trains/%d/position", "topic pattern, %d is the train id")
	flag.IntVar(&cfg.Trains, "trains", 1, "number of generated runs on the demo corridor")
	flag.StringVar(&cfg.RunsFile, "runs-file", "", "JSON list of runs, replaces generated runs")
	flag.DurationVar(&cfg.Interval, "interval", 10*time.Second, "publish interval")
	flag.DurationVar(&cfg.Duration, "duration", 0, "stop after this long, 0 runs until interrupted")
	flag.IntVar(&cfg.MaxDrift, "max-drift", 1, "maximum delay change in minutes per sample")
	flag.Float64Var(&cfg.DropRate, "drop-rate", 0, "ratio of samples silently not published")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.Parse()
	return cfg
}

// demoCorridor links Paris Gare de Lyon to Lyon Part-Dieu.
var demoCorridor = [2]Point{{Lat: 48.8443, Lon: 2.3744}, {Lat: 45.7606, Lon: 4.8593}}

// loadRuns reads cfg.RunsFile or generates runs departing every ten minutes
// from now, with train and schedule ids counting from 1.
func loadRuns(cfg Config, now time.Time) ([]Run, error) {
	if cfg.RunsFile != "" {
		data, err := os.ReadFile(cfg.RunsFile)
		if err != nil {
			return nil, err
		}
		var runs []Run
		if err := json.Unmarshal(data, &runs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", cfg.RunsFile, err)
		}
		return runs, nil
	}
	runs := make([]Run, cfg.Trains)
	for i := range runs {
		dep := now.Add(time.Duration(i) * 10 * time.Minute)
		runs[i] = Run{
			TrainID:    int64(i + 1),
			ScheduleID: int64(i + 1),
			From:       demoCorridor[0],
			To:         demoCorridor[1],
			Departure:  dep,
			Arrival:    dep.Add(2 * time.Hour),
		}
	}
	return runs, nil
}

func runTrains(ctx context.Context, runs []Run, cfg Config, pub publisher) {
	var wg sync.WaitGroup
	for i, r := range runs {
		t := NewSimulatedTrain(r, cfg.MaxDrift, time.Now().UnixNano()+int64(i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			drive(ctx, t, cfg, pub, time.Now)
		}()
	}
	wg.Wait()
}

// drive publishes a sample every interval until the train arrives or ctx is
// cancelled.
func drive(ctx context.Context, t *SimulatedTrain, cfg Config, pub publisher, now func() time.Time) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	drop := rand.New(rand.NewSource(t.TrainID))
	topic := fmt.Sprintf(cfg.TopicPattern, t.TrainID)
	for {
		at := now()
		s := t.Sample(at)
		if drop.Float64() >= cfg.DropRate {
			payload, err := json.Marshal(s)
			if err == nil {
				err = pub.Publish(ctx, "position", topic, payload)
			}
			if err != nil {
				log.Printf("train %d: %v", t.TrainID, err)
			}
		}
		if t.Done(at) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
