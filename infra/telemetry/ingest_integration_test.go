package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/auth"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/position"
	"github.com/kilianp07/ttms/infra/logger"
	infmqtt "github.com/kilianp07/ttms/infra/mqtt"
	"github.com/kilianp07/ttms/test/util"
)

type syncReporter struct {
	mu      sync.Mutex
	reports []position.Report
}

func (s *syncReporter) ReportPosition(_ context.Context, _ auth.Actor, r position.Report) (*model.TrainPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return &model.TrainPosition{TrainID: r.TrainID}, nil
}

func (s *syncReporter) received() []position.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]position.Report(nil), s.reports...)
}

func TestIngestOverBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("broker tests skipped in -short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("mosquitto unavailable: %v", err)
	}
	t.Cleanup(cleanup)

	mqttCfg := infmqtt.Config{Broker: broker, ClientID: "ttms-it"}
	rep := &syncReporter{}
	in, err := NewIngestor(mqttCfg, Config{Enabled: true, QoS: 1}, rep, prometheus.NewRegistry())
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- in.Start(runCtx) }()

	pub, err := infmqtt.NewPublisher(mqttCfg.WithClientSuffix("sim"), logger.NopLogger{})
	require.NoError(t, err)
	defer pub.Disconnect()

	payload := []byte(`{"schedule_id":1,"latitude":47.2,"longitude":3.1,"speed_kmh":140,"delay_minutes":3}`)
	assert.Eventually(t, func() bool {
		_ = pub.Publish(ctx, "position", "ttms/trains/100/position", payload)
		return len(rep.received()) > 0
	}, 10*time.Second, 200*time.Millisecond)

	got := rep.received()
	require.NotEmpty(t, got)
	assert.Equal(t, int64(100), got[0].TrainID)
	assert.Equal(t, model.StatusDelayed, got[0].Status)

	stop()
	require.NoError(t, <-done)
}
