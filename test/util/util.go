// Package util provides helpers shared across integration tests.
//
// StartPostgres launches a disposable PostgreSQL server in a Docker container
// and returns a pgx DSN with a cleanup function.
//
// StartMosquitto launches a disposable Mosquitto broker for MQTT-based tests.
// It returns the broker URL and a cleanup function.
package util

import (
	"context"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MosquittoReadyTimeout = 5 * time.Second
	PostgresReadyTimeout  = 60 * time.Second

	pollInterval = 50 * time.Millisecond
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
`

// StartPostgres runs postgres:16-alpine and returns its DSN.
func StartPostgres(ctx context.Context) (string, func(), error) {
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "ttms",
			"POSTGRES_PASSWORD": "ttms",
			"POSTGRES_DB":       "ttms",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(PostgresReadyTimeout),
	}
	cont, cleanup, err := start(ctx, req)
	if err != nil {
		return "", nil, err
	}
	hostPort, err := cont.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return fmt.Sprintf("postgres://ttms:ttms@%s/ttms?sslmode=disable", hostPort), cleanup, nil
}

// StartMosquitto runs eclipse-mosquitto with anonymous access and waits
// until a client can connect.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			Reader:            strings.NewReader(mosquittoConf),
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, cleanup, err := start(ctx, req)
	if err != nil {
		return "", nil, err
	}
	broker, err := cont.PortEndpoint(ctx, "1883/tcp", "tcp")
	if err != nil {
		cleanup()
		return "", nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(waitCtx, broker); err != nil {
		cleanup()
		return "", nil, err
	}
	return broker, cleanup, nil
}

// start runs the container and returns it with a terminating cleanup.
func start(ctx context.Context, req tc.ContainerRequest) (tc.Container, func(), error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return nil, nil, err
	}
	return cont, func() { _ = cont.Terminate(context.Background()) }, nil
}

func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("ttms-probe").SetConnectTimeout(time.Second)
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		if token.WaitTimeout(time.Second) && token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("mosquitto not ready at %s: %w", broker, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}
