//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("crop-advisor-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = tc.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// startPostgres runs PostgreSQL and returns a connection URL.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "crops",
			"POSTGRES_PASSWORD": "crops",
			"POSTGRES_DB":       "crops",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = tc.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://crops:crops@%s/crops?sslmode=disable", net.JoinHostPort(host, port.Port()))
}

// stubWeather serves fixed Fahrenheit figures for any place.
type stubWeather struct {
	high, low, historic int
}

func (s stubWeather) Get(_ context.Context, place domain.Place) (domain.WeatherReport, error) {
	return domain.WeatherReport{
		Place:           place,
		ForecastHigh:    domain.DegreesF(s.high),
		ForecastLow:     domain.DegreesF(s.low),
		HistoricAverage: domain.DegreesF(s.historic),
		ObservedAt:      time.Now().UTC(),
	}, nil
}

func cropRecord(name string, absLow, optLow, optHigh, absHigh float64) domain.CropRecord {
	return domain.CropRecord{
		Name:         name,
		AbsoluteLow:  absLow,
		OptimalLow:   optLow,
		OptimalHigh:  optHigh,
		AbsoluteHigh: absHigh,
		Scale:        domain.Fahrenheit,
	}
}
