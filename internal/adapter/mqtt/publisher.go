// Package mqtt publishes recommendations to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/crop-advisor-service/internal/config"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

const (
	qosAtLeastOnce  = 1
	publishTimeout  = 5 * time.Second
	connectPoll     = 200 * time.Millisecond
	disconnectQuiet = 250
)

var errNotConnected = errors.New("mqtt client not connected")

// Publisher writes one JSON message per recommendation to
// <topic>/<place key>. It implements pipeline.Publisher.
type Publisher struct {
	client paho.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher configures an auto-reconnecting client. Call Connect before
// publishing.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return &Publisher{
		client: paho.NewClient(opts),
		topic:  cfg.MQTTTopic,
		logger: logger,
	}
}

// Connect waits for the initial broker connection or ctx cancellation.
func (p *Publisher) Connect(ctx context.Context) error {
	if p.client.IsConnected() {
		return nil
	}
	token := p.client.Connect()
	for {
		if token.WaitTimeout(connectPoll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Publish sends every recommendation in the batch. Publishing stops at the
// first failure.
func (p *Publisher) Publish(ctx context.Context, batch domain.BatchResult) error {
	if len(batch.Recommendations) == 0 {
		return nil
	}
	if !p.client.IsConnected() {
		return errNotConnected
	}
	topic := p.Topic(batch.Place)
	for _, rec := range batch.Recommendations {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal recommendation: %w", err)
		}
		if err := p.publish(ctx, topic, data); err != nil {
			return err
		}
	}
	p.logger.Debug("recommendations published", "topic", topic, "count", len(batch.Recommendations))
	return nil
}

// Topic is the per-place topic recommendations for place are published on.
func (p *Publisher) Topic(place domain.Place) string {
	return p.topic + "/" + place.Key()
}

func (p *Publisher) publish(ctx context.Context, topic string, data []byte) error {
	token := p.client.Publish(topic, qosAtLeastOnce, false, data)
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		p.logger.Error("failed to publish recommendation", "topic", topic, "error", err)
		return fmt.Errorf("publish recommendation: %w", err)
	}
	return nil
}

// Close disconnects from the broker, letting in-flight messages drain briefly.
func (p *Publisher) Close() error {
	p.client.Disconnect(disconnectQuiet)
	p.logger.Info("mqtt disconnected")
	return nil
}
