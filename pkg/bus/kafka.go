// Package bus adapts the flight-created event stream to Kafka.
//
// Events are keyed by flight id, so all events for one flight land on
// the same partition and are consumed in order. Delivery is
// at-least-once: the consumer commits offsets only after the handler
// reports success, so a crash mid-processing replays the event.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/ankit/flywise/config"
	"github.com/ankit/flywise/internal/model"
)

// publishRetries bounds the publish attempts for one event. The admin
// path surfaces the final failure instead of dropping the event.
const publishRetries = 3

// Publisher writes flight-created events to the bus.
type Publisher struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

// NewPublisher creates a Kafka-backed publisher. The hash balancer maps
// the flight-id key to a stable partition.
func NewPublisher(cfg config.KafkaConfig, logger *logrus.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequireAll,
		},
		logger: logger,
	}
}

// PublishFlightCreated publishes the event, retrying transient broker
// failures with a short backoff. Returns the last error if all attempts
// fail; the caller decides how to surface it.
func (p *Publisher) PublishFlightCreated(ctx context.Context, event *model.FlightCreatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("bus: marshal flight-created: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.FlightID.String()),
		Value: payload,
	}

	var lastErr error
	for attempt := 1; attempt <= publishRetries; attempt++ {
		lastErr = p.writer.WriteMessages(ctx, msg)
		if lastErr == nil {
			return nil
		}
		p.logger.WithFields(logrus.Fields{
			"flight_id": event.FlightID,
			"attempt":   attempt,
		}).WithError(lastErr).Warn("flight-created publish failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	return fmt.Errorf("bus: publish flight-created %s: %w", event.FlightID, lastErr)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// ─── Consumer ───────────────────────────────────────────────

// Handler processes one flight-created event. A nil return acks the
// event; a non-nil return leaves it uncommitted for redelivery.
type Handler func(ctx context.Context, event *model.FlightCreatedEvent) error

// Consumer reads flight-created events within a consumer group.
type Consumer struct {
	reader *kafka.Reader
	logger *logrus.Logger
}

// NewConsumer creates a Kafka-backed consumer. One group member per
// deployment keeps generator work serialised per partition.
func NewConsumer(cfg config.KafkaConfig, logger *logrus.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		logger: logger,
	}
}

// Run consumes events until ctx is cancelled. Offsets are committed only
// after the handler succeeds; malformed payloads are logged and acked
// because redelivery cannot fix them.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("bus: fetch: %w", err)
		}

		var event model.FlightCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.WithFields(logrus.Fields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).WithError(err).Error("malformed flight-created payload, acking")
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("bus: commit malformed: %w", err)
			}
			continue
		}

		// Transient failure: retry the same event in place. The offset
		// stays uncommitted, so a crash also replays it via the group.
		for {
			err := handle(ctx, &event)
			if err == nil {
				break
			}
			c.logger.WithFields(logrus.Fields{
				"flight_id": event.FlightID,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).WithError(err).Warn("event handling failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("bus: commit: %w", err)
		}
	}
}

// Close closes the underlying reader and leaves the consumer group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// HealthCheck dials the first broker and returns nil if reachable.
func HealthCheck(ctx context.Context, cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("bus: no brokers configured")
	}
	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(dialCtx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("bus: dial %s: %w", cfg.Brokers[0], err)
	}
	return conn.Close()
}
