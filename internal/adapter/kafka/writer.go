package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/config"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the Writer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes earthquakes to a Kafka topic, keyed by event ID so that
// revisions of the same event land on the same partition.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer messageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newWriter(w, clock, logger)
}

func newWriter(w messageWriter, clock clockwork.Clock, logger *slog.Logger) *Writer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer{writer: w, clock: clock, logger: logger}
}

// LoadBatch serializes and publishes earthquakes in a single WriteMessages
// call. All messages in a batch share the same fetched_at header.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.Earthquake) error {
	if len(events) == 0 {
		return nil
	}
	fetchedAt := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i], fetchedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	w.logger.Debug("published batch", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Earthquake into a Kafka message.
func serializeToMessage(event domain.Earthquake, fetchedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize earthquake %s: %w", event.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "magnitude_band", Value: []byte(domain.BandLabel(event.Magnitude))},
			{Key: "fetched_at", Value: []byte(fetchedAt.Format(time.RFC3339))},
		},
	}, nil
}
