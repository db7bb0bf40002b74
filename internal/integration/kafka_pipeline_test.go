//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-feed-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-feed-service/internal/config"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/couchcryptid/quake-feed-service/internal/pipeline"
	"github.com/couchcryptid/quake-feed-service/internal/retrieval"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "test-earthquakes"

// publishedMessage holds a deserialized message read from the topic.
type publishedMessage struct {
	Event   domain.Earthquake
	Key     string
	Headers map[string]string
}

// readPublished reads a single message from the consumer and deserializes it.
func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.Earthquake
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal message")

	return publishedMessage{
		Event:   event,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaWriter verifies that kafka.Writer publishes keyed earthquakes with
// band and fetch-time headers.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, nil, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	mag := 6.1
	place := "7 km SSW of Sındırgı, Turkey"
	require.NoError(t, writer.LoadBatch(ctx, []domain.Earthquake{
		{ID: "us6000qw60", Magnitude: &mag, Place: &place},
	}))

	pm := readPublished(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "us6000qw60", pm.Key)
	assert.Equal(t, "6+", pm.Headers["magnitude_band"])
	_, err := time.Parse(time.RFC3339, pm.Headers["fetched_at"])
	assert.NoError(t, err, "fetched_at should be valid RFC3339")

	require.NotNil(t, pm.Event.Magnitude)
	assert.Equal(t, 6.1, *pm.Event.Magnitude)
	require.NotNil(t, pm.Event.Place)
	assert.Equal(t, place, *pm.Event.Place)
}

// TestPollerEndToEnd wires feed client → planner → poller → Kafka writer and
// verifies each refined event is published exactly once.
func TestPollerEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)
	feed := fixtureFeed(t)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewRealClock()

	client := usgs.NewClient(feed.URL, 5*time.Second, 5000, metrics, discardLogger())
	planner := retrieval.NewPlanner(client, domain.Turkey, clock, metrics, discardLogger())
	writer := kafka.NewWriter(cfg, clock, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p, err := pipeline.New(planner, writer, clock, discardLogger(), metrics, pipeline.Options{
		Interval:      time.Second,
		SeenCacheSize: 100,
	})
	require.NoError(t, err)

	pollCtx, pollCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pollCtx) }()

	consumer := newConsumer(t, broker)
	want := []string{"us6000qw7a", "us6000qw6k", "us6000qw60", "us6000qw5z"}
	got := make([]string, 0, len(want))
	for len(got) < len(want) {
		pm := readPublished(ctx, t, consumer)
		assert.Equal(t, pm.Key, pm.Event.ID)
		assert.NotEmpty(t, pm.Headers["magnitude_band"])
		got = append(got, pm.Event.ID)
	}
	assert.Equal(t, want, got)

	// Later polls see the same feed and must not republish.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no duplicate messages")

	pollCancel()
	require.NoError(t, <-errCh)
	assert.True(t, p.Ready())
}
