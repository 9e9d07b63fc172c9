//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "patrol/pkg/platform/audit"
	"patrol/pkg/platform/audit/publisher"
	kafkasink "patrol/pkg/platform/audit/sink/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "patrol.audit"

func startRedpanda(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.1.7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate redpanda container: %v", err)
		}
	})

	broker, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	admClient, err := kgo.NewClient(kgo.SeedBrokers(broker))
	require.NoError(t, err)
	defer admClient.Close()

	_, err = kadm.NewClient(admClient).CreateTopics(ctx, 1, 1, nil, testTopic)
	require.NoError(t, err)

	return broker
}

func consumeEvents(t *testing.T, broker string, want int) []*kgo.Record {
	t.Helper()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var records []*kgo.Record
	deadline := time.Now().Add(30 * time.Second)
	for len(records) < want && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		fetches := consumer.PollFetches(ctx)
		cancel()
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	require.Len(t, records, want)
	return records
}

func TestSinkAppendRoundTrip(t *testing.T) {
	broker := startRedpanda(t)

	sink, err := kafkasink.New([]string{broker}, testTopic)
	require.NoError(t, err)
	defer sink.Close()

	event := audit.Event{
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Action:    audit.ActionTemplatePublished,
		Subject:   "5d3f0a52-19e7-4a43-8f0f-1c5a39a1f001",
		LineageID: "5d3f0a52-19e7-4a43-8f0f-1c5a39a1f002",
		Detail:    "archived sibling 5d3f0a52-19e7-4a43-8f0f-1c5a39a1f003",
	}
	require.NoError(t, sink.Append(event))

	records := consumeEvents(t, broker, 1)
	assert.Equal(t, event.Subject, string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, event, got)
}

func TestPublisherDrainsToKafkaOnClose(t *testing.T) {
	broker := startRedpanda(t)

	sink, err := kafkasink.New([]string{broker}, testTopic)
	require.NoError(t, err)

	pub := publisher.New(sink, publisher.WithAsyncBuffer(16))
	ctx := context.Background()
	subjects := []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
		"33333333-3333-3333-3333-333333333333",
	}
	for _, subject := range subjects {
		require.NoError(t, pub.Emit(ctx, audit.Event{
			Timestamp: time.Now().UTC(),
			Action:    audit.ActionVisitRecorded,
			Subject:   subject,
		}))
	}
	// Close drains the buffer and closes the sink.
	require.NoError(t, pub.Close())

	records := consumeEvents(t, broker, len(subjects))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[string(r.Key)] = true
	}
	for _, subject := range subjects {
		assert.True(t, seen[subject], "missing event for subject %s", subject)
	}
}
