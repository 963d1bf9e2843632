//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"matchcore/internal/matching/models"
	"matchcore/internal/matching/notify"
	"matchcore/internal/platform/config"
	"matchcore/internal/platform/kafka"
	"matchcore/pkg/testutil/containers"
)

func TestKafkaNotifierDeliversPerUserRecords(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rp := containers.GetManager().GetRedpanda(t)
	cfg := config.KafkaConfig{Brokers: rp.Brokers, NotifyTopic: "matching.events.test", ClientID: "matchcore-test"}

	producer, err := kafka.NewClient(cfg)
	require.NoError(t, err)
	require.NotNil(t, producer)
	defer producer.Close()

	require.NoError(t, kafka.EnsureTopic(ctx, producer, cfg.NotifyTopic, 1, 1))
	require.NoError(t, kafka.EnsureTopic(ctx, producer, cfg.NotifyTopic, 1, 1), "existing topic is not an error")
	require.NoError(t, kafka.Health(ctx, producer))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lock := &models.MatchLock{ID: "l1", RunID: "r1", MemberIDs: []string{"a", "b"}}
	n := notify.NewKafkaNotifier(producer, cfg.NotifyTopic)
	require.NoError(t, n.Publish(ctx, models.LockEvents(models.EventMatchConfirmed, lock, now)...))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(cfg.NotifyTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	got := map[string]models.Event{}
	for len(got) < 2 {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, ctx.Err(), "timed out waiting for records")
		fetches.EachRecord(func(r *kgo.Record) {
			var e models.Event
			require.NoError(t, json.Unmarshal(r.Value, &e))
			require.Len(t, r.Headers, 1)
			assert.Equal(t, "event_type", r.Headers[0].Key)
			assert.Equal(t, string(models.EventMatchConfirmed), string(r.Headers[0].Value))
			got[string(r.Key)] = e
		})
	}
	assert.Equal(t, "l1", got["a"].LockID)
	assert.Equal(t, "b", got["b"].UserID)
}
