package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/mock/gomock"

	"matchcore/internal/matching/models"
	"matchcore/internal/matching/ports/mocks"
	"matchcore/pkg/platform/circuit"
	"matchcore/pkg/platform/sentinel"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	calls   int
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func sampleEvents() []models.Event {
	lock := &models.MatchLock{ID: "lock-1", RunID: "r1", MemberIDs: []string{"a", "b"}}
	return models.LockEvents(models.EventMatchConfirmed, lock, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
}

func TestKafkaNotifier_Publish(t *testing.T) {
	producer := &fakeProducer{}
	n := NewKafkaNotifier(producer, "matching-events")

	require.NoError(t, n.Publish(context.Background(), sampleEvents()...))
	require.Len(t, producer.records, 2)

	rec := producer.records[0]
	assert.Equal(t, "matching-events", rec.Topic)
	assert.Equal(t, "a", string(rec.Key))
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "match.confirmed", string(rec.Headers[0].Value))

	var decoded models.Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, "lock-1", decoded.LockID)
	assert.Equal(t, []string{"a", "b"}, decoded.MemberIDs)
}

func TestKafkaNotifier_NoEvents(t *testing.T) {
	producer := &fakeProducer{}
	n := NewKafkaNotifier(producer, "matching-events")
	require.NoError(t, n.Publish(context.Background()))
	assert.Zero(t, producer.calls)
}

func TestKafkaNotifier_BreakerFailsFast(t *testing.T) {
	producer := &fakeProducer{err: errors.New("leader not available")}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }))
	var logs bytes.Buffer
	n := NewKafkaNotifier(producer, "matching-events", WithBreaker(breaker),
		WithKafkaLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	for range 2 {
		err := n.Publish(context.Background(), sampleEvents()...)
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
	}
	assert.True(t, breaker.IsOpen())
	assert.Contains(t, logs.String(), "notification circuit opened")

	err := n.Publish(context.Background(), sampleEvents()...)
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 2, producer.calls, "open breaker skips the broker")

	now = now.Add(time.Minute)
	producer.err = nil
	require.NoError(t, n.Publish(context.Background(), sampleEvents()...))
	assert.False(t, breaker.IsOpen())
}

func TestFanout(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockNotifier(ctrl)
	second := mocks.NewMockNotifier(ctrl)
	events := sampleEvents()

	first.EXPECT().Publish(gomock.Any(), events[0], events[1]).Return(nil)
	second.EXPECT().Publish(gomock.Any(), events[0], events[1]).Return(errors.New("down"))

	err := Fanout{first, second}.Publish(context.Background(), events...)
	assert.EqualError(t, err, "down")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, n.Publish(context.Background(), sampleEvents()...))
	assert.Contains(t, buf.String(), "type=match.confirmed")
	assert.Contains(t, buf.String(), "user_id=b")
}
