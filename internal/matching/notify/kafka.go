package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"matchcore/internal/matching/models"
	"matchcore/pkg/platform/circuit"
	"matchcore/pkg/platform/sentinel"
)

// Producer is the subset of *kgo.Client the notifier uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaNotifier publishes one record per event, keyed by user id so a user's
// events stay ordered within a partition.
type KafkaNotifier struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

type KafkaOption func(*KafkaNotifier)

func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(n *KafkaNotifier) {
		n.breaker = b
	}
}

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(n *KafkaNotifier) {
		n.logger = logger
	}
}

func NewKafkaNotifier(producer Producer, topic string, opts ...KafkaOption) *KafkaNotifier {
	n := &KafkaNotifier{
		producer: producer,
		topic:    topic,
		breaker:  circuit.New("notify-kafka"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Publish produces events synchronously. While the breaker is open it fails
// fast with sentinel.ErrUnavailable.
func (n *KafkaNotifier) Publish(ctx context.Context, events ...models.Event) error {
	if len(events) == 0 {
		return nil
	}
	if !n.breaker.Allow() {
		return fmt.Errorf("publish %d events: %w", len(events), sentinel.ErrUnavailable)
	}

	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: n.topic,
			Key:   []byte(e.UserID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.Type)},
			},
		})
	}

	if err := n.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		if _, change := n.breaker.RecordFailure(); change.Opened {
			n.logger.WarnContext(ctx, "notification circuit opened", "breaker", n.breaker.Name(), "error", err)
		}
		return fmt.Errorf("produce events: %w", err)
	}
	if _, change := n.breaker.RecordSuccess(); change.Closed {
		n.logger.InfoContext(ctx, "notification circuit closed", "breaker", n.breaker.Name())
	}
	return nil
}
