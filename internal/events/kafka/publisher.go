// Package kafka publishes ledger events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"transferledger/internal/interfaces"
)

// Topic carrying TransactionCompleted events.
const Topic = "transaction_completed"

// Publisher writes events to Kafka behind a circuit breaker, so a dead
// broker fails fast instead of stalling every post-commit publish.
type Publisher struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker
}

// NewPublisher creates a publisher for the given broker addresses.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    Topic,
			Balancer: &kafka.LeastBytes{},
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "kafka-publisher",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (p *Publisher) Publish(ctx context.Context, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, kafka.Message{Value: data})
	})
	return err
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
