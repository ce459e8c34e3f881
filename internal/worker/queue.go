package worker

import (
	"context"
	"errors"

	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/worker/redpanda/consumer"
	"github.com/leshachaplin/testgenie/internal/worker/redpanda/producer"
)

// Queue carries live events between collector replicas.
type Queue interface {
	Publish(ctx context.Context, ev domain.LiveEvent) error
	Consume(ctx context.Context, out chan<- domain.LiveEvent, done <-chan struct{})
}

// RedpandaQueue pairs a producer and a consumer on the same topic.
type RedpandaQueue struct {
	producer *producer.Producer
	consumer *consumer.Consumer
}

func NewRedpandaQueue(p *producer.Producer, c *consumer.Consumer) *RedpandaQueue {
	return &RedpandaQueue{producer: p, consumer: c}
}

func (r *RedpandaQueue) Publish(ctx context.Context, ev domain.LiveEvent) error {
	return r.producer.Publish(ctx, ev)
}

func (r *RedpandaQueue) Consume(ctx context.Context, out chan<- domain.LiveEvent, done <-chan struct{}) {
	r.consumer.Consume(ctx, out, done)
}

func (r *RedpandaQueue) Close() error {
	return errors.Join(r.consumer.Close(), r.producer.Close())
}
