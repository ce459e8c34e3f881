package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/leshachaplin/testgenie/internal/domain"
)

const defaultPublishTimeout = 5 * time.Second

type Config struct {
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
}

// Producer writes live events to a single topic, one record per event.
type Producer struct {
	attempts int
	delay    time.Duration
	timeout  time.Duration
	client   *kgo.Client
	logger   zerolog.Logger
}

func NewProducer(ctx context.Context, cfg Config, logger zerolog.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kgo new client: %w", err)
	}

	if err = client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping brokers: %w", err)
	}

	p := &Producer{
		attempts: max(cfg.RetryAttempts, 1),
		delay:    cfg.RetryDelay,
		timeout:  cfg.PublishTimeout,
		client:   client,
		logger:   logger,
	}
	if p.timeout <= 0 {
		p.timeout = defaultPublishTimeout
	}
	return p, nil
}

func (p *Producer) Close() error {
	p.client.Close()
	return nil
}

// Publish sends ev keyed by its action so one action keeps its order within a partition.
func (p *Producer) Publish(ctx context.Context, ev domain.LiveEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}

	record := kgo.KeyStringRecord(ev.Event, string(b))
	record.Headers = append(record.Headers, kgo.RecordHeader{Key: "user", Value: []byte(ev.Username)})

	return p.retry(ctx, func() error {
		produceCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		if err := p.client.ProduceSync(produceCtx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce sync: %w", err)
		}
		return nil
	})
}

// retry runs fn up to p.attempts times, waiting delay*n after the n-th failure.
func (p *Producer) retry(ctx context.Context, fn func() error) error {
	var err error
	for n := 1; n <= p.attempts; n++ {
		if err = fn(); err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if n == p.attempts {
			break
		}

		p.logger.Warn().Err(err).Int("attempt", n).Msg("publish live event failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay * time.Duration(n)):
		}
	}
	return err
}
