package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/testingh"
	"github.com/leshachaplin/testgenie/internal/worker/redpanda/consumer"
	"github.com/leshachaplin/testgenie/internal/worker/redpanda/producer"
)

const liveTopic = "live-events"

// RedpandaSuite runs the live fan-out against a real broker.
type RedpandaSuite struct {
	suite.Suite

	ctx    context.Context
	cancel context.CancelFunc

	container *testingh.Container
	broker    string

	consumerCfg consumer.Config
	producerCfg producer.Config
}

func TestRedpandaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redpanda integration test in short mode")
	}
	suite.Run(t, new(RedpandaSuite))
}

func (s *RedpandaSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Minute)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var err error
	s.container, err = testingh.Redpanda(func(addr string) error {
		s.broker = addr
		return s.createTopic(addr)
	})
	s.Require().NoError(err)

	s.consumerCfg = consumer.Config{
		Brokers:       []string{s.broker},
		ConsumerGroup: "live-cg",
		Topics:        []string{liveTopic},
		RetryCount:    5,
	}
	s.producerCfg = producer.Config{
		RetryAttempts: 5,
		RetryDelay:    time.Second,
		Brokers:       []string{s.broker},
		Topic:         liveTopic,
	}
}

func (s *RedpandaSuite) TearDownSuite() {
	s.cancel()
	s.NoError(s.container.Purge())
}

func (s *RedpandaSuite) createTopic(addr string) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(addr))
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(s.ctx); err != nil {
		return err
	}

	resp, err := kadm.NewClient(client).CreateTopics(s.ctx, 1, 1, nil, liveTopic)
	if err != nil {
		return err
	}
	for _, r := range resp {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// newQueue connects a queue whose consumer joins group.
func (s *RedpandaSuite) newQueue(group string) *RedpandaQueue {
	cfg := s.consumerCfg
	cfg.ConsumerGroup = group

	c, err := consumer.NewConsumer(s.ctx, cfg, make(chan error, 1), zerolog.Nop())
	s.Require().NoError(err)

	p, err := producer.NewProducer(s.ctx, s.producerCfg, zerolog.Nop())
	s.Require().NoError(err)

	return NewRedpandaQueue(p, c)
}

func (s *RedpandaSuite) TestFanOut_EveryReplicaReceives() {
	const replicas = 2

	var (
		mu   sync.Mutex
		seen = map[int][]string{}
	)

	pools := make([]*Pool, 0, replicas)
	queues := make([]*RedpandaQueue, 0, replicas)
	for r := 0; r < replicas; r++ {
		q := s.newQueue("fanout-replica-" + string(rune('a'+r)))
		p := New(s.ctx, Config{NumWorkers: 2}, q, zerolog.Nop())
		p.Start(func(_ context.Context, ev domain.LiveEvent) error {
			if ev.Username != "fanout" {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			seen[r] = append(seen[r], ev.Event)
			return nil
		})
		pools = append(pools, p)
		queues = append(queues, q)
	}

	pools[0].Process(domain.LiveEvent{Event: domain.ActionInstallStart, Username: "fanout"})
	pools[1].Process(domain.LiveEvent{Event: domain.ActionInstallSuccess, Username: "fanout"})

	s.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen[0]) == 2 && len(seen[1]) == 2
	}, time.Minute, 100*time.Millisecond)

	mu.Lock()
	s.ElementsMatch(seen[0], seen[1])
	mu.Unlock()

	for r := range pools {
		pools[r].GracefulStop()
		s.NoError(queues[r].Close())
	}
}
