package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/goleak"

	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/worker/redpanda/consumer"
	"github.com/leshachaplin/testgenie/internal/worker/redpanda/producer"
)

func (i *RedpandaSuite) TestWorker_RedpandaQueue() {
	cases := map[string]struct {
		cfg        Config
		taskAmount int
	}{
		"ok": {
			cfg:        Config{NumWorkers: 10},
			taskAmount: 10,
		},
		"ok - tasks more than workers": {
			cfg:        Config{NumWorkers: 4},
			taskAmount: 200,
		},
		"ok - tasks less than workers": {
			cfg:        Config{NumWorkers: 50},
			taskAmount: 10,
		},
	}

	for name, tc := range cases {
		i.Run(name, func() {
			defer goleak.VerifyNone(i.T(), goleak.IgnoreCurrent())
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute*2)
			defer cancel()

			consumerCfg := i.consumerCfg
			consumerCfg.ConsumerGroup = fmt.Sprintf("%s-%s", i.consumerCfg.ConsumerGroup, name)

			consumerErrorChan := make(chan error, 1)
			consumer, err := consumer.NewConsumer(ctx, consumerCfg, consumerErrorChan, log.Logger)
			i.Require().NoError(err)

			producer, err := producer.NewProducer(
				i.ctx,
				i.producerCfg,
				log.With().Str("producer", "Publish").Logger(),
			)
			i.Require().NoError(err)

			var handled atomic.Int64
			execFn := func(ctx context.Context, ev domain.LiveEvent) error {
				if ev.Event == name {
					handled.Add(1)
				}
				return nil
			}

			l := log.With().Str("WORKER", "PROCESS").Logger()
			queue := NewRedpandaQueue(producer, consumer)
			worker := New(ctx, tc.cfg, queue, l)
			worker.Start(execFn)

			for k := 0; k < tc.taskAmount; k++ {
				worker.Process(domain.LiveEvent{Event: name, Timestamp: time.Now().Format(time.RFC3339)})
			}

			i.Eventually(func() bool {
				return handled.Load() >= int64(tc.taskAmount)
			}, time.Minute, 100*time.Millisecond)

			worker.GracefulStop()
			i.NoError(queue.Close())
		})
	}
}
