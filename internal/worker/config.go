package worker

const defaultOutboxSize = 256

type Config struct {
	NumWorkers int `mapstructure:"num_workers"`
	QueueSize  int `mapstructure:"queue_size"`
	// OutboxSize bounds the events waiting to be published; overflow is dropped.
	OutboxSize int `mapstructure:"outbox_size"`
}
