package waiter

import (
	"os"
	"syscall"
)

type waiterCfg struct {
	signals []os.Signal
}

func defaultCfg() waiterCfg {
	return waiterCfg{
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

type Option func(*waiterCfg)

func WithSignals(signals ...os.Signal) Option {
	return func(cfg *waiterCfg) {
		cfg.signals = signals
	}
}
