package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leshachaplin/testgenie/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "1.2.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.New(version).Execute(ctx, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}
