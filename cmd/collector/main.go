package main

import (
	"github.com/leshachaplin/testgenie/app"
	"github.com/leshachaplin/testgenie/internal/config"
)

func main() {
	app.New(config.Load).Start()
}
