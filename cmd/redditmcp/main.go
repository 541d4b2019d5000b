// Package main is the entry point for the redditmcp gateway.
package main

import (
	"os"

	"github.com/redditmcp/redditmcp/cmd/redditmcp/app"
	"github.com/redditmcp/redditmcp/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
