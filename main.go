// Package main is the entry point for the prreview CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/prreview/cmd"
	"github.com/danielolaszy/prreview/internal/logging"
)

const version = "1.0.0"

// main executes the root command and exits non-zero on failure. SIGINT and
// SIGTERM cancel the running command.
func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	logging.Debug("starting prreview", "version", version, "log_level", logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()

	if err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
