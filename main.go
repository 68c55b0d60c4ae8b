package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/storecrawler/logger"
)

func main() {
	// Initialize logger first
	logger.Init()

	// Cancel running crawls on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(os.Stdout)
	err := NewRootCmd(app).ExecuteContext(ctx)
	app.Cleanup()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
