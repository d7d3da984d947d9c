package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the console config file")
	maxConcurrent := flag.Int("max-concurrent", 64, "maximum in-flight HTTP requests")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, *configPath, *maxConcurrent); err != nil {
		os.Exit(1)
	}
}
