// Command reflowd runs the reflow work-session daemon: it loads stored
// sessions, serves the HTTP API, and shuts down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"reflow/internal/config"
	"reflow/internal/daemon"
	"reflow/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to ~/.config/reflow/config.toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}
	defer d.Stop()

	select {
	case <-ctx.Done():
		logger.Info("reflowd shutting down")
	case err := <-d.ServeErr():
		if err != nil {
			logger.Error("api server failed", logging.Error(err))
		}
	}
}
