package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskmesh/coordinator/internal/config"
	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")
	log := logger.Get()
	log.Info().Msg("starting coordinator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup, err := supervisor.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize coordinator")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	if err := sup.Run(ctx); err != nil {
		log.Error().Err(err).Msg("coordinator exited with error")
		os.Exit(1)
	}
}
