// Package main is the entry point of the OpenWrap bridge host
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/reloved/flutter-openwrap-sdk/internal/config"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

func main() {
	cfg, err := ParseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "owbridge: %v\n", err)
		os.Exit(2)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Format = cfg.LogFormat
	logCfg.Output = cfg.LogOutputFor()
	logger.Init(logCfg)
	log := logger.Log

	bridge, err := NewBridge(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bridge")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := bridge.Run(ctx)
	if runErr != nil {
		log.Error().Err(runErr).Msg("Bridge stopped with error")
	} else {
		log.Info().Msg("Shutdown signal received or input closed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := bridge.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Bridge forced to shutdown")
	}
	if runErr != nil {
		os.Exit(1)
	}
}
