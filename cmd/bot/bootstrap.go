package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"aster-trading-bot/internal/engine"
	"aster-trading-bot/internal/eod"
	"aster-trading-bot/internal/eod/eodobs"
	"aster-trading-bot/internal/exchange/aster"
	"aster-trading-bot/internal/exchange/gatewayobs"
	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/llm"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/store"
	"aster-trading-bot/internal/trace"
	"aster-trading-bot/internal/tradelog"

	"github.com/joho/godotenv"
)

// initializeSystem initializes environment, logger, and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	// Initialize daily summarizer with observability
	initializeEOD()

	return nil
}

// initializeEOD wraps the default daily summarizer with observability
func initializeEOD() {
	eod.SetDefaultSummarizer(eodobs.Wrap(eod.NewSummarizer()))
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeGateway initializes and returns the exchange gateway with observability
func initializeGateway(ctx context.Context, cfg *store.Config) interfaces.Gateway {
	gw := aster.New(aster.Params{
		Mode:         cfg.Mode,
		BaseURL:      cfg.Exchange.BaseURL,
		APIKey:       os.Getenv("ASTER_API_KEY"),
		APISecret:    os.Getenv("ASTER_API_SECRET"),
		RecvWindowMs: int(cfg.Exchange.RecvWindowMs),
		Timeout:      time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	})

	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}

	// Wrap with observability middleware
	return gatewayobs.Wrap(gw)
}

// initializeExecutor initializes and returns the execution engine
func initializeExecutor(cfg *store.Config, gw interfaces.Gateway) interfaces.Executor {
	return engine.New(cfg, gw)
}

// initializeDecider initializes and returns the decider with observability
func initializeDecider(cfg *store.Config) interfaces.Decider {
	return llm.New(cfg)
}
