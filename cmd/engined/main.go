// Matchbook — a single-instrument continuous double-auction matching engine.
//
// Architecture:
//
//	main.go              — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go     — orchestrator: feed → dual book → journal/sink/stats/dashboard
//	book/dualbook.go     — the matcher: price-time priority crossing, event emission
//	book/sidebook.go     — one side's price levels (B-tree) + id index for cancels
//	feed/replay.go       — NDJSON message replay from a capture file or stdin
//	feed/generator.go    — random flow generator for simulation and soak runs
//	journal/journal.go   — NDJSON event log (outbound drop-copy, never read back)
//	sink/webhook.go      — batched fill delivery to an HTTP receiver
//	stats/flow.go        — rolling trade-flow window for the dashboard
//	audit/checker.go     — post-execute book integrity verification
//	api/server.go        — dashboard: health, snapshot, live WebSocket stream
//
// The book is single-writer by construction: one loop goroutine owns it, the
// dashboard reads a cached snapshot, and messages are applied in arrival
// order — that order is the engine's definition of time priority.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"matchbook/internal/api"
	"matchbook/internal/config"
	"matchbook/internal/engine"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MATCHBOOK_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// Create engine
	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	// Start dashboard API server if enabled
	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, eng.StreamEvents(), logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("matchbook started",
		"symbol", cfg.Instrument.Symbol,
		"feed_mode", cfg.Feed.Mode,
		"journal", cfg.Journal.Enabled,
		"audit", cfg.Audit.Enabled,
	)

	// Wait for a shutdown signal or the feed draining
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-eng.Done():
		if err := eng.Err(); err != nil {
			logger.Error("engine halted", "error", err)
			exitCode = 1
		} else {
			logger.Info("feed drained", "processed", eng.Processed())
		}
	}

	// Stop dashboard first
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	eng.Stop()
	os.Exit(exitCode)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
