// Package main provides the MCP server entry point for docqa.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/docqa/internal/app"
	"github.com/bull/docqa/internal/config"
	mcpserver "github.com/bull/docqa/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "config file (default ./docqa.yaml or ~/.config/docqa/config.yaml)")
	flag.Parse()

	// Load .env file if present (local development), ignore if missing (production)
	envErr := godotenv.Load()

	cfg, used, err := config.LoadDefault(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	// stdout carries the stdio transport, so logs go to stderr
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}
	logger.Info("configuration loaded", "path", used, "data_dir", cfg.DataDir,
		"embedder", cfg.Embedder.Type, "vector_index", cfg.VectorIndex.Type, "generator", cfg.Generator.Type)

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	serverCfg := &mcpserver.Config{
		Store:     a.Store,
		Assembler: a.Assembler,
	}
	if a.Generator != nil {
		serverCfg.Answerer = a.Answerer
	}
	var index mcpserver.HealthChecker
	if a.Index != nil {
		serverCfg.Index = a.Index
		index = a.Index
	}
	server := mcpserver.NewServer(serverCfg)

	mux := mcpserver.NewMux(server, mcpserver.NewHealthHandler(a.Store, index), a.Metrics.Handler(), nil)
	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.Server.HTTP {
		// HTTP mode: serve MCP over HTTP for remote clients
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health", "metrics", "/metrics")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// Stdio mode: run MCP server over stdin/stdout for local clients
	// Also start HTTP health endpoint in background for local testing
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting docqa MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
