package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"docpilot/internal/agent"
	"docpilot/internal/config"
	"docpilot/internal/ingest"
	"docpilot/internal/prompts"
	"docpilot/internal/providers"
	"docpilot/internal/review"
	"docpilot/internal/search"
	"docpilot/internal/server"
	"docpilot/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"addr", cfg.Addr,
		"docs_root", cfg.DocsRoot,
		"max_turns", cfg.MaxTurns,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	idx, err := search.Open(cfg.IndexPath)
	if err != nil {
		log.Fatalf("failed to open search index: %v", err)
	}
	defer idx.Close()

	ingester := ingest.New(st, idx, cfg.DocsRoot)
	count, err := ingester.IngestAll(ctx)
	if err != nil {
		log.Fatalf("initial ingest failed: %v", err)
	}
	logger.Info("initial ingest complete", "documents_changed", count)

	if cfg.Watch {
		watcher, err := ingest.NewWatcher(cfg.DocsRoot, ingester)
		if err != nil {
			logger.Warn("file watching disabled", "error", err)
		} else if err := watcher.Start(); err != nil {
			logger.Warn("file watching disabled", "error", err)
		} else {
			defer watcher.Stop()
			logger.Info("watching docs for changes", "root", cfg.DocsRoot)
		}
	}

	llm, model, err := providers.NewLLMClientFromEnv()
	if err != nil {
		log.Fatalf("failed to create LLM client: %v", err)
	}
	logger.Info("LLM client ready", "model", model)

	reviewSvc := review.NewService(st, idx, logger)

	runs := server.NewRunManager(func(sink agent.EventSink) *agent.Orchestrator {
		return &agent.Orchestrator{
			LLM:          llm,
			Storage:      st,
			Search:       idx,
			Persister:    agent.StorePersister{Store: st},
			Sink:         sink,
			Logger:       logger,
			Model:        model,
			SystemPrompt: prompts.Analyst(),
			MaxTurns:     cfg.MaxTurns,
			ToolTimeout:  cfg.ToolTimeout,
		}
	}, logger)

	srv := server.New(st, idx, ingester, reviewSvc, runs, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("server stopped")
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
