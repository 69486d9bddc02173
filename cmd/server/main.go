package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/octorag/octorag/internal/api"
	"github.com/octorag/octorag/internal/config"
	"github.com/octorag/octorag/internal/embedding"
	"github.com/octorag/octorag/internal/llm"
	"github.com/octorag/octorag/internal/pipeline"
	"github.com/octorag/octorag/internal/search"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	es := search.NewClient(search.Config{
		URL:      cfg.ESURL,
		Username: cfg.ESUsername,
		Password: cfg.ESPassword,
		Timeout:  cfg.ESTimeout,
	})
	embed := embedding.NewClient(embedding.Config{
		BaseURL:   cfg.OpenAIAPIBase,
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.EmbedModel,
		Timeout:   cfg.LLMTimeout,
		CacheSize: cfg.EmbedCacheSize,
	})
	llmc := llm.NewClient(llm.Config{
		BaseURL: cfg.OpenAIAPIBase,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, embed, llmc, es, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		llmc.Close()
		embed.Close()
		es.Close()
	}()

	log.Info("starting octorag", "port", cfg.Port, "index", cfg.DefaultIndex)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
