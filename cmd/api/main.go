package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/psicoclima/psicoclima-backend/internal/ai"
	"github.com/psicoclima/psicoclima-backend/internal/anonymity"
	"github.com/psicoclima/psicoclima-backend/internal/api"
	"github.com/psicoclima/psicoclima-backend/internal/config"
	"github.com/psicoclima/psicoclima-backend/internal/db"
	"github.com/psicoclima/psicoclima-backend/internal/email"
	"github.com/psicoclima/psicoclima-backend/internal/labels"
	"github.com/psicoclima/psicoclima-backend/internal/narrative"
	"github.com/psicoclima/psicoclima-backend/internal/store"
	"github.com/psicoclima/psicoclima-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Database ──────────────────────────────────────────────────────────────
	pool, queries, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	// ── Store (atomic multi-step writes) ──────────────────────────────────────
	st := store.New(pool, queries)

	// ── Labels ────────────────────────────────────────────────────────────────
	catalog := labels.Default()
	if cfg.LabelsFile != "" {
		catalog, err = labels.LoadFile(cfg.LabelsFile)
		if err != nil {
			return fmt.Errorf("labels: %w", err)
		}
		logger.Info("labels loaded", "file", cfg.LabelsFile, "version", catalog.Version)
	}

	// ── AI providers ──────────────────────────────────────────────────────────
	// Providers are tried strictly in this order, once each. With no keys set
	// the list stays empty and every request takes the template path — the
	// service degrades, it never breaks.
	var providers []ai.Generator
	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel))
	}
	if cfg.DeepSeekAPIKey != "" {
		providers = append(providers, ai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel))
	}
	switch len(providers) {
	case 0:
		logger.Info("ai: no providers configured, template generation only")
	default:
		names := make([]string, len(providers))
		for i, p := range providers {
			names[i] = p.Name()
		}
		logger.Info("ai: provider order", "providers", names)
	}

	// ── Narrative orchestrator ────────────────────────────────────────────────
	service := narrative.NewService(providers, catalog, cfg.MinParticipants, logger)

	// ── Anonymity guard ───────────────────────────────────────────────────────
	guard := anonymity.New(cfg.AnonymityFloor)

	// ── Email (Resend) ────────────────────────────────────────────────────────
	var mailer email.Sender
	if cfg.ResendAPIKey != "" {
		mailer = email.NewResendClient(
			cfg.ResendAPIKey,
			cfg.EmailFromAddr,
			cfg.EmailFromName,
			cfg.BaseURL,
		)
	} else {
		mailer = email.NewNoopSender()
		logger.Info("email: no RESEND_API_KEY, notifications disabled")
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	job := worker.NewJob(queries, st, service, mailer, logger)
	runner := worker.NewRunner(job, st, queries, worker.RunnerConfig{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		MaxRetries:   cfg.MaxRetries,
	}, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		queries,
		st,
		service,
		guard,
		catalog,
		runner, // *Runner satisfies worker.Enqueuer
		api.Config{
			BaseURL: cfg.BaseURL,
			Env:     cfg.Env,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second, // synchronous generation can walk the whole provider list
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Worker and HTTP server both respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the worker pool in a background goroutine. It blocks until ctx is done.
	go runner.Start(ctx)

	// Start the HTTP server in a background goroutine.
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// The worker goroutine exits when ctx is cancelled (already done).
	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool and verifies connectivity before the
// server starts taking traffic.
func openDB(dsn string) (*sql.DB, *db.Queries, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	return pool, db.New(pool), nil
}
