// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command translator runs the chunked translation pipeline service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/ocms-translator/internal/cache"
	"github.com/olegiv/ocms-translator/internal/config"
	"github.com/olegiv/ocms-translator/internal/handler"
	"github.com/olegiv/ocms-translator/internal/invoker"
	"github.com/olegiv/ocms-translator/internal/logging"
	"github.com/olegiv/ocms-translator/internal/pipeline"
	"github.com/olegiv/ocms-translator/internal/provider"
	"github.com/olegiv/ocms-translator/internal/scheduler"
	"github.com/olegiv/ocms-translator/internal/store"
	"github.com/olegiv/ocms-translator/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "translator - chunked multi-provider blog translation pipeline\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TRANSLATOR_DB_DRIVER       sqlite|postgres (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TRANSLATOR_DB_DSN          Database path or DSN (default: ./data/translator.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TRANSLATOR_SERVER_PORT     Server port (default: 8090)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TRANSLATOR_INVOKER         local|http (default: local)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TRANSLATOR_WEBHOOK_SECRET  HMAC secret for events and worker calls (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TRANSLATOR_REDIS_URL       Redis URL for the sweep lease (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GROQ_API_KEY, GEMINI_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
	if *showVersion {
		_, _ = fmt.Printf("translator %s\n", info)
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func run(info version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(textHandler)
	slog.SetDefault(logger)

	if cfg.Dialect() == store.DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	slog.Info("initializing database", "driver", cfg.DBDriver)
	db, err := store.Open(cfg.Dialect(), cfg.DBDSN, store.DefaultDBConfig())
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// WARN and ERROR records also go to the pipeline event log
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	queries := store.New(db)

	providers, err := provider.BuildChain(cfg.ProviderOrder, cfg.ProviderSettings())
	if err != nil {
		return fmt.Errorf("building provider chain: %w", err)
	}
	waterfall := provider.NewWaterfall(providers, provider.DefaultWaterfallConfig(), logger)
	slog.Info("translation providers configured", "order", waterfall.Names())

	locker, err := cache.NewLocker(cfg.RedisURL, cfg.LeasePrefix)
	if err != nil {
		return fmt.Errorf("creating sweep lease: %w", err)
	}
	defer func() { _ = locker.Close() }()
	slog.Info("sweep lease ready", "redis", cfg.UseRedisLease())

	reassembler := pipeline.NewReassembler(queries, logger)
	worker := pipeline.NewWorker(queries, waterfall, reassembler, logger)
	creator := pipeline.NewJobCreator(queries, cfg.TargetLanguages(), cfg.MaxChunkLength, logger)
	reconciler := pipeline.NewReconciler(queries, reassembler, locker, cfg.ReconcileLimit, cfg.EventRetention, logger)

	var processor invoker.ChunkProcessor = worker
	if cfg.Invoker == config.InvokerHTTP {
		processor = invoker.NewRemoteWorker(cfg.WorkerURL, cfg.WebhookSecret)
		slog.Info("dispatching chunks to remote worker", "url", cfg.WorkerURL)
	}
	// an invocation outliving the stall threshold would be reclaimed while still running
	pool := invoker.NewPool(processor, logger, invoker.Config{
		Workers:      cfg.Workers,
		QueueSize:    cfg.BatchSize * 2,
		Rate:         cfg.DispatchRate,
		ChunkTimeout: cfg.StallThreshold,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)
	defer pool.Stop()

	dispatcher := pipeline.NewDispatcher(queries, pool, locker, pipeline.DispatcherConfig{
		BatchSize:      cfg.BatchSize,
		StallThreshold: cfg.StallThreshold,
	}, logger)

	sched := scheduler.New(logger)
	jobs := []scheduler.Job{
		{
			Name:        handler.JobDispatch,
			Description: "Claim pending and stalled chunks and hand them to workers",
			Schedule:    cfg.DispatchSchedule,
			Run: func(ctx context.Context) (any, error) {
				n, err := dispatcher.Sweep(ctx)
				return map[string]int{"triggered": n}, err
			},
		},
		{
			Name:        handler.JobReconcile,
			Description: "Reassemble fully translated jobs that never completed",
			Schedule:    cfg.ReconcileSchedule,
			Run: func(ctx context.Context) (any, error) {
				return reconciler.Sweep(ctx)
			},
		},
	}
	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			return fmt.Errorf("scheduling %s: %w", j.Name, err)
		}
	}
	sched.Start()
	defer sched.Stop()

	if cfg.DoSeed {
		doc, created, err := store.SeedSampleDocument(ctx, queries)
		if err != nil {
			return fmt.Errorf("seeding sample document: %w", err)
		}
		if created {
			if _, err := creator.CreateJobs(ctx, doc); err != nil {
				slog.Warn("seeding sample translation jobs failed", "error", err)
			}
		}
	}

	router := handler.NewRouter(handler.Handlers{
		Events:   handler.NewEventsHandler(creator, reassembler, worker, logger),
		Triggers: handler.NewTriggersHandler(sched, logger),
		Jobs:     handler.NewJobsHandler(queries, logger),
		Health:   handler.NewHealthHandler(db, sched, waterfall.Names(), info),
	}, cfg.WebhookSecret, logger)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      invoker.RemoteTimeout + 30*time.Second, // worker calls wait on provider round-trips
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
