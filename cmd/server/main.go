package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/socialx/agent/internal/agent"
	"github.com/socialx/agent/internal/api"
	"github.com/socialx/agent/internal/auth"
	"github.com/socialx/agent/internal/config"
	"github.com/socialx/agent/internal/database"
	"github.com/socialx/agent/internal/generation"
	"github.com/socialx/agent/internal/logging"
	"github.com/socialx/agent/internal/metrics"
	"github.com/socialx/agent/internal/personality"
	"github.com/socialx/agent/internal/ratelimit"
	"github.com/socialx/agent/internal/server"
	"github.com/socialx/agent/internal/social"
	_ "github.com/lib/pq"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting social agent")

	ctx := context.Background()

	logger.Info("connecting to database")
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	actionRepo := database.NewActionRepository(db)
	activityRepo := database.NewActivityLogRepository(db)
	profileRepo := database.NewPersonalityRepository(db)

	// Platform client with dynamic rate tracking
	tracker := ratelimit.NewTracker()
	socialClient := social.NewClient(cfg.Twitter, tracker, logger)
	if cfg.Twitter.Configured() {
		// Bad credentials mean no useful work can proceed.
		if err := socialClient.ValidateCredentials(ctx); err != nil {
			logger.Error("platform credential validation failed", "error", err)
			os.Exit(1)
		}
		logger.Info("platform credentials validated")
	} else {
		logger.Warn("platform credentials not configured, posting will fail")
	}

	// Generation
	generator := generation.NewClient(cfg.OpenAI, logger)
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, generation will fail")
	}

	// Personality learning
	analyzer := personality.NewAnalyzer(logger)
	learner := personality.NewPatternLearner(logger)

	// Metrics
	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Executor and autonomous behaviors
	executor := agent.NewExecutor(actionRepo, activityRepo, socialClient, generator,
		profileRepo, collector, logger, cfg.Agent.ExecutorBatchSize)
	ag := agent.NewAgent(cfg.Agent, actionRepo, activityRepo, socialClient, generator,
		profileRepo, executor, logger)

	scheduler := agent.NewScheduler(ag.Triggers(), collector, logger)
	scheduler.Start(ctx)
	logger.Info("scheduler started",
		"auto_tweet", cfg.Agent.AutoTweet,
		"auto_reply", cfg.Agent.AutoReply,
		"auto_engage", cfg.Agent.AutoEngage)

	// HTTP routes
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.HealthCheck(r.Context(), db); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"socialagent","status":"ready","version":"0.1.0"}`))
	})

	mux.Handle("/metrics", collector.Handler())

	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	apiHandler := api.NewHandler(cfg.Agent, actionRepo, activityRepo, profileRepo,
		socialClient, generator, analyzer, learner, tracker, db, logger)
	api.SetupRoutes(mux, apiHandler, authConfig)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("social agent started", "port", cfg.Server.Port)

	waitForSignal(logger)

	logger.Info("shutting down")
	scheduler.Stop()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
