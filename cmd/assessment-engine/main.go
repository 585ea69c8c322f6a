package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/assessment-engine/internal/api"
	"github.com/terra-clan/assessment-engine/internal/assessment"
	"github.com/terra-clan/assessment-engine/internal/auth"
	"github.com/terra-clan/assessment-engine/internal/cleanup"
	"github.com/terra-clan/assessment-engine/internal/config"
	"github.com/terra-clan/assessment-engine/internal/health"
	"github.com/terra-clan/assessment-engine/internal/metrics"
	"github.com/terra-clan/assessment-engine/internal/notify"
	"github.com/terra-clan/assessment-engine/internal/questionbank"
	"github.com/terra-clan/assessment-engine/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("starting assessment-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"exam_size", cfg.Exam.Size,
		"question_time", cfg.Exam.QuestionTime,
		"notify_driver", cfg.Notify.Driver,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations")
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		MaxLifetime:  cfg.Database.MaxLifetime,
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("database connected successfully")

	// Dependency health
	registry := health.NewRegistry(2 * time.Second)
	registry.Register("postgres", health.CheckerFunc(repo.Ping))

	// Notifications
	transport, closeTransport, err := newNotifier(initCtx, cfg, registry)
	if err != nil {
		slog.Error("failed to create notifier", "error", err)
		os.Exit(1)
	}
	defer closeTransport()
	slog.Info("health checks registered", "services", registry.List())

	notifier := notify.NewAsync(transport, notify.AsyncOptions{
		Timeout:  cfg.Notify.Timeout,
		Attempts: cfg.Notify.Attempts,
	})

	issuer, err := auth.NewJWTIssuer(auth.JWTConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		slog.Error("failed to create token issuer", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	engine := assessment.NewEngine(repo, assessment.Config{
		ExamSize:         cfg.Exam.Size,
		QuestionTime:     cfg.Exam.QuestionTime,
		AllowStep3Retake: cfg.Exam.AllowStep3Retake,
	},
		assessment.WithNotifier(notifier),
		assessment.WithMetrics(m),
	)

	warnOnSmallBank(initCtx, repo, cfg.Exam.Size)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	if cfg.Cleanup.Enabled {
		reaper := cleanup.NewReaper(repo, engine, cfg.Cleanup.Interval, cfg.Cleanup.BatchSize)
		reaper.Start(ctx)
	}

	// Setup HTTP server
	server := api.NewServer(cfg.Server, engine, issuer, registry, m, cfg.SEB)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Let in-flight notifications finish
	notifier.Wait()

	slog.Info("assessment-engine stopped")
}

// newNotifier builds the configured transport and registers its health check
func newNotifier(ctx context.Context, cfg *config.Config, registry *health.Registry) (notify.Notifier, func(), error) {
	switch cfg.Notify.Driver {
	case config.NotifyRedis:
		client, err := health.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		registry.Register("redis", health.RedisChecker(client))

		outbox := notify.NewRedisOutbox(client, cfg.Notify.ListKey, cfg.Notify.DedupTTL)
		return outbox, func() { client.Close() }, nil

	case config.NotifyAMQP:
		publisher, err := notify.NewAMQPPublisher(cfg.AMQP.URI, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
		if err != nil {
			return nil, nil, err
		}
		registry.Register("amqp", publisher)

		return publisher, func() { publisher.Close() }, nil

	default:
		return notify.LogNotifier{}, func() {}, nil
	}
}

func warnOnSmallBank(ctx context.Context, repo storage.QuestionBank, examSize int) {
	counts, err := repo.CountByLevel(ctx)
	if err != nil {
		slog.Warn("failed to count questions", "error", err)
		return
	}

	for step, missing := range questionbank.Shortfall(counts, examSize) {
		slog.Warn("question bank too small for step", "step", step, "missing", missing)
	}
}
