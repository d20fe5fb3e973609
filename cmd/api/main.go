package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"civicvoice/internal/app"
	"civicvoice/internal/attachment"
	"civicvoice/internal/auth"
	"civicvoice/internal/authpw"
	"civicvoice/internal/config"
	"civicvoice/internal/email"
	"civicvoice/internal/logging"
	"civicvoice/internal/metrics"
	"civicvoice/internal/sentiment"
	"civicvoice/internal/session"
	"civicvoice/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	dataStore := store.NewPostgresStore(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := app.Deps{
		Store:     dataStore,
		Passwords: authpw.NewService(dataStore),
		Mailer: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
		Metrics:   metrics.New(registry),
		Logger:    logger,
		Readiness: map[string]app.Pinger{},
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info("using redis for refresh sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
		deps.Readiness["redis"] = redisStore
	} else {
		logger.Info("using postgres for refresh sessions")
	}

	if cfg.AuthMode == config.AuthModeFirebase {
		provider, err := auth.NewFirebaseProvider(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return fmt.Errorf("firebase auth: %w", err)
		}
		deps.Provider = provider
		deps.Accounts = provider
	}

	if cfg.ClassifierConfigured() {
		classifier, err := sentiment.NewOpenAIClassifier(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMAPIKey)
		if err != nil {
			return fmt.Errorf("sentiment classifier: %w", err)
		}
		deps.Classifier = classifier
	} else {
		logger.Warn("no llm api key configured; feedback submission will fail until one is set")
	}

	if cfg.AttachmentsEnabled() {
		attachments, err := attachment.NewStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		if err := attachments.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("object storage bucket: %w", err)
		}
		deps.Attachments = attachments
		deps.Readiness["objectStorage"] = attachments
	}

	service := app.New(cfg, deps)
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn("administrator bootstrap failed; will retry on next restart", zap.Error(err))
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("civic voice api listening", zap.String("addr", cfg.Addr), zap.String("auth_mode", cfg.AuthMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}
