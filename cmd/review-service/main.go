// cmd/review-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"poultry-review/internal/api"
	awsclient "poultry-review/internal/common/aws"
	"poultry-review/internal/common/config"
	"poultry-review/internal/common/database"
	"poultry-review/internal/common/logger"
	"poultry-review/internal/common/observability"
	"poultry-review/internal/notify"
	"poultry-review/internal/review/directory"
	"poultry-review/internal/review/engine"
	"poultry-review/internal/review/policy"
	"poultry-review/internal/review/store"
	"poultry-review/internal/review/sweeper"
	"poultry-review/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting review service...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional audit mirror) ---
	var auditIndexer store.AuditIndexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		auditIndexer = esClient
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Notification dispatcher ---
	templates, err := registry.LoadRegistry(cfg.Notifications.TemplateRegistryPath)
	if err != nil {
		zapLog.Fatal("template registry load failed", zap.Error(err))
	}

	var emailSender notify.EmailSender
	var smsSender notify.SMSSender
	if cfg.Notifications.Email.Enabled {
		sesClient, err := awsclient.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SES client init failed", zap.Error(err))
		}
		emailSender = notify.NewSESEmailSender(sesClient, cfg.Notifications.Email.FromEmail)
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client init failed", zap.Error(err))
		}
		smsSender = notify.NewSNSSMSSender(snsClient)
	}

	dispatcher := notify.NewDispatcher(notify.DispatcherOptions{
		Registry:     templates,
		Email:        emailSender,
		SMS:          smsSender,
		EmailEnabled: cfg.Notifications.Email.Enabled,
		SMSEnabled:   cfg.Notifications.SMS.Enabled,
		Logger:       log,
	})

	// --- Assemble the review engine ---
	apps := store.NewApplicationStore()
	queue := store.NewQueueStore()
	audit := store.NewAuditRecorder(auditIndexer, cfg.Database.Elasticsearch.AuditIndex, log)
	allocator := store.NewAllocator(cfg.Review.Identifier.Prefix, cfg.Review.Identifier.MaxAttempts)
	officers := directory.New(pg.GetDB(), redis.GetClient(), 5*time.Minute, log)

	eng := engine.New(engine.Options{
		DB:                 pg.GetDB(),
		Applications:       apps,
		Queue:              queue,
		Audit:              audit,
		Allocator:          allocator,
		SLA:                policy.NewSLAPolicy(cfg.Review.SLA),
		Scorer:             policy.NewScorer(cfg.Review.Priority),
		Directory:          officers,
		Dispatcher:         dispatcher,
		Observability:      obs,
		Logger:             log,
		OperationTimeout:   config.GetDuration(cfg.Review.OperationTimeout),
		ChangeDeadlineDays: cfg.Review.DefaultChangeDeadlineDays,
	})

	// --- SLA sweeper ---
	sw := sweeper.New(pg.GetDB(), queue, config.GetDuration(cfg.Review.Sweeper.Interval), log)
	go sw.Run(ctx)

	// --- HTTP server ---
	server := &http.Server{
		Addr:    cfg.App.ListenAddr,
		Handler: api.NewServer(eng, pg.GetDB(), apps, queue, audit, log).Handler(),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Review service stopped")
}
