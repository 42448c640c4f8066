package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"finledger/internal/amqp"
	"finledger/internal/config"
	"finledger/internal/cryptox"
	"finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	log.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	codec, err := cryptox.NewCodec([]byte(cfg.CodecPassphrase), []byte(cfg.CodecSalt))
	if err != nil {
		logger.Error("Failed to initialize amount codec", log.FieldError, err)
		os.Exit(1)
	}

	// Notifications degrade to storage-only when the broker is unreachable.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized")
		}
	} else {
		logger.Info("AMQP disabled, notifications are stored only")
	}

	notifier := services.NewNotifier(repo, amqpClient)
	scheduler := services.NewScheduler(repo, codec, notifier)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Recurring scheduler configured",
		"poll_interval", cfg.PollInterval,
		"sweep_cron_spec", cfg.SweepCronSpec,
		"sqlite_db", cfg.SQLiteDBPath)

	// Catch up on templates that came due while the worker was down.
	if count, err := scheduler.RunSweep(ctx, time.Now()); err != nil {
		logger.Error("Startup sweep failed", log.FieldError, err)
	} else {
		logger.Info("Startup sweep complete", "transactions_created", count)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				if _, err := scheduler.RunSweep(ctx, now); err != nil {
					logger.Error("Periodic sweep failed", log.FieldError, err)
				}
			}
		}
	})

	// The coarse cron schedule backstops the fine poll loop.
	cronRunner := cron.New()
	if _, err := cronRunner.AddFunc(cfg.SweepCronSpec, func() {
		if _, err := scheduler.RunSweep(ctx, time.Now()); err != nil {
			logger.Error("Cron sweep failed", log.FieldError, err)
		}
	}); err != nil {
		logger.Error("Failed to schedule cron sweep", log.FieldError, err)
		os.Exit(1)
	}
	cronRunner.Start()

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped", log.FieldError, err)
	}

	logger.Info("Shutting down recurring-worker...")
	cronCtx := cronRunner.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
	logger.Info("Recurring-worker shutdown complete")
}
