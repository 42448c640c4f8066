package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finledger/internal/amqp"
	"finledger/internal/config"
	"finledger/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentAMQP)
	log.SetDefault(logger)

	logger.Info("Starting notify-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notify-worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := func(event *amqp.NotificationEvent) error {
		logger.Info("Notification delivered",
			log.FieldUserID, event.UserID,
			log.FieldKind, event.Kind,
			"message", event.Message,
			"notification_id", event.ID)
		return nil
	}

	// Blocks until the context is cancelled, reconnecting on broker outages.
	err := amqp.ConsumeWithReconnect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, handler)
	if err != nil && err != context.Canceled {
		logger.Error("Notification consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Notify-worker shutdown complete")
}
