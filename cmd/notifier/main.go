package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stationbeds/internal/infra/broker/kafka"
	"stationbeds/internal/infra/config"
	mongostore "stationbeds/internal/infra/db/mongo"
	"stationbeds/internal/infra/inbox"
	"stationbeds/internal/infra/notify"
	"stationbeds/internal/infra/obs"
	infraoutbox "stationbeds/internal/infra/outbox"
)

// notifier consumes notification requests relayed by the outbox worker and
// hands them to the mailer exactly once per event.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.StorageMode != config.StorageMongo {
		logger.Error("notifier requires STORAGE_MODE=mongo")
		os.Exit(1)
	}

	client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connect failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	}()

	relay := &notify.Relay{
		Mailer: notify.LogMailer{Logger: logger},
		Inbox:  inbox.NewStore(client.DB, cfg.NotifierGroup),
		Logger: logger,
	}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, nil, relay, logger)
	if err != nil {
		logger.Error("kafka consumer failed", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	topic := (&infraoutbox.Worker{TopicPrefix: cfg.KafkaTopicPrefix}).TopicFor(notify.EventName)
	logger.Info("notifier consuming", "topic", topic, "group", cfg.NotifierGroup)
	if err := consumer.Run(ctx, []string{topic}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
}
