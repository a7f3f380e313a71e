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
	"syscall"
	"time"

	"stationbeds/internal/app/caller"
	"stationbeds/internal/app/engine"
	"stationbeds/internal/app/middleware"
	appoutbox "stationbeds/internal/app/outbox"
	"stationbeds/internal/app/uow"
	"stationbeds/internal/infra/broker/kafka"
	"stationbeds/internal/infra/config"
	mongostore "stationbeds/internal/infra/db/mongo"
	ginserver "stationbeds/internal/infra/http/gin"
	"stationbeds/internal/infra/notify"
	"stationbeds/internal/infra/obs"
	infraoutbox "stationbeds/internal/infra/outbox"
	"stationbeds/internal/infra/security"
	"stationbeds/internal/infra/storage/memory"
)

func main() {
	genKey := flag.String("genkey", "", "print an API_KEYS entry and bearer token for this key name, then exit")
	genRole := flag.String("role", caller.RoleMember, "role of the generated key (member or admin)")
	flag.Parse()
	if *genKey != "" {
		if err := printKey(*genKey, *genRole); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	keys, err := security.ParseKeyRing(cfg.APIKeys)
	if err != nil {
		logger.Error("invalid API_KEYS", "error", err)
		os.Exit(1)
	}
	if keys.Len() == 0 {
		logger.Warn("no API keys configured, every request will be rejected")
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	buses := engine.Build(engine.Deps{
		UoW:         app.uow,
		Outbox:      app.outbox,
		Idempotency: app.idempotency,
		Notifier:    notify.OutboxNotifier{Outbox: app.outbox},
		Settings:    cfg.Settings(),
		Logger:      logger,
	})
	logger.Info("command bus ready", "storage", cfg.StorageMode, "commands", buses.Keys)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready:   app.ready,
		Timeout: 2 * time.Second,
	}, ginserver.Handlers{
		Visits:         ginserver.VisitHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Stays:          ginserver.StayHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Availability:   ginserver.AvailabilityHandler{Queries: buses.Queries, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Keys: keys, Logger: logger}.Handle,
	})

	if app.worker != nil {
		go func() {
			if err := app.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	uow         uow.UoWFactory
	outbox      appoutbox.Outbox
	idempotency middleware.IdempotencyStore
	worker      *infraoutbox.Worker
	ready       func(ctx context.Context) error
	closers     []func(ctx context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	if cfg.StorageMode == config.StorageMongo {
		return buildMongoApplication(ctx, cfg, logger)
	}
	relay := &notify.Relay{Mailer: notify.LogMailer{Logger: logger}, Logger: logger}
	return &application{
		uow:         memory.Factory{Store: memory.NewStore()},
		outbox:      memory.NewOutbox(relay.Sink, logger),
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		ready:       func(context.Context) error { return nil },
	}, nil
}

func buildMongoApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, "stationbeds", nil)
	if err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	store := infraoutbox.NewStore(client.DB)
	return &application{
		uow:         mongostore.Factory{DB: client.DB},
		outbox:      store,
		idempotency: mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
		worker: &infraoutbox.Worker{
			Store:       store,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Source:      "stationbeds",
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
		},
		ready: client.Ping,
		closers: []func(context.Context) error{
			func(context.Context) error { return producer.Close() },
			client.Close,
		},
	}, nil
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			logger.Warn("shutdown cleanup failed", "error", err)
		}
	}
}

func printKey(name, role string) error {
	if role != caller.RoleAdmin && role != caller.RoleMember {
		return fmt.Errorf("unknown role %q", role)
	}
	secret, err := security.RandomTokenGenerator{}.NewToken()
	if err != nil {
		return err
	}
	ring := security.KeyRing{}
	entry, err := ring.Entry(name, role, secret)
	if err != nil {
		return err
	}
	fmt.Printf("API_KEYS entry: %s\nbearer token:   %s.%s\n", entry, name, secret)
	return nil
}
