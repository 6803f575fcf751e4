package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"example.com/chirp/cmd/server"
	"example.com/chirp/cmd/worker"
	appkafka "example.com/chirp/internal/broker"
	config "example.com/chirp/internal/init"
	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/store"
)

var logg = logger.New()

func main() {
	// Initialize application configuration
	cfg := config.Init()
	logger.Configure(cfg.LogLevel, cfg.LogFormat)

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logg.Error("main", "Exiting with error", err)
		os.Exit(1)
	}
	logg.Info("main", "Shutdown completed")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Initialize the configured store (mongo or cassandra)
	st, err := store.New(ctx, cfg)
	if err != nil {
		return err
	}

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Run application depending on selected mode
	switch cfg.Mode {
	case "server":
		defer st.Close()
		var events appkafka.Publisher = appkafka.NopPublisher{}
		if cfg.EventsEnabled {
			kafkaWriter, err := appkafka.NewKafkaWriter(kafkaCfg)
			if err != nil {
				return err
			}
			defer kafkaWriter.Close()
			events = appkafka.NewEventPublisher(kafkaWriter, appkafka.DefaultBreakerConfig())
		} else {
			logg.Info("main", "Reconcile events disabled")
		}
		return server.Run(ctx, st, events, cfg)
	case "worker":
		// Start the worker that reconciles the store from published events
		kafkaReader := appkafka.NewKafkaReader(kafkaCfg)
		w := worker.New(st, kafkaReader, cfg.WorkerCount, cfg.WorkerQueueSize)
		w.Run(ctx)
		// Close releases both the reader and the store.
		return w.Close()
	default:
		st.Close()
		return errors.New("unknown mode: " + cfg.Mode)
	}
}
