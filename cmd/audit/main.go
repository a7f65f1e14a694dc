package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"libris/pkg/config"
	"libris/pkg/kafka"
	kafka_config "libris/pkg/kafka/config"
	"libris/pkg/logger"
)

const (
	serviceName   = "audit"
	consumerGroup = "library-audit"
)

// The audit service tails the library events topic and writes each event
// to the structured log, giving an append-only record of circulation
// activity.
func main() {
	_ = godotenv.Load()

	cfg := config.Load(serviceName)
	log := cfg.Log
	log.Info("Starting audit service")

	consumer, err := kafka.NewConsumer(
		kafka_config.Default(cfg.KafkaBrokers),
		cfg.KafkaEventsTopic,
		consumerGroup,
		logEvent(log),
	)
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		sig := <-shutdown
		log.Info("Shutdown signal received", "signal", sig)
		cancel()
	}()

	if err := consumer.Start(ctx); err != nil && err != context.Canceled {
		log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		log.Error("Failed to close consumer", "error", err)
	}
	log.Info("Audit service stopped")
}

func logEvent(log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		eventType, _ := msg.GetHeader(kafka.HeaderEventType)
		eventID, _ := msg.GetHeader(kafka.HeaderEventID)
		source, _ := msg.GetHeader(kafka.HeaderSource)

		var payload map[string]any
		if err := msg.DecodeValue(&payload); err != nil {
			log.Error("Failed to decode event payload",
				"event_id", eventID,
				"event_type", eventType,
				"error", err,
			)
			return nil
		}

		log.Info("Library event",
			"event_id", eventID,
			"event_type", eventType,
			"source", source,
			"aggregate_id", msg.Key,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"payload", payload,
		)
		return nil
	}
}
