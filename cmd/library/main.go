package main

import (
	"context"

	"github.com/joho/godotenv"

	bookshandler "libris/internal/books/handler"
	booksrepo "libris/internal/books/repository"
	booksservice "libris/internal/books/service"
	booksvalidator "libris/internal/books/validator"
	patronshandler "libris/internal/patrons/handler"
	patronsrepo "libris/internal/patrons/repository"
	patronsservice "libris/internal/patrons/service"
	patronsvalidator "libris/internal/patrons/validator"
	"libris/pkg/app"
	"libris/pkg/config"
	"libris/pkg/events"
	"libris/pkg/kafka"
	kafka_config "libris/pkg/kafka/config"
)

const serviceName = "library"

func main() {
	_ = godotenv.Load()

	cfg := config.Load(serviceName)
	cfg.Log.Info("Starting library service")

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	publisher, closeProducer := initPublisher(cfg)
	defer closeProducer()

	bookRepo := booksrepo.NewMongoBookRepository(cfg)
	patronRepo := patronsrepo.NewMongoPatronRepository(cfg)
	ensureIndexes(cfg, bookRepo, patronRepo)

	bookService := booksservice.NewBookService(
		bookRepo,
		patronRepo,
		booksvalidator.NewBookValidator(cfg.Log),
		publisher,
		cfg,
	)
	patronService := patronsservice.NewPatronService(
		patronRepo,
		bookRepo,
		patronsvalidator.NewPatronValidator(),
		cfg,
	)

	application := app.NewApplication(cfg)
	application.SetApp(
		bookshandler.NewBookHandler(bookService, cfg.Log),
		patronshandler.NewPatronHandler(patronService, cfg.Log),
	)
	application.Run()
}

func initPublisher(cfg *config.Config) (events.Publisher, func()) {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Event publishing disabled")
		return events.NewNoopPublisher(), func() {}
	}

	producer, err := kafka.NewProducer(kafka_config.Default(cfg.KafkaBrokers), cfg.KafkaEventsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	cfg.Log.Info("Event publishing enabled",
		"topic", cfg.KafkaEventsTopic,
		"brokers", cfg.KafkaBrokers,
	)

	return events.NewKafkaPublisher(producer, serviceName, cfg.Log), func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
}

func ensureIndexes(cfg *config.Config, bookRepo booksrepo.BookRepository, patronRepo patronsrepo.PatronRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoConnTimeout)
	defer cancel()

	if err := bookRepo.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create book indexes", "error", err)
	}
	if err := patronRepo.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create patron indexes", "error", err)
	}

	cfg.Log.Info("MongoDB indexes ensured")
}
