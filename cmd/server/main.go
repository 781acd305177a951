package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	dapr "github.com/dapr/go-sdk/client"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"nextsteps-go/internal/app"
	"nextsteps-go/internal/config"
	"nextsteps-go/internal/logging"
	"nextsteps-go/internal/repository"
	"nextsteps-go/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(logging.Options{
		Level:   cfg.LogLevel,
		Service: cfg.ServiceName,
	})

	tp, err := telemetry.InitTracing(cfg.ServiceName, cfg.ServiceVersion, cfg.TracingExporter)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := telemetry.ShutdownTracing(context.Background(), tp); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	repo, closeRepo, err := newRepository(cfg)
	if err != nil {
		log.Fatalf("Failed to create subscriber repository: %v", err)
	}
	defer closeRepo()

	if cfg.MailerLiteAPIKey == "" {
		logger.Warn("MAILERLITE_API_KEY is not set; reminder submissions will fail with a configuration error")
	}

	application, err := app.Build(&app.Config{
		Settings:       cfg,
		Logger:         logger,
		TracerProvider: otel.GetTracerProvider(),
		Repository:     repo,
	})
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"backend": cfg.SubscriberBackend,
		"port":    cfg.ServerPort,
	}).Info("Application configured")

	go func() {
		if err := application.Run(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

func newRepository(cfg *config.Config) (repository.SubscriberRepository, func(), error) {
	switch cfg.SubscriberBackend {
	case config.BackendDapr:
		client, err := dapr.NewClient()
		if err != nil {
			return nil, nil, err
		}
		return repository.NewDaprSubscriberRepository(client, cfg.DaprBindingName, cfg.MailerLiteAPIKey), client.Close, nil
	case config.BackendMemory:
		return repository.NewInMemorySubscriberRepository(), func() {}, nil
	default:
		return repository.NewMailerLiteSubscriberRepository(cfg.MailerLiteBaseURL, cfg.MailerLiteAPIKey, cfg.MailerLiteTimeout), func() {}, nil
	}
}
