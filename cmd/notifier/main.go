package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/email"
	"github.com/example/candleworks-fulfillment/internal/infrastructure/kafka"
	"github.com/example/candleworks-fulfillment/internal/mailinglist"
	"github.com/example/candleworks-fulfillment/internal/notification"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration from environment variables
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	kafkaTopic := getEnv("KAFKA_TOPIC", "fulfillment-events")
	consumerGroup := "email-notifier"

	smtpHost := getEnv("SMTP_HOST", "localhost")
	smtpPort := getEnv("SMTP_PORT", "1025")
	smtpFrom := getEnv("EMAIL_FROM", "orders@desertcandleworks.com")

	logger.Info("notifier starting",
		zap.Strings("brokers", kafkaBrokers),
		zap.String("topic", kafkaTopic),
		zap.String("group", consumerGroup),
		zap.String("smtp", smtpHost+":"+smtpPort))

	emailSvc := email.NewService(smtpHost, smtpPort, smtpFrom)

	var mailing notification.MailingList
	if endpoint := os.Getenv("MAILING_LIST_URL"); endpoint != "" {
		mailing = mailinglist.NewClient(endpoint, os.Getenv("MAILING_LIST_API_KEY"), logger)
		logger.Info("mailing list subscriptions enabled")
	}

	handler := notification.NewHandler(emailSvc, mailing, logger)

	consumer := kafka.NewConsumer(kafkaBrokers, kafkaTopic, consumerGroup, logger)
	defer consumer.Close()

	go func() {
		logger.Info("consuming order events")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil {
			if ctx.Err() == nil {
				logger.Error("consumer error", zap.Error(err))
			}
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
}

func newLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if getEnv("APP_ENV", "development") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
