package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/infrastructure/kafka"
	"github.com/example/candleworks-fulfillment/internal/infrastructure/mirror"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration from environment variables
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	kafkaTopic := getEnv("KAFKA_TOPIC", "fulfillment-events")
	consumerGroup := "stock-mirror"
	tableName := getEnv("DYNAMODB_TABLE", "stock-mirror")

	logger.Info("stock mirror starting",
		zap.Strings("brokers", kafkaBrokers),
		zap.String("topic", kafkaTopic),
		zap.String("table", tableName))

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("failed to load AWS config", zap.Error(err))
	}
	client := dynamodb.NewFromConfig(awsCfg)

	m := mirror.NewDynamoMirror(client, tableName, logger)

	consumer := kafka.NewConsumer(kafkaBrokers, kafkaTopic, consumerGroup, logger)
	defer consumer.Close()

	go func() {
		logger.Info("consuming stock events")
		if err := consumer.Consume(ctx, m.HandleEvent); err != nil {
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
