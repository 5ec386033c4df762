// The worker consumes flight-created events and generates journeys.
// It runs separately from the API server so generation load never
// competes with request handling.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ankit/flywise/config"
	searchcache "github.com/ankit/flywise/internal/cache"
	"github.com/ankit/flywise/internal/model"
	"github.com/ankit/flywise/internal/repository"
	"github.com/ankit/flywise/internal/service"
	"github.com/ankit/flywise/pkg/bus"
	"github.com/ankit/flywise/pkg/cache"
	"github.com/ankit/flywise/pkg/db"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to PostgreSQL")
	}
	defer pgPool.Close()
	logger.Info("PostgreSQL connected")

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	flightRepo := repository.NewFlightRepository(pgPool)
	journeyRepo := repository.NewJourneyRepository(pgPool)
	resultCache := searchcache.NewSearchCache(redisClient, cfg.Search.CacheTTL)

	generator := service.NewGenerator(flightRepo, journeyRepo, resultCache, model.JourneyConstraints{
		LayoverMin:  cfg.Journey.LayoverMin,
		LayoverMax:  cfg.Journey.LayoverMax,
		MaxDuration: cfg.Journey.MaxDuration,
		MaxLegs:     cfg.Journey.MaxLegs,
	}, logger)

	consumer := bus.NewConsumer(cfg.Kafka, logger)
	defer consumer.Close()

	logger.WithFields(logrus.Fields{
		"topic": cfg.Kafka.Topic,
		"group": cfg.Kafka.GroupID,
	}).Info("journey generator running")

	if err := consumer.Run(ctx, generator.ProcessFlightCreated); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("consumer stopped")
	}
	logger.Info("journey generator stopped")
}
