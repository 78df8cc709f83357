package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/portfolio-tracker/internal/api"
	"github.com/trogers1052/portfolio-tracker/internal/cache"
	"github.com/trogers1052/portfolio-tracker/internal/config"
	"github.com/trogers1052/portfolio-tracker/internal/database"
	"github.com/trogers1052/portfolio-tracker/internal/kafka"
	"github.com/trogers1052/portfolio-tracker/internal/logger"
	"github.com/trogers1052/portfolio-tracker/internal/provider"
	"github.com/trogers1052/portfolio-tracker/internal/refresh"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger settings come from the config, so fall back to the defaults
		log := logger.New("info", "console")
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	limited := provider.NewLimited(provider.NewStoreProvider(db), provider.NewStoreProvider(db), float64(cfg.Refresh.ProviderRPS))
	var (
		quotes provider.QuoteProvider = limited
		rates  provider.RateProvider  = limited
		inval  kafka.Invalidator
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, quotes will be read through")
		}
		c := cache.New(client, limited, limited, cfg.Refresh.QuoteTTL.Duration, cfg.Refresh.RateTTL.Duration)
		quotes, rates, inval = c, c, c
	} else {
		log.Warn().Msg("No Redis configured - quote cache disabled")
	}

	var publisher refresh.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SnapshotTopic)
		defer producer.Close()
		publisher = producer

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.IngestTopic, cfg.Kafka.GroupID, db, inval)
		defer consumer.Close()
		go func() {
			log.Info().Str("topic", cfg.Kafka.IngestTopic).Msg("Starting ingest consumer")
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Ingest consumer stopped with error")
			}
		}()
	} else {
		log.Warn().Msg("No Kafka brokers configured - ingest and snapshot events disabled")
	}

	svc := refresh.NewService(db, quotes, rates, publisher, cfg.Refresh.ReportingCurrency)
	if cfg.Refresh.Interval.Duration > 0 {
		go svc.Run(ctx, cfg.Refresh.Interval.Duration)
	}

	handler := api.NewHandler(db, svc, cfg.Quota.Limits())
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      api.SetupRoutes(handler, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("reporting_currency", cfg.Refresh.ReportingCurrency).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("API server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}
