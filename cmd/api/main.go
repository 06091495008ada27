package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"letterflow/auth"
	"letterflow/blob"
	"letterflow/config"
	"letterflow/db"
	"letterflow/directory"
	"letterflow/disposition"
	"letterflow/events"
	"letterflow/letter"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("bootstrap database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("parse redis url", slog.Any("error", err))
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	attachments, err := blob.NewStore(ctx, blob.Options{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Error("bootstrap attachment store", slog.Any("error", err))
		os.Exit(1)
	}

	authService := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret, cfg.TokenTTL)
	directoryService := directory.NewService(directory.NewRepository(pool))

	letterRepo := letter.NewRepository(pool)
	letterService := letter.NewService(letterRepo, attachments)

	dispositionRepo := disposition.NewRepository(pool)
	dispositionService := disposition.NewService(dispositionRepo, letterRepo)
	vocabCache := disposition.NewVocabCache(redisClient, dispositionRepo, cfg.VocabTTL)

	publisher, err := events.NewPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		logger.Error("bootstrap publisher", slog.Any("error", err))
		os.Exit(1)
	}
	defer publisher.Close()

	relay := events.NewRelay(events.NewPGSource(pool), publisher, logger)
	go func() {
		if err := relay.Run(ctx, cfg.RelayInterval); err != nil && ctx.Err() == nil {
			logger.Error("outbox relay stopped", slog.Any("error", err))
		}
	}()

	logger.Info("letterflow ready",
		slog.Bool("auth", authService != nil),
		slog.Bool("directory", directoryService != nil),
		slog.Bool("letters", letterService != nil),
		slog.Bool("dispositions", dispositionService != nil),
		slog.Bool("vocab_cache", vocabCache != nil),
	)

	<-ctx.Done()
	logger.Info("shutting down")
}
