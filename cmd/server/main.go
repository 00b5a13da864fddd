package main

import (
	"context"
	"fmt"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/webpiratt/dca-protocol/api"
	"github.com/webpiratt/dca-protocol/config"
	"github.com/webpiratt/dca-protocol/internal/engine"
	"github.com/webpiratt/dca-protocol/storage"
	"github.com/webpiratt/dca-protocol/storage/postgres"
)

func main() {
	cfg, err := config.GetConfigure()
	if err != nil {
		panic(err)
	}
	logger := logrus.StandardLogger()

	sdClient, err := statsd.New(cfg.Datadog.Host + ":" + cfg.Datadog.Port)
	if err != nil {
		panic(err)
	}

	db, err := postgres.NewPostgresBackend(cfg.Server.Database.DSN, logger)
	if err != nil {
		panic(fmt.Errorf("fail to connect to database: %w", err))
	}

	redis, err := storage.NewRedisStorage(cfg.Redis)
	if err != nil {
		panic(fmt.Errorf("fail to connect to redis: %w", err))
	}

	blockStorage, err := storage.NewBlockStorage(cfg.BlockStorage, logger)
	if err != nil {
		panic(fmt.Errorf("fail to initialize block storage: %w", err))
	}

	redisOptions := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := asynq.NewClient(redisOptions)
	defer func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Error("fail to close asynq client")
		}
	}()
	inspector := asynq.NewInspector(redisOptions)

	manager, _, err := engine.Build(context.Background(), cfg, db, logger)
	if err != nil {
		panic(fmt.Errorf("fail to build purchase engine: %w", err))
	}

	server := api.NewServer(cfg, manager, db, redis, blockStorage, client, inspector, sdClient, logger)
	if err := server.StartServer(); err != nil {
		panic(err)
	}
}
