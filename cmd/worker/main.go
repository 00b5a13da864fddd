package main

import (
	"context"
	"fmt"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/webpiratt/dca-protocol/config"
	"github.com/webpiratt/dca-protocol/internal/engine"
	"github.com/webpiratt/dca-protocol/internal/tasks"
	"github.com/webpiratt/dca-protocol/service"
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

	manager, _, err := engine.Build(context.Background(), cfg, db, logger)
	if err != nil {
		panic(fmt.Errorf("fail to build purchase engine: %w", err))
	}

	worker := service.NewWorker(cfg, manager, db, redis, sdClient)

	redisOptions := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	srv := asynq.NewServer(
		redisOptions,
		asynq.Config{
			Logger:      logger,
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QUEUE_NAME: 10,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeBatchPurchase, worker.HandleBatchPurchase)
	if err := srv.Run(mux); err != nil {
		panic(fmt.Errorf("could not run worker: %w", err))
	}
}
