package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/podpay/podpay/internal/config"
	"github.com/podpay/podpay/internal/convert"
	"github.com/podpay/podpay/internal/events"
	"github.com/podpay/podpay/internal/megaphone"
	"github.com/podpay/podpay/internal/pool"
	"github.com/podpay/podpay/internal/storage/postgres"
	"github.com/podpay/podpay/internal/storage/s3"
	"github.com/podpay/podpay/internal/worker"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load database config")
	}

	db, err := postgres.ConnectDB(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	repo := postgres.NewJobRepository(db)

	var converter convert.Converter
	switch cfg.Convert.Mode {
	case "ytdlp":
		converter, err = convert.NewYtDlpConverter(cfg.Convert)
		if err != nil {
			log.Fatal().Err(err).Msg("downloader backend unavailable")
		}
		log.Info().Str("bin", cfg.Convert.YtDlpBin).Msg("using local downloader backend")
	default:
		converter = convert.NewRESTConverter(cfg.Convert)
		log.Info().Str("host", cfg.Convert.APIHost).Msg("using hosted conversion backend")
	}

	uploader, err := s3.NewUploader(ctx, cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure object storage")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if redisPub := events.NewRedisPublisher(cfg.Redis); redisPub != nil {
		publisher = redisPub
		defer redisPub.Close()
		log.Info().Str("channel", cfg.Redis.Channel).Msg("publishing job events to redis")
	}

	episodes := megaphone.NewClient(cfg.Megaphone)
	pipeline := worker.NewPipeline(repo, converter, uploader, episodes, publisher, cfg.Convert.ScratchDir)

	workerPool := pool.NewWorkerPool(cfg, repo, pipeline, publisher)
	workerPool.Start()
	log.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("worker pool active")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	workerPool.Stop()
	log.Info().Msg("shutdown complete")
}
