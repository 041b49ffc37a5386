package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"marketmatch/config"
	"marketmatch/internal/app/expirysweeper/service"
	"marketmatch/internal/cache"
	"marketmatch/internal/repository"
	"marketmatch/pkg/database"
	"marketmatch/pkg/redisconn"
)

const sweepInterval = time.Minute

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.NewDBConnection(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	ctx := context.Background()
	rdb, err := redisconn.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	searchCache := cache.NewRedisSearchCache(rdb)
	invalidator := cache.NewCrossInvalidator(searchCache, log)
	sweeper := service.NewSweeperService(
		repository.NewSupplyRepository(db),
		repository.NewDemandRepository(db),
		invalidator,
		log,
	)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", sweepInterval).Msg("expiry sweeper started")
	for range ticker.C {
		if err := sweeper.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("sweep failed")
		}
	}
}
