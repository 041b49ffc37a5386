package main

import (
	"context"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"marketmatch/config"
	listingcontroller "marketmatch/internal/app/listings/controller"
	listingservice "marketmatch/internal/app/listings/service"
	matchcontroller "marketmatch/internal/app/matchsearch/controller"
	matchservice "marketmatch/internal/app/matchsearch/service"
	"marketmatch/internal/cache"
	"marketmatch/internal/domain/entity"
	"marketmatch/internal/repository"
	"marketmatch/pkg/database"
	"marketmatch/pkg/redisconn"
)

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

	if err := db.AutoMigrate(
		&entity.Organisation{},
		&entity.ItemCategory{},
		&entity.Supply{},
		&entity.Demand{},
		&entity.SavedMatch{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rdb, err := redisconn.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	supplyRepo := repository.NewSupplyRepository(db)
	demandRepo := repository.NewDemandRepository(db)
	categoryRepo := repository.NewCategoryRepository(db, log)
	savedRepo := repository.NewSavedMatchRepository(db)

	if err := categoryRepo.EnsureUncategorized(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed the fallback category")
	}

	searchCache := cache.NewRedisSearchCache(rdb)
	invalidator := cache.NewCrossInvalidator(searchCache, log)

	listingSvc := listingservice.NewListingService(supplyRepo, demandRepo, categoryRepo, invalidator, log)
	matchSvc := matchservice.NewMatchSearchService(
		supplyRepo, demandRepo, savedRepo,
		searchCache, invalidator,
		matchservice.LocalScorer{}, cfg.CacheTTL, log,
	)

	e := echo.New()
	e.HideBanner = true
	listingcontroller.NewListingController(listingSvc).RegisterRoutes(e)
	matchcontroller.NewMatchSearchController(matchSvc).RegisterRoutes(e)

	log.Info().Str("addr", cfg.ServerAddr).Msg("starting match search server")
	if err := e.Start(cfg.ServerAddr); err != nil {
		log.Fatal().Err(err).Msg("server shutdown")
	}
}
