package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "hotel_catalog/internal/adapters/http_server"
	"hotel_catalog/internal/adapters/observability"
	"hotel_catalog/internal/adapters/ratehawk"
	redisad "hotel_catalog/internal/adapters/redis"
	"hotel_catalog/internal/app"
	"hotel_catalog/internal/domain"
	"hotel_catalog/internal/shared"
	mysqlrepo "hotel_catalog/internal/storage/mysql"
)

// offlineFeed stands in when no API key is configured; every search degrades
// to the mock feed.
type offlineFeed struct{}

func (offlineFeed) Search(context.Context, domain.SearchRequest) ([]domain.FeedHotel, error) {
	return nil, errors.New("inventory feed not configured")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "catalog-api", cfg.LogLevel)
	cfg.LogWarnings()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN, cfg.DBPoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.Close()
	log.Info().Int("pool", cfg.DBPoolSize).Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; continuing without cache")
		} else {
			cache = rc
			defer rc.Close()
		}
	}
	fetcher := app.NewCatalogFetcher(repo, cache, cfg.CacheTTL)

	var feed domain.InventoryClient = offlineFeed{}
	if cfg.FeedKey != "" {
		client, err := ratehawk.New(cfg.FeedBase, cfg.FeedKeyID, cfg.FeedKey, cfg.FeedRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize RateHawk client")
		}
		feed = client
	}

	engine := app.NewEngine(app.EngineConfig{
		ImageSize:  cfg.ImageSize,
		FuzzyMatch: cfg.FuzzyMatch,
		Match: app.MatchConfig{
			NameWeight:    cfg.MatchWeights.Name,
			AddressWeight: cfg.MatchWeights.Address,
			CityWeight:    cfg.MatchWeights.City,
			Threshold:     cfg.MatchThreshold,
		},
	})
	search := app.NewSearchService(feed, fetcher, engine)

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{S: search, C: fetcher})

	if err := srv.ListenAndServe(ctx, cfg.HTTPAddr, 10*time.Second); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("api stopped")
}
