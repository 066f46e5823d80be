// Command seeder loads pressing catalogs from a YAML or JSON file into
// Postgres and drops the cached copies so the API serves the new prices.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pressing/internal/app"
	"github.com/noah-isme/backend-pressing/internal/catalog"
	"github.com/noah-isme/backend-pressing/internal/config"
	"github.com/noah-isme/backend-pressing/internal/obs"
)

func main() {
	path := flag.String("file", "catalog.yaml", "seed file (.yaml, .yml or .json)")
	flag.Parse()

	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.ServiceName).With().Str("component", "seeder").Logger()

	seed, err := catalog.LoadSeed(*path)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *path).Msg("load seed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger, "seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	cache := catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL)
	for _, businessID := range seed.Businesses() {
		services := seed[businessID]
		err := pgx.BeginFunc(ctx, deps.DB, func(tx pgx.Tx) error {
			return catalog.PGQueries{DB: tx}.UpsertServices(ctx, businessID, services)
		})
		if err != nil {
			logger.Fatal().Err(err).Str("business_id", businessID).Msg("seed catalog")
		}
		if err := cache.Invalidate(ctx, businessID); err != nil {
			logger.Warn().Err(err).Str("business_id", businessID).Msg("catalog_cache_invalidate_failed")
		}
		logger.Info().Str("business_id", businessID).Int("services", len(services)).Msg("catalog_seeded")
	}
	logger.Info().Int("businesses", len(seed)).Msg("seeding completed")
}
