// Package migrations embeds the schema and applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed sql/*.sql
var files embed.FS

// Source returns the embedded migration source.
func Source() (source.Driver, error) {
	return iofs.New(files, "sql")
}

// DatabaseURL rewrites a postgres URL to the scheme of the pgx/v5 driver.
func DatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(raw, prefix) {
			return "pgx5://" + strings.TrimPrefix(raw, prefix)
		}
	}
	return raw
}

// Up applies all pending migrations.
func Up(databaseURL string, logger zerolog.Logger) error {
	src, err := Source()
	if err != nil {
		return fmt.Errorf("migrations: open source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DatabaseURL(databaseURL))
	if err != nil {
		return fmt.Errorf("migrations: init: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn().AnErr("source_err", srcErr).AnErr("db_err", dbErr).Msg("migrations_close_failed")
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrations: version: %w", err)
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations_applied")
	return nil
}
