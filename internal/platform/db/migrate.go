package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending embedded migration against dsn.
func Migrate(dsn string, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("platform/db: open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("platform/db: init migrate: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if logger != nil && (srcErr != nil || dbErr != nil) {
			logger.Warn("close migrate", slog.Any("source_error", srcErr), slog.Any("db_error", dbErr))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		if logger != nil {
			logger.Info("no new migrations to apply")
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("platform/db: apply migrations: %w", err)
	}
	if logger != nil {
		version, dirty, _ := m.Version()
		logger.Info("migrations applied", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	}
	return nil
}

// migrateURL rewrites a postgres:// DSN to the pgx5:// scheme the driver registers.
func migrateURL(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn
	}
	if strings.HasPrefix(u.Scheme, "postgres") {
		u.Scheme = "pgx5"
	}
	return u.String()
}
