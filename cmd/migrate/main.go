package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/liamcoop/tariffs/internal/config"
	"github.com/liamcoop/tariffs/internal/logger"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "migrate",
		Usage: "Apply the tariffs database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Usage:   "Database URL",
				EnvVars: []string{config.EnvPrefix + "DATABASE_URL", "DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:  "path",
				Value: "migrations",
				Usage: "Path to migrations directory",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{config.EnvPrefix + "LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			return logger.Init("development", c.String("log-level"))
		},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: withMigrate(runUp),
			},
			{
				Name:   "down",
				Usage:  "Roll back all migrations",
				Action: withMigrate(runDown),
			},
			{
				Name:   "version",
				Usage:  "Print the current schema version",
				Action: withMigrate(runVersion),
			},
			{
				Name:      "force",
				Usage:     "Set the schema version without running migrations",
				ArgsUsage: "<version>",
				Action:    withMigrate(runForce),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal("migration failed", "error", err)
	}
}

// withMigrate opens a migrate instance from the global flags for an action
func withMigrate(action func(*cli.Context, *migrate.Migrate) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		databaseURL := c.String("database")
		if databaseURL == "" {
			return fmt.Errorf("database URL is required: use --database or %sDATABASE_URL", config.EnvPrefix)
		}

		logger.Info("connecting to database", "migrations", c.String("path"))
		m, err := migrate.New("file://"+c.String("path"), databaseURL)
		if err != nil {
			return fmt.Errorf("failed to create migration instance: %w", err)
		}
		defer m.Close()

		return action(c, m)
	}
}

func runUp(_ *cli.Context, m *migrate.Migrate) error {
	logger.Info("running migrations up")
	err := m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run, database is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations completed")
	return nil
}

func runDown(_ *cli.Context, m *migrate.Migrate) error {
	logger.Info("rolling back migrations")
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	logger.Info("rollback completed")
	return nil
}

func runVersion(_ *cli.Context, m *migrate.Migrate) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("no migration applied yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	logger.Info("current schema version", "version", version, "dirty", dirty)
	return nil
}

func runForce(c *cli.Context, m *migrate.Migrate) error {
	if c.NArg() < 1 {
		return errors.New("force requires a version number")
	}
	version, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid version number: %w", err)
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("failed to force version: %w", err)
	}
	logger.Info("forced schema version", "version", version)
	return nil
}
