// Package main applies the schema migrations in migrations/.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"taixiu-dealer/config"
	"taixiu-dealer/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (default: ./config.yaml if present)")
	source := flag.String("source", "file://migrations", "migration source URL")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	m, err := migrate.New(*source, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("creating migrator")
	}
	defer m.Close()

	switch *direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	default:
		log.Fatal().Str("direction", *direction).Msg("invalid direction: must be 'up' or 'down'")
	}

	noChange := errors.Is(err, migrate.ErrNoChange)
	if err != nil && !noChange {
		log.Fatal().Err(err).Msg("migration failed")
	}

	version, dirty, _ := m.Version()
	event := log.Info().Uint("version", version).Bool("dirty", dirty).Dur("elapsed", time.Since(start))
	if noChange {
		event.Msg("no changes")
		return
	}
	event.Str("direction", *direction).Msg("migrated")
}
