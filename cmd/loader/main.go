// Command loader materializes every table in the catalog: each table is
// dropped, recreated and bulk copied from its cached files. All tables are
// planned before the first statement runs, so a bad config or a missing file
// fails the run without touching the database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"baseball_db/ingestion/internal/catalog"
	"baseball_db/ingestion/internal/config"
	"baseball_db/ingestion/internal/loader"
	"baseball_db/ingestion/internal/metrics"
	"baseball_db/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.MustLoad()
	config.SetupLogger(cfg)

	log.Info().Msg("Beginning to update the database")

	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, stopping after the current statement...")
		cancel()
	}()

	start := time.Now()
	if err := run(ctx, cfg); err != nil {
		metrics.RecordRun("load", "error", time.Since(start).Seconds())
		log.Fatal().Err(err).Msg("Load failed")
	}
	metrics.RecordRun("load", "success", time.Since(start).Seconds())

	log.Info().Dur("duration", time.Since(start)).Msg("Finished updating the database")
}

func run(ctx context.Context, cfg *config.Config) error {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	plans, err := loader.NewPlanner(cfg.DataDir).PlanAll(cat.TableList())
	if err != nil {
		return err
	}
	log.Info().Int("tables", len(plans)).Msg("Planned tables")

	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	for _, plan := range plans {
		if err := loader.Apply(ctx, db, plan); err != nil {
			return err
		}
	}
	return nil
}
