// Command refresher brings every pull in the catalog up to date: it
// invalidates the most recent periods, resolves what is missing and fetches
// a bounded batch per table. With ENABLE_SCHEDULER it keeps running on a
// cron schedule and serves Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"baseball_db/ingestion/internal/cache"
	"baseball_db/ingestion/internal/catalog"
	"baseball_db/ingestion/internal/client"
	"baseball_db/ingestion/internal/config"
	"baseball_db/ingestion/internal/pacing"
	"baseball_db/ingestion/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Setup logger
	config.SetupLogger(cfg)

	log.Info().Msg("Starting baseball_db refresher")
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Str("catalog", cfg.CatalogPath).
		Msg("Configuration loaded")

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, finishing the current period...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Refresher failed")
	}
	log.Info().Msg("Refresher finished")
}

func run(ctx context.Context, cfg *config.Config) error {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	var locker cache.Locker = cache.NopLocker{}
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(ctx, cache.Config{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			LockTTL:  cfg.LockTTL,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without run lock")
		} else {
			defer redisCache.Close()
			locker = redisCache
		}
	}
	stamps, _ := locker.(refreshStamps)

	provider := client.NewClient(client.Options{
		BaseURL:   cfg.ProviderBaseURL,
		APIKey:    cfg.ProviderAPIKey,
		Timeout:   cfg.ProviderTimeout,
		RateLimit: cfg.ProviderRateLimit,
		Burst:     cfg.ProviderBurst,
	})
	pacer := pacing.NewRandom(cfg.PacingMin, cfg.PacingMax)

	refreshers, err := buildRefreshers(cat, cfg.DataDir, provider, pacer, locker, time.Now)
	if err != nil {
		return err
	}
	log.Info().Int("pulls", len(refreshers)).Msg("Catalog loaded")
	if stamps != nil {
		logLastRefresh(ctx, stamps, refreshers)
	}

	if !cfg.EnableScheduler {
		return runAll(ctx, refreshers)
	}

	if cfg.EnableMetrics {
		go startMetricsServer(cfg.MetricsPort)
	}

	sched, err := scheduler.NewScheduler(cfg.RefreshCron, func(ctx context.Context) error {
		return runAll(ctx, refreshers)
	})
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	// Keep running until context is cancelled
	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler...")
	sched.Stop()
	return nil
}

// startMetricsServer serves Prometheus metrics
func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("Starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
