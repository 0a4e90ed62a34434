// Command ratingd runs one resumable rating update over the match history:
// connect, resume from the checkpoint, process games in batches, exit.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/pitchelo/internal/adapters/repository"
	"github.com/okian/pitchelo/internal/app"
	"github.com/okian/pitchelo/internal/config"
	"github.com/okian/pitchelo/internal/domain/rating"
	"github.com/okian/pitchelo/internal/domain/seed"
	"github.com/okian/pitchelo/pkg/logger"
	"github.com/okian/pitchelo/pkg/metrics"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
	}

	// The metrics listener lives for the duration of the run.
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info(ctx, "starting metrics listener", logger.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics listener failed", logger.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck,gosec
	}()

	// Nothing works without the store: a failed connection is fatal.
	store, err := repository.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error(ctx, "database unavailable", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	engine := app.New(store,
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithBatchSize(cfg.BatchSize),
		app.WithMaxGames(cfg.MaxGames),
		app.WithParams(rating.Params{
			Weight:  cfg.Weight,
			KFactor: cfg.KFactor,
			Blend:   cfg.Blend,
			Policy:  rating.ScalingPolicy(cfg.ScalingPolicy),
		}),
		app.WithSeedConfig(seed.Config{
			BaseRating:  cfg.BaseRating,
			RatingRange: cfg.RatingRange,
		}),
	)

	start := time.Now()
	stats, err := engine.Run(ctx)
	if err != nil {
		log.Error(ctx, "run aborted", logger.Error(err))
		os.Exit(1)
	}

	log.Info(ctx, "done",
		logger.Int("processed", stats.Processed),
		logger.Int("failed", stats.Failed),
		logger.Int("skipped", stats.Skipped),
		logger.Duration("elapsed", time.Since(start)),
	)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
