package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"aieditor/internal/adapter/repo"
	"aieditor/internal/infra"
	"aieditor/internal/infra/credentials"
	"aieditor/internal/jobs"
	"aieditor/internal/providers/replicate"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	if !cfg.OrphanCheckEnabled {
		logger.Info().Msg("worker: orphan check disabled (set ORPHAN_CHECK_ENABLED=true to enable)")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	token, err := credentials.NewStore(runner).Resolve(ctx, cfg.ReplicateAPIToken)
	if err != nil || token == "" {
		logger.Fatal().Err(err).Msg("worker: replicate token not configured")
	}
	predictor := replicate.NewClient(replicate.Options{
		APIToken: token,
		BaseURL:  cfg.ReplicateBaseURL,
		Logger:   &logger,
	})

	checker := jobs.NewOrphanChecker(predictor, repo.NewJobRepository(runner), jobs.OrphanOptions{
		StaleAfter: cfg.JobStaleAfter(),
		Logger:     &logger,
	})
	logger.Info().Dur("interval", cfg.OrphanCheckInterval).Msg("worker: orphan check started")
	if err := checker.Run(ctx, cfg.OrphanCheckInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped")
	}
	logger.Info().Msg("worker: shutdown complete")
}
