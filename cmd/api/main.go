package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aieditor/internal/adapter/repo"
	"aieditor/internal/events"
	"aieditor/internal/http/handlers"
	httpapi "aieditor/internal/http/httpapi"
	"aieditor/internal/infra"
	"aieditor/internal/infra/credentials"
	"aieditor/internal/infra/geoip"
	"aieditor/internal/jobs"
	"aieditor/internal/middleware"
	"aieditor/internal/providers/replicate"
	"aieditor/internal/storage"
	"aieditor/internal/transfer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	token, err := credentials.NewStore(runner).Resolve(ctx, cfg.ReplicateAPIToken)
	if err != nil {
		logger.Warn().Err(err).Msg("replicate token lookup failed")
	}
	if token == "" {
		logger.Warn().Msg("replicate token not configured; job submissions will fail with not_configured")
	}
	predictor := replicate.NewClient(replicate.Options{
		APIToken: token,
		BaseURL:  cfg.ReplicateBaseURL,
		Logger:   &logger,
	})

	catalog := infra.DefaultModelCatalog()
	if cfg.ReplicateModelsFile != "" {
		catalog, err = infra.LoadModelCatalog(cfg.ReplicateModelsFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load model catalog")
		}
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise storage")
	}
	uploader := storage.NewUploader(blobs, nil)

	transfers, closeTransfers := newTransferStore(ctx, cfg, logger)
	defer closeTransfers()

	publisher := events.Publisher(events.Noop{})
	if cfg.AMQPURL != "" {
		rabbit, err := events.DialRabbit(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect amqp")
		}
		publisher = rabbit
	}
	defer publisher.Close()

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := jobs.NewMetrics(registry)

	users := repo.NewUserRepository(runner)
	images := repo.NewImageRepository(runner)
	jobRepo := repo.NewJobRepository(runner)
	service := jobs.NewService(jobs.Options{
		Gate:    jobs.NewGate(users, metrics, &logger),
		Adapter: jobs.NewAdapter(predictor, catalog),
		Poller: jobs.NewPoller(predictor, jobs.PollerOptions{
			Interval:    cfg.JobPollInterval,
			MaxAttempts: cfg.JobMaxPollAttempts,
			Logger:      &logger,
		}),
		Materializer: jobs.NewMaterializer(jobs.MaterializerOptions{
			AllowedHosts: cfg.ResultFetchHosts,
			Blobs:        uploader,
			Logger:       &logger,
		}),
		Blobs:   uploader,
		Jobs:    jobRepo,
		Images:  images,
		Events:  publisher,
		Metrics: metrics,
		Logger:  &logger,
	})

	app := &handlers.App{
		Config:        cfg,
		Logger:        logger,
		Jobs:          service,
		Predictions:   predictor,
		Users:         users,
		Images:        images,
		Uploads:       uploader,
		Transfers:     transfers,
		CountryLookup: lookup,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		JWTSecret:     cfg.JWTSecret,
	}
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	// Rows left behind by a stopped process would otherwise never resolve.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		_ = jobs.NewStaleSweeper(jobRepo, cfg.JobStaleAfter(), &logger).Run(sweepCtx, cfg.OrphanCheckInterval)
	}()

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Int("running_jobs", service.Running()).Msg("polling loops still running at shutdown")
	}
	logger.Info().Msg("server stopped")
}

func newBlobStore(ctx context.Context, cfg *infra.Config) (storage.BlobStore, error) {
	if cfg.StorageDriver == "s3" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			UseSSL:        cfg.S3UseSSL,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}

func newTransferStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (transfer.Store, func()) {
	client, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory transfer store")
	}
	if client == nil {
		return transfer.NewMemoryStore(cfg.TransferTTL), func() {}
	}
	return transfer.NewRedisStore(client, cfg.TransferTTL), func() { _ = client.Close() }
}
