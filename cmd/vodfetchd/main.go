package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vodfetch/internal/adapters/ffmpeg"
	"vodfetch/internal/adapters/httpapi"
	"vodfetch/internal/adapters/listing"
	"vodfetch/internal/adapters/memorybus"
	"vodfetch/internal/adapters/sqlite"
	"vodfetch/internal/app"
	"vodfetch/internal/buildinfo"
	"vodfetch/internal/config"
	"vodfetch/internal/domain"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	addr := flag.String("addr", "", "Listen address, overrides config")
	dbPath := flag.String("db", "", "SQLite path, overrides config")
	flag.Parse()

	cfg, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("app", "vodfetchd").Logger()
	if cfg.Logging.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	log.Logger = logger

	logger.Info().Interface("build", buildinfo.Current()).Str("db", cfg.Server.DBPath).Msg("starting")

	ctx := context.Background()
	db, err := sqlite.Open(ctx, cfg.Server.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open db")
	}
	defer func() { _ = db.Close() }()

	bus := memorybus.New()
	catalog := sqlite.NewCatalogRepository(db.SQL)
	jobsRepo := sqlite.NewJobsRepository(db.SQL)
	followsRepo := sqlite.NewFollowsRepository(db.SQL)

	jobsSvc := app.NewJobService(jobsRepo, bus)
	settingsSvc := app.NewSettingsService(sqlite.NewSettingsRepository(db.SQL))
	followsSvc := app.NewFollowService(followsRepo, catalog, jobsSvc, bus)
	syncSvc := app.NewSyncService(
		logger.With().Str("component", "sync").Logger(),
		listing.NewClient(cfg.Provider.ListingURL),
		catalog,
	)

	settings, err := settingsSvc.Get(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load settings")
	}

	// One limiter caps in-flight segment fetches across all workers; settings
	// updates re-tune it live.
	segmentLimiter := app.NewDynamicLimiter(settings.MaxConcurrentSegments)

	newDriver := func(ctx context.Context) (*app.Driver, error) {
		s, err := settingsSvc.Get(ctx)
		if err != nil {
			return nil, err
		}
		schedCfg := app.DefaultSchedulerConfig()
		schedCfg.Concurrency = s.MaxConcurrentSegments
		schedCfg.MaxAttempts = s.MaxAttemptsPerSegment
		return app.NewDriver(
			logger.With().Str("component", "driver").Logger(),
			catalog,
			app.NewSegmentFetcher(nil, cfg.SegmentTimeout()),
			ffmpeg.NewMuxer().WithBinary(cfg.Download.FFmpegPath),
			segmentLimiter,
			app.DriverConfig{
				Destination:  s.Destination,
				StagingDir:   cfg.Download.StagingDir,
				OutputFormat: s.OutputFormat,
				Scheduler:    schedCfg,
			},
		), nil
	}

	execs := app.NewExecutorRegistry().
		Register("download", app.DownloadExecutor{NewDriver: newDriver}).
		Register("sync", app.SyncExecutor{Sync: syncSvc}).
		Register("noop", app.NoopExecutor{})

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := app.NewWorkerPool(shutdownCtx, logger, jobsRepo, bus, execs, app.DefaultWorkerOptions())
	pool.SetCount(settings.MaxWorkers)
	defer pool.Close()
	logger.Info().Int("workers", pool.Count()).Msg("workers started")

	settingsSvc.OnChange = func(updated domain.Settings) {
		segmentLimiter.SetLimit(updated.MaxConcurrentSegments)
		pool.SetCount(updated.MaxWorkers)
	}

	scheduler := app.NewFollowScheduler(
		logger.With().Str("component", "scheduler").Logger(),
		followsSvc, followsRepo, syncSvc,
	)
	go scheduler.Run(shutdownCtx)

	updater := app.NewDownloadCompletionUpdater(
		logger.With().Str("component", "download-updater").Logger(),
		bus, followsRepo,
	)
	go updater.Run(shutdownCtx)

	srv := httpapi.NewServer(logger, jobsSvc, followsSvc, settingsSvc, catalog, bus)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	shutdownTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownTimeout)
	logger.Info().Msg("bye")
}
