package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"brandguard/internal/adapters/collectors"
	httpadapter "brandguard/internal/adapters/http"
	"brandguard/internal/adapters/images"
	pg "brandguard/internal/adapters/postgres"
	"brandguard/internal/config"
	"brandguard/internal/detectors"
	"brandguard/internal/logging"
	"brandguard/internal/ports"
	brandsvc "brandguard/internal/services/brands"
	scansvc "brandguard/internal/services/scanner"
	"brandguard/internal/workers/scanrunner"
)

func main() {
	cfg, err := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pg.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("migration error")
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect error")
	}
	defer db.Close()

	// Wire repositories to services (ports)
	var _ ports.BrandRepository = db
	var _ ports.CandidateRepository = db
	var _ ports.DetectionRepository = db
	var _ ports.JobRepository = db

	brands := brandsvc.New(db)
	scanner := scansvc.New(db, db)

	sources := make(map[string]ports.Collector)
	for source, feedURL := range cfg.Feeds() {
		sources[source] = collectors.NewJSONFeed(feedURL, source, cfg.FetchTimeout)
		log.Info().Str("source", source).Str("url", feedURL).Msg("collector registered")
	}

	names := detectors.NewNameDetector()
	pipeline := &scanrunner.Pipeline{
		Brands:       db,
		Candidates:   db,
		Detections:   db,
		Jobs:         db,
		Collectors:   sources,
		Names:        names,
		Icons:        detectors.NewIconDetector(images.NewHTTPFetcher(cfg.FetchTimeout), nil),
		Certs:        detectors.NewCertificateAnalyzer(),
		Reviews:      detectors.NewReviewFraudDetector(),
		MaxResults:   cfg.MaxResultsPerSource,
		MaxReviews:   cfg.MaxReviewsPerApp,
		Concurrency:  cfg.CandidateConcurrency,
		FetchTimeout: cfg.FetchTimeout,
		Log:          log.With().Str("component", "pipeline").Logger(),
	}

	srv := httpadapter.New(brands, scanner, db, names, log.With().Str("component", "http").Logger())
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	// Optional background job workers
	if cfg.ScanWorkers > 0 {
		scanrunner.Run(ctx, db, pipeline, cfg.ScanWorkers, 500*time.Millisecond,
			log.With().Str("component", "scanrunner").Logger())
		log.Info().Int("workers", cfg.ScanWorkers).Msg("scan workers started")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
	log.Info().Str("addr", cfg.ListenAddr).Msg("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server error")
	}
}
