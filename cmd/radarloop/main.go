package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/storm-radar-loop/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-radar-loop/internal/adapter/kafka"
	"github.com/couchcryptid/storm-radar-loop/internal/adapter/nexradapi"
	"github.com/couchcryptid/storm-radar-loop/internal/adapter/realearth"
	"github.com/couchcryptid/storm-radar-loop/internal/config"
	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/engine"
	"github.com/couchcryptid/storm-radar-loop/internal/frames"
	"github.com/couchcryptid/storm-radar-loop/internal/layer"
	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/couchcryptid/storm-radar-loop/internal/pipeline"
	"github.com/couchcryptid/storm-radar-loop/internal/playback"
	"github.com/couchcryptid/storm-radar-loop/internal/prefetch"
	"github.com/couchcryptid/storm-radar-loop/internal/scheduler"
	"github.com/couchcryptid/storm-radar-loop/internal/synthetic"
	"github.com/couchcryptid/storm-radar-loop/internal/tilecache"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

const (
	syntheticImagePath = "/api/synthetic/radar.png"
	syntheticDelay     = 1500 * time.Millisecond
	syntheticSize      = 256
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()
	catalog := domain.NewCatalog(cfg.MosaicAPIKey)

	timestamps := realearth.NewCachedLookup(
		realearth.NewClient(cfg.RealEarthBaseURL, cfg.RealEarthTimeout, logger, metrics),
		cfg.RealEarthCacheTTL, logger, metrics,
	)
	resolver := frames.NewResolver(catalog, timestamps, clock, logger, metrics)
	frameClock := frames.NewFrameClock(catalog, clock, cfg.DisplayTimezone)

	tiles, err := tilecache.NewFetcher(cfg.TileCacheSize, cfg.TileTimeout, logger, metrics)
	if err != nil {
		logger.Error("failed to create tile cache", "error", err)
		os.Exit(1)
	}

	// Initialize archive processing (synthetic in demo mode).
	var archive engine.ArchiveProcessor
	var syntheticPNG []byte
	if cfg.DemoMode {
		syntheticPNG, err = synthetic.Render(syntheticSize)
		if err != nil {
			logger.Error("failed to render synthetic image", "error", err)
			os.Exit(1)
		}
		archive = synthetic.NewProcessor(syntheticImagePath, syntheticDelay, clock, logger)
		logger.Info("demo mode enabled, archive processing is synthetic")
	} else {
		archive = nexradapi.NewClient(nexradapi.Options{
			BaseURL:      cfg.NexradAPIURL,
			Timeout:      cfg.NexradTimeout,
			PollInterval: cfg.NexradPollInterval,
			MaxPolls:     cfg.NexradMaxPolls,
		}, clock, logger, metrics)
		logger.Info("nexrad processing enabled", "url", cfg.NexradAPIURL, "max_polls", cfg.NexradMaxPolls)
	}

	eng := engine.New(engine.Options{
		DefaultSite:      cfg.DefaultSite,
		PrefetchMaxTiles: cfg.PrefetchMaxTiles,
	}, engine.Deps{
		Catalog:    catalog,
		Scene:      layer.NewScene(layer.DefaultBaseLayers()...),
		Resolver:   resolver,
		FrameClock: frameClock,
		Prefetcher: prefetch.New(tiles, cfg.PrefetchConcurrency, clock, logger, metrics),
		Playback:   playback.New(clock, cfg.TickInterval, logger, metrics),
		Archive:    archive,
		Clock:      clock,
		Logger:     logger,
		Metrics:    metrics,
	})

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:         cfg.HTTPAddr,
		Engine:       eng,
		Catalog:      catalog,
		Tiles:        tiles,
		SyntheticPNG: syntheticPNG,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start engine.
	go func() {
		if err := eng.Run(ctx); err != nil {
			logger.Error("engine error", "error", err)
		}
	}()

	// Start event publishing and, with Kafka, command intake.
	var reader *kafkaadapter.Reader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		go eng.RunPublisher(ctx, writer)

		p := pipeline.New(reader, eng, logger, metrics)
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("command intake error", "error", err)
			}
		}()
		logger.Info("kafka enabled", "brokers", cfg.KafkaBrokers,
			"events_topic", cfg.KafkaEventsTopic, "commands_topic", cfg.KafkaCommandsTopic)
	} else {
		go eng.RunPublisher(ctx, engine.LogPublisher{Logger: logger})
		logger.Info("kafka disabled, events are logged")
	}

	// Keep latest-timestamp tokens warm.
	sched := scheduler.New(timestamps, catalog.RealEarthProducts(), cfg.RealEarthRefreshInterval, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
