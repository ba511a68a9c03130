// Package main is the entry point for Lookout, a batch research service for
// securities. Each submitted security fans out into per-dimension analyses
// plus a synthesized overall assessment, with progress streamed to clients.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/lookout/internal/clientdata"
	"github.com/aristath/lookout/internal/clients/generative"
	"github.com/aristath/lookout/internal/clients/marketdata"
	"github.com/aristath/lookout/internal/collectors"
	"github.com/aristath/lookout/internal/config"
	"github.com/aristath/lookout/internal/database"
	"github.com/aristath/lookout/internal/events"
	"github.com/aristath/lookout/internal/reliability"
	"github.com/aristath/lookout/internal/research"
	"github.com/aristath/lookout/internal/scheduler"
	"github.com/aristath/lookout/internal/server"
	"github.com/aristath/lookout/internal/universe"
	"github.com/aristath/lookout/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Lookout")

	// Three-database layout: durable research state, the security catalogue,
	// and an ephemeral cache for market data responses.
	researchDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "research.db"),
		Profile: database.ProfileStandard,
		Name:    "research",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open research database")
	}
	defer researchDB.Close()

	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open universe database")
	}
	defer universeDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	databases := map[string]*database.DB{
		"research": researchDB,
		"universe": universeDB,
		"cache":    cacheDB,
	}

	ctx := context.Background()

	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	if err := cacheRepo.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache schema")
	}

	securities := universe.NewSecurityRepository(universeDB.Conn(), log)
	if err := securities.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize universe schema")
	}

	store := research.NewRepository(researchDB.Conn(), log)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize research schema")
	}

	// External collaborators
	marketData := marketdata.NewClient(cfg.MarketDataURL, cfg.MarketDataAPIKey, cacheRepo, log)
	generator := generative.NewClient(cfg.GenerativeURL, cfg.GenerativeModel, log)
	resolver := universe.NewResolver(securities, marketData, log)

	registry, err := collectors.NewRegistry(marketData, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build collector registry")
	}

	// Event system
	eventBus := events.NewBus(log)
	eventManager := events.NewManager(eventBus, log)

	researchSvc := research.NewService(store, resolver, registry, generator, eventManager, research.Config{
		OuterConcurrency: cfg.OuterConcurrency,
		InnerConcurrency: cfg.InnerConcurrency,
		ProgressInterval: cfg.ProgressInterval,
	}, log)

	// Report archival is optional; without credentials completed batches
	// simply stay in the research database.
	if cfg.Archive.Enabled {
		r2Client, err := reliability.NewR2Client(ctx, reliability.R2Config{
			Endpoint:        cfg.Archive.Endpoint,
			Region:          cfg.Archive.Region,
			AccessKeyID:     cfg.Archive.AccessKey,
			SecretAccessKey: cfg.Archive.SecretKey,
			Bucket:          cfg.Archive.Bucket,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize report archive storage")
		}
		archive := reliability.NewReportArchive(r2Client, researchSvc, log)
		archive.Register(eventBus)
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Report archival enabled")
	}

	// Background jobs
	sched := scheduler.New(log)
	if cfg.ResearchCron != "" {
		job := scheduler.NewResearchRunJob(securities, researchSvc, log)
		if err := sched.AddJob(cfg.ResearchCron, job); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.ResearchCron).Msg("Failed to schedule research runs")
		}
	}
	if err := sched.AddJob("0 15 3 * * *", clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache cleanup")
	}
	if err := sched.AddJob("0 45 3 * * 0", reliability.NewDatabaseMaintenanceJob(databases, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule database maintenance")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Research:  researchSvc,
		Universe:  securities,
		Resolver:  resolver,
		EventBus:  eventBus,
		Databases: databases,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Lookout is running")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := researchSvc.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Research service shutdown did not finish cleanly")
	}

	log.Info().Msg("Shutdown complete")
}
