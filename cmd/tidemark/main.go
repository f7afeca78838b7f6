package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/tidemark-io/tidemark/internal/aggregation"
	"github.com/tidemark-io/tidemark/internal/analytics"
	"github.com/tidemark-io/tidemark/internal/billing"
	"github.com/tidemark-io/tidemark/internal/core/bucket"
	corecfg "github.com/tidemark-io/tidemark/internal/core/config"
	"github.com/tidemark-io/tidemark/internal/core/plan"
	"github.com/tidemark-io/tidemark/internal/core/storage/postgres"
	"github.com/tidemark-io/tidemark/internal/ingestion"
	"github.com/tidemark-io/tidemark/internal/migrations"
	"github.com/tidemark-io/tidemark/internal/server"
)

func main() {
	configPath := flag.String("config", "tidemark.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 2. Run Database Migrations
	// On a short-lived connection: the adapter below validates the schema and
	// prepares statements, both of which need the tables to exist already.
	migrationDB, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		slog.Error("Failed to open database for migrations", "error", err)
		os.Exit(1)
	}
	if err := migrations.RunMigrations(migrationDB, cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	if err := migrationDB.Close(); err != nil {
		slog.Error("Failed to close migration connection", "error", err)
		os.Exit(1)
	}

	// 2.1. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	bucketStore := postgres.NewBucketAdapter(dbAdapter.DB())
	sightingStore := postgres.NewSightingAdapter(dbAdapter.DB())

	// 3. Initialize Plan Catalog
	catalog, err := plan.NewFileSystemCatalog(cfg.Plans.CatalogDir)
	if err != nil {
		slog.Error("Failed to load plan catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("Plan catalog loaded", "plans", catalog.Names())

	// 4. Initialize the Aggregation Pipeline
	conversions := bucket.DefaultConversionSet()
	if len(cfg.Aggregation.ConversionEvents) > 0 {
		conversions = bucket.NewConversionSet(cfg.Aggregation.ConversionEvents...)
	}

	aggregationSvc := aggregation.NewService(dbAdapter, dbAdapter, bucketStore, sightingStore, conversions)
	sweeper := aggregation.NewSweeper(aggregationSvc, sightingStore)
	scheduler := aggregation.NewScheduler(cfg.Retention.EffectiveSweepInterval(), dbAdapter, sweeper)

	// 5. Initialize Services
	ingestionSvc := ingestion.NewService(aggregationSvc, cfg.Server.MaxBodySizeMB)
	aggregationHandler := aggregation.NewHandler(aggregationSvc, sweeper)
	analyticsHandler := analytics.NewHandler(analytics.NewService(dbAdapter, bucketStore, dbAdapter))
	billingHandler := billing.NewHandler(billing.NewService(dbAdapter, catalog))

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	aggregationHandler.RegisterRoutes(srv.Engine)
	analyticsHandler.RegisterRoutes(srv.Engine)
	billingHandler.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start retention scheduler in background if enabled
	if cfg.Retention.Enabled {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Retention scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
