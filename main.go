package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/cache"
	"github.com/fleetlens-io/fleetlens-engine/pkg/config"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/handlers"
	"github.com/fleetlens-io/fleetlens-engine/pkg/logging"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/query"
	"github.com/fleetlens-io/fleetlens-engine/pkg/regularization"
	"github.com/fleetlens-io/fleetlens-engine/pkg/repositories"
	"github.com/fleetlens-io/fleetlens-engine/pkg/schema"
	"github.com/fleetlens-io/fleetlens-engine/pkg/services"
	"github.com/fleetlens-io/fleetlens-engine/pkg/translator"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load("config.yaml", Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	db, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := database.RunMigrations(db, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	dimSchema := schema.New(db, logger)
	if err := dimSchema.Create(ctx); err != nil {
		logger.Fatal("Failed to create dimension tables", zap.Error(err))
	}
	if err := dimSchema.VerifyIndexes(ctx); err != nil {
		logger.Fatal("Dimension schema verification failed", zap.Error(err))
	}

	weightTables, err := query.LoadWeightTables(cfg.RoadWear.WeightTablesPath)
	if err != nil {
		logger.Fatal("Failed to load weight tables", zap.Error(err))
	}

	// Repositories
	dimRepo := repositories.NewDimensionRepository()
	mappingRepo := repositories.NewMappingRepository()
	hierarchyRepo := repositories.NewHierarchyRepository()

	// Core services
	filterCache := cache.NewFilterCache(db, dimRepo, mappingRepo, logger)
	engine := regularization.NewEngine(db, mappingRepo, hierarchyRepo, logger)
	trans := translator.New(filterCache)
	executor := query.NewExecutor(db,
		time.Duration(cfg.Query.TimeoutSeconds)*time.Second,
		cfg.Query.ExplainBeforeRun, logger)

	queryService := services.NewQueryService(trans, executor, filterCache,
		cfg.Regularization, weightTables, logger)
	mappingService := services.NewMappingService(db, engine, dimRepo,
		filterCache, cfg.Regularization, logger)

	// Warm the vehicle cache so first queries do not pay the build.
	if err := filterCache.Initialize(ctx, models.ScopeVehicle); err != nil {
		logger.Warn("Initial cache warm failed; queries will 409 until initialized",
			zap.Error(err))
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewQueriesHandler(queryService, logger).RegisterRoutes(mux)
	handlers.NewMappingsHandler(mappingService, logger).RegisterRoutes(mux)
	handlers.NewCacheHandler(filterCache, logger).RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting fleetlens-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.String("database", db.Path()))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
