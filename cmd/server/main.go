package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/Nico-Draagron/clima-negocios/internal/cache"
	"github.com/Nico-Draagron/clima-negocios/internal/config"
	"github.com/Nico-Draagron/clima-negocios/internal/database"
	"github.com/Nico-Draagron/clima-negocios/internal/dataset"
	"github.com/Nico-Draagron/clima-negocios/internal/engine"
	"github.com/Nico-Draagron/clima-negocios/internal/jobs"
	"github.com/Nico-Draagron/clima-negocios/internal/ml"
	"github.com/Nico-Draagron/clima-negocios/internal/registry"
	"github.com/Nico-Draagron/clima-negocios/internal/server"
	"github.com/Nico-Draagron/clima-negocios/internal/weather"
)

func main() {
	// .env is optional, env vars win either way
	_ = godotenv.Load()

	cfg, err := config.Load("./config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	redisCache := cache.New(config.GetRedisConfig())
	defer redisCache.Close()

	reg, err := registry.New(db, cfg.Engine.ModelDir)
	if err != nil {
		log.Fatalf("Failed to create model registry: %v", err)
	}

	// Warm the cache with every in-production model before serving.
	if err := reg.LoadProduction(context.Background()); err != nil {
		log.Printf("Warning: failed to load production models: %v", err)
	}

	queue := jobs.NewQueue(cfg.Engine.Workers, cfg.Engine.Workers*4)
	defer queue.Shutdown()

	builder := dataset.NewBuilder(db, db)
	eng := engine.New(builder, ml.NewTrainer(), reg, db, redisCache, queue, engine.Options{
		MinTrainingSamples: cfg.Engine.MinTrainingSamples,
		LookbackMonths:     cfg.Engine.LookbackMonths,
		RetrainGuardTTL:    time.Duration(cfg.Engine.RetrainGuardMins) * time.Minute,
		CacheTTL:           time.Duration(cfg.Engine.CacheTTLSecs) * time.Second,
		Forecaster:         weather.NewClient(),
		Locations:          cfg.Locations,
	})

	if cfg.Engine.RetrainCron != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.Engine.RetrainCron, func() {
			ctx := context.Background()
			tenants, err := db.TenantsWithSales(ctx)
			if err != nil {
				log.Printf("Retrain pass skipped, failed to list tenants: %v", err)
				return
			}
			log.Printf("Scheduled retrain pass starting for %d tenants", len(tenants))
			eng.RetrainAll(ctx, tenants)
		})
		if err != nil {
			log.Fatalf("Invalid retrain_cron expression %q: %v", cfg.Engine.RetrainCron, err)
		}
		c.Start()
		defer c.Stop()
	}

	httpServer := server.NewServer(eng)
	log.Println("Starting server on :8080")
	if err := httpServer.Start(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
