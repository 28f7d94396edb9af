package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/Nico-Draagron/clima-negocios/internal/config"
	"github.com/Nico-Draagron/clima-negocios/internal/database"
	"github.com/Nico-Draagron/clima-negocios/internal/dataset"
	"github.com/Nico-Draagron/clima-negocios/internal/features"
	"github.com/Nico-Draagron/clima-negocios/internal/ml"
	"github.com/Nico-Draagron/clima-negocios/internal/models"
	"github.com/Nico-Draagron/clima-negocios/internal/registry"
)

var tenantID = flag.Int64("tenant", 1, "tenant to train a model for")

// One-shot offline training run. Trains, registers and reports the
// scores for a single tenant without going through the server.
func main() {
	flag.Parse()
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

	ctx := context.Background()
	since := time.Now().AddDate(0, -cfg.Engine.LookbackMonths, 0)

	builder := dataset.NewBuilder(db, db)
	records, err := builder.Build(ctx, *tenantID, since)
	if err != nil {
		log.Fatalf("Failed to build dataset: %v", err)
	}
	if len(records) < cfg.Engine.MinTrainingSamples {
		log.Fatalf("Not enough data for tenant %d: %d rows, need %d",
			*tenantID, len(records), cfg.Engine.MinTrainingSamples)
	}

	matrix, err := features.Build(records)
	if err != nil {
		log.Fatalf("Failed to build features: %v", err)
	}

	modelName := registry.ModelName(models.ForecastDailySales, *tenantID)
	model, err := ml.NewTrainer().Train(matrix, modelName)
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}

	reg, err := registry.New(db, cfg.Engine.ModelDir)
	if err != nil {
		log.Fatalf("Failed to create model registry: %v", err)
	}
	if err := reg.Register(ctx, model); err != nil {
		log.Fatalf("Failed to register model: %v", err)
	}

	log.Printf("✓ Model %s registered (MAE=%.2f RMSE=%.2f R2=%.3f, %d samples)",
		model.Name, model.Metrics.MAE, model.Metrics.RMSE, model.Metrics.R2, model.Metrics.Samples)
}
