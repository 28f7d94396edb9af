package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/Nico-Draagron/clima-negocios/internal/analyzer"
	"github.com/Nico-Draagron/clima-negocios/internal/config"
	"github.com/Nico-Draagron/clima-negocios/internal/database"
	"github.com/Nico-Draagron/clima-negocios/internal/dataset"
)

var (
	tenantID   = flag.Int64("tenant", 1, "tenant to analyze")
	windowDays = flag.Int("days", 90, "trailing window in days")
)

// Prints the weather-sales correlation report for a tenant straight
// from the database, no server or cache involved.
func main() {
	flag.Parse()
	_ = godotenv.Load()

	if _, err := config.Load("./config.yaml"); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	since := time.Now().AddDate(0, 0, -*windowDays)
	builder := dataset.NewBuilder(db, db)
	records, err := builder.Build(context.Background(), *tenantID, since)
	if err != nil {
		log.Fatalf("Failed to build dataset: %v", err)
	}

	report, err := analyzer.New().Analyze(records, *windowDays)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	fmt.Printf("=== Correlation Report: tenant %d, last %d days (%d records) ===\n",
		*tenantID, report.WindowDays, report.Records)
	fmt.Printf("Temperature: %+.3f\n", report.Temperature)
	fmt.Printf("Humidity:    %+.3f\n", report.Humidity)
	fmt.Printf("Rain:        %+.3f\n", report.Rain)
	fmt.Printf("Wind:        %+.3f\n", report.Wind)

	if len(report.ByCategory) > 0 {
		fmt.Println("\nBy category:")
		for name, c := range report.ByCategory {
			fmt.Printf("  %-12s temp=%+.3f humidity=%+.3f rain=%+.3f (%d samples)\n",
				name, c.Temperature, c.Humidity, c.Rain, c.Samples)
		}
	}

	if len(report.Patterns) > 0 {
		fmt.Println("\nPatterns:")
		for _, p := range report.Patterns {
			fmt.Printf("  [%s] %s (%s, confiança %s)\n", p.Type, p.Description, p.Impact, p.Confidence)
		}
	}

	fmt.Println("\nRecommendations:")
	for _, r := range report.Recommendations {
		fmt.Printf("  - %s\n", r)
	}
}
