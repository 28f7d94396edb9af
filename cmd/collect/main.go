package main

import (
	"context"
	"flag"
	"log"
	"sync"

	"github.com/joho/godotenv"

	"github.com/Nico-Draagron/clima-negocios/internal/config"
	"github.com/Nico-Draagron/clima-negocios/internal/database"
	"github.com/Nico-Draagron/clima-negocios/internal/weather"
)

var pastDays = flag.Int("past-days", 7, "days of hourly history to backfill")

// Backfills hourly weather observations for every configured location.
// Safe to rerun: inserts are keyed on location and timestamp.
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

	client := weather.NewClient()

	var wg sync.WaitGroup
	for _, location := range cfg.Locations {
		wg.Add(1)
		go func(loc config.Location) {
			defer wg.Done()

			log.Printf("Fetching %d days of hourly data for %s", *pastDays, loc.Name)
			readings, err := client.HistoricalHourly(loc.Name, loc.Latitude, loc.Longitude, *pastDays)
			if err != nil {
				log.Printf("Failed to fetch weather history for %s: %v", loc.Name, err)
				return
			}

			if err := db.InsertWeatherReadings(context.Background(), readings); err != nil {
				log.Printf("Failed to store readings for %s: %v", loc.Name, err)
				return
			}

			log.Printf("✓ Stored %d readings for %s", len(readings), loc.Name)
		}(location)
	}

	wg.Wait()
	log.Println("Weather collection completed. Exiting")
}
