package main

import (
	"context"
	"flag"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/joho/godotenv"

	"github.com/Nico-Draagron/clima-negocios/internal/config"
	"github.com/Nico-Draagron/clima-negocios/internal/database"
	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

var (
	tenantID = flag.Int64("tenant", 1, "tenant to seed sales for")
	days     = flag.Int("days", 365, "days of history to generate")
	location = flag.String("location", "Santa Maria", "location name for the generated rows")
)

// Generates synthetic but weather-consistent history: hot days lift
// sales, rainy days depress them, weekends sell more. Enough structure
// for the forest and the analyzer to find something real.
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

	rng := rand.New(rand.NewSource(42))
	start := time.Now().AddDate(0, 0, -*days)

	var sales []models.Sale
	var readings []models.WeatherReading

	for d := 0; d < *days; d++ {
		day := start.AddDate(0, 0, d)

		// Seasonal temperature cycle with daily noise.
		temp := 22 + 8*math.Sin(2*math.Pi*float64(day.YearDay())/365) + rng.NormFloat64()*3
		humidity := clamp(70-0.8*(temp-22)+rng.NormFloat64()*8, 20, 100)
		wind := clamp(10+rng.NormFloat64()*4, 0, 60)

		rain := 0.0
		if rng.Float64() < 0.25 {
			rain = rng.Float64() * 30
		}

		measuredAt := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.Local)
		readings = append(readings, models.WeatherReading{
			Location:      *location,
			MeasuredAt:    measuredAt,
			Temperature:   round1(temp),
			Humidity:      round1(humidity),
			Precipitation: &rain,
			WindSpeed:     round1(wind),
			Condition:     condition(rain),
		})

		base := 800 + 15*(temp-22) - 4*rain
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			base *= 1.3
		}
		total := math.Max(50, base+rng.NormFloat64()*80)

		category := models.CategoryProduct
		if rng.Float64() < 0.3 {
			category = models.CategoryService
		}
		channel := models.ChannelStore
		if rng.Float64() < 0.4 {
			channel = models.ChannelOnline
		}

		sales = append(sales, models.Sale{
			TenantID:  *tenantID,
			SoldAt:    measuredAt,
			Total:     math.Round(total*100) / 100,
			ItemCount: 20 + rng.Intn(60),
			Category:  category,
			Channel:   channel,
			Location:  *location,
		})
	}

	ctx := context.Background()
	if err := db.InsertWeatherReadings(ctx, readings); err != nil {
		log.Fatalf("Failed to insert weather readings: %v", err)
	}
	if err := db.InsertSales(ctx, sales); err != nil {
		log.Fatalf("Failed to insert sales: %v", err)
	}

	log.Printf("✓ Seeded %d sales and %d weather readings for tenant %d (%s)",
		len(sales), len(readings), *tenantID, *location)
}

func condition(rain float64) string {
	switch {
	case rain > 10:
		return "chuva_forte"
	case rain > 0:
		return "chuva"
	default:
		return "limpo"
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
