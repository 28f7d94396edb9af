package dataset

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

// SalesSource supplies historical sales rows for a tenant.
type SalesSource interface {
	SalesHistory(ctx context.Context, tenantID int64, since time.Time) ([]models.Sale, error)
}

// WeatherSource supplies historical weather readings for a location.
type WeatherSource interface {
	WeatherHistory(ctx context.Context, location string, since time.Time) ([]models.WeatherReading, error)
}

// Builder joins sales history with weather observations into the table
// the feature engineer and the analyzer consume. Pure read/transform: it
// never writes back.
type Builder struct {
	sales   SalesSource
	weather WeatherSource
}

// NewBuilder creates a dataset builder over the given sources.
func NewBuilder(sales SalesSource, weather WeatherSource) *Builder {
	return &Builder{sales: sales, weather: weather}
}

// Build returns the joined sales+weather table for a tenant since the
// given time, chronologically ascending. Each sale is matched to the
// weather reading at its location on the same calendar day with the
// closest timestamp. Missing temperature, humidity and wind are imputed
// with the column mean; missing precipitation becomes 0, since absence
// of rain is data, not a gap.
func (b *Builder) Build(ctx context.Context, tenantID int64, since time.Time) ([]models.Record, error) {
	sales, err := b.sales.SalesHistory(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales history: %w", err)
	}
	if len(sales) == 0 {
		return nil, nil
	}

	// One weather fetch per distinct location.
	readingsByLocation := make(map[string][]models.WeatherReading)
	for _, s := range sales {
		if _, ok := readingsByLocation[s.Location]; ok {
			continue
		}
		readings, err := b.weather.WeatherHistory(ctx, s.Location, since)
		if err != nil {
			return nil, fmt.Errorf("failed to load weather history for %s: %w", s.Location, err)
		}
		readingsByLocation[s.Location] = readings
	}

	index := buildDayIndex(readingsByLocation)

	records := make([]models.Record, 0, len(sales))
	matched := make([]bool, len(sales))

	for i, s := range sales {
		rec := models.Record{
			SoldAt:    s.SoldAt,
			Total:     s.Total,
			ItemCount: s.ItemCount,
			Category:  s.Category,
			Channel:   s.Channel,
			Location:  s.Location,
			IsHoliday: s.IsHoliday,
		}

		if reading := closestReading(index, s.Location, s.SoldAt); reading != nil {
			rec.Temperature = reading.Temperature
			rec.Humidity = reading.Humidity
			rec.WindSpeed = reading.WindSpeed
			rec.Condition = reading.Condition
			if reading.Precipitation != nil {
				rec.Precipitation = *reading.Precipitation
			}
			matched[i] = true
		}

		records = append(records, rec)
	}

	imputeMissing(records, matched)

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SoldAt.Before(records[j].SoldAt)
	})

	return records, nil
}

type dayKey struct {
	location string
	day      string
}

func buildDayIndex(byLocation map[string][]models.WeatherReading) map[dayKey][]models.WeatherReading {
	index := make(map[dayKey][]models.WeatherReading)
	for location, readings := range byLocation {
		for _, r := range readings {
			key := dayKey{location: location, day: r.MeasuredAt.Format("2006-01-02")}
			index[key] = append(index[key], r)
		}
	}
	return index
}

// closestReading picks the same-day reading nearest to the sale time, so
// an exact hour match wins and otherwise the temporally closest one does.
func closestReading(index map[dayKey][]models.WeatherReading, location string, at time.Time) *models.WeatherReading {
	candidates := index[dayKey{location: location, day: at.Format("2006-01-02")}]
	if len(candidates) == 0 {
		return nil
	}

	best := 0
	bestDelta := math.Abs(candidates[0].MeasuredAt.Sub(at).Seconds())
	for i := 1; i < len(candidates); i++ {
		delta := math.Abs(candidates[i].MeasuredAt.Sub(at).Seconds())
		if delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}

	return &candidates[best]
}

// imputeMissing fills unmatched rows with the mean of the matched ones.
// Precipitation stays 0 for unmatched rows.
func imputeMissing(records []models.Record, matched []bool) {
	var tempSum, humSum, windSum float64
	count := 0
	for i := range records {
		if matched[i] {
			tempSum += records[i].Temperature
			humSum += records[i].Humidity
			windSum += records[i].WindSpeed
			count++
		}
	}
	if count == 0 {
		return
	}

	tempMean := tempSum / float64(count)
	humMean := humSum / float64(count)
	windMean := windSum / float64(count)

	for i := range records {
		if !matched[i] {
			records[i].Temperature = tempMean
			records[i].Humidity = humMean
			records[i].WindSpeed = windMean
		}
	}
}
