package forecast

import (
	"math"
	"time"

	"github.com/Nico-Draagron/clima-negocios/internal/features"
	"github.com/Nico-Draagron/clima-negocios/internal/metrics"
	"github.com/Nico-Draagron/clima-negocios/internal/ml"
	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

// Generate walks the date range day by day producing one forecast per
// calendar day, inclusive on both ends. The simulation feeds each day's
// own point estimate back in as the next day's lag-1 value, so error
// compounds over the horizon; that is the intended behavior of an
// iterative forecaster and the interval bounds are how the degradation
// is communicated. Longer lags and rolling features stay seeded from
// the historical tail.
func Generate(model *ml.TrainedModel, req models.ForecastRequest, history []models.Record) ([]models.DayForecast, error) {
	start := dateOnly(req.Start)
	end := dateOnly(req.End)

	if end.Before(start) {
		return nil, &models.ForecastInputError{Reason: "end date before start date"}
	}
	if len(history) == 0 {
		return nil, &models.InsufficientDataError{Stage: "forecast seeding", Rows: 0, Min: 1}
	}

	stats := features.SummarizeHistory(history)
	lastValue := history[len(history)-1].Total

	var out []models.DayForecast
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		var weather *models.DailyWeather
		if req.ForecastWeather != nil {
			if w, ok := req.ForecastWeather[d.Format("2006-01-02")]; ok {
				w := w
				weather = &w
			}
		}

		row := features.PredictionRow(d, weather, stats, lastValue)
		value, lower, upper := model.PredictInterval(features.Vectorize(model.FeatureNames, row))

		out = append(out, models.DayForecast{
			Date:       d,
			Value:      round2(value),
			LowerBound: round2(lower),
			UpperBound: round2(upper),
			Weekday:    d.Weekday().String(),
			Features:   row,
			ModelName:  model.Name,
		})

		// Tomorrow's lag-1 is today's own estimate.
		lastValue = value
	}

	metrics.ForecastsGenerated.WithLabelValues("success").Inc()
	return out, nil
}

// Horizon is the number of calendar days in [start, end] inclusive.
func Horizon(start, end time.Time) int {
	s := dateOnly(start)
	e := dateOnly(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
