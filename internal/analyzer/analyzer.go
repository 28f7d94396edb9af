package analyzer

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

// MinRecords is the smallest joined dataset worth analyzing.
const MinRecords = 10

// minCategoryRecords: categories at or below this row count are skipped.
const minCategoryRecords = 10

// minPatternSamples: a pattern bucket needs more rows than this to be
// reported.
const minPatternSamples = 5

// Analyzer computes weather-sales correlations and qualitative patterns
// over a joined dataset. It performs no writes and is safe to run
// concurrently across tenants.
type Analyzer struct{}

// New creates an analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze produces the full correlation report. Output is deterministic
// for identical input: same coefficients, same pattern order, same
// recommendations.
func (a *Analyzer) Analyze(records []models.Record, windowDays int) (*models.CorrelationReport, error) {
	if len(records) < MinRecords {
		return nil, &models.InsufficientDataError{Stage: "correlation analysis", Rows: len(records), Min: MinRecords}
	}

	totals := column(records, func(r models.Record) float64 { return r.Total })
	temps := column(records, func(r models.Record) float64 { return r.Temperature })
	hums := column(records, func(r models.Record) float64 { return r.Humidity })
	rains := column(records, func(r models.Record) float64 { return r.Precipitation })
	winds := column(records, func(r models.Record) float64 { return r.WindSpeed })

	report := &models.CorrelationReport{
		Temperature: pearson(totals, temps),
		Humidity:    pearson(totals, hums),
		Rain:        pearson(totals, rains),
		Wind:        pearson(totals, winds),
		ByCategory:  a.byCategory(records),
		WindowDays:  windowDays,
		Records:     len(records),
	}

	report.Patterns = a.detectPatterns(records, totals, temps)
	report.Recommendations = recommend(report)

	return report, nil
}

func (a *Analyzer) byCategory(records []models.Record) map[string]models.CategoryCorrelation {
	grouped := make(map[string][]models.Record)
	for _, r := range records {
		grouped[r.Category] = append(grouped[r.Category], r)
	}

	out := make(map[string]models.CategoryCorrelation)
	for category, rows := range grouped {
		if len(rows) <= minCategoryRecords {
			continue
		}

		totals := column(rows, func(r models.Record) float64 { return r.Total })
		out[category] = models.CategoryCorrelation{
			Temperature: pearson(totals, column(rows, func(r models.Record) float64 { return r.Temperature })),
			Humidity:    pearson(totals, column(rows, func(r models.Record) float64 { return r.Humidity })),
			Rain:        pearson(totals, column(rows, func(r models.Record) float64 { return r.Precipitation })),
			Samples:     len(rows),
		}
	}

	return out
}

// detectPatterns evaluates the heat, rain and optimal-band patterns
// independently, in a fixed order.
func (a *Analyzer) detectPatterns(records []models.Record, totals, temps []float64) []models.Pattern {
	var patterns []models.Pattern

	if p := a.heatPattern(records, totals, temps); p != nil {
		patterns = append(patterns, *p)
	}
	if p := a.rainPattern(records); p != nil {
		patterns = append(patterns, *p)
	}
	if p := a.optimalBandPattern(records, temps); p != nil {
		patterns = append(patterns, *p)
	}

	return patterns
}

// heatPattern compares mean sales above the top temperature quartile
// against the overall mean.
func (a *Analyzer) heatPattern(records []models.Record, totals, temps []float64) *models.Pattern {
	q75 := quantile(temps, 0.75)

	var hotTotals []float64
	for _, r := range records {
		if r.Temperature > q75 {
			hotTotals = append(hotTotals, r.Total)
		}
	}
	if len(hotTotals) <= minPatternSamples {
		return nil
	}

	hotMean := stat.Mean(hotTotals, nil)
	overallMean := stat.Mean(totals, nil)
	if overallMean == 0 || hotMean <= overallMean*1.1 {
		return nil
	}

	confidence := models.ConfidenceMedium
	if hotMean > overallMean*1.2 {
		confidence = models.ConfidenceHigh
	}

	return &models.Pattern{
		Type:        models.PatternHeat,
		Description: "Vendas aumentam em dias quentes",
		Impact:      fmt.Sprintf("+%.1f%%", (hotMean/overallMean-1)*100),
		Confidence:  confidence,
		Threshold:   math.Round(q75*10) / 10,
	}
}

// rainPattern compares mean sales on rainy days against dry days. With
// no rainy rows at all there is nothing to compare and no pattern is
// emitted.
func (a *Analyzer) rainPattern(records []models.Record) *models.Pattern {
	var rainy, dry []float64
	for _, r := range records {
		if r.Precipitation > 0 {
			rainy = append(rainy, r.Total)
		} else {
			dry = append(dry, r.Total)
		}
	}
	if len(rainy) <= minPatternSamples || len(dry) == 0 {
		return nil
	}

	rainMean := stat.Mean(rainy, nil)
	dryMean := stat.Mean(dry, nil)
	if dryMean == 0 || rainMean >= dryMean*0.9 {
		return nil
	}

	confidence := models.ConfidenceMedium
	if rainMean < dryMean*0.8 {
		confidence = models.ConfidenceHigh
	}

	return &models.Pattern{
		Type:        models.PatternRain,
		Description: "Vendas diminuem em dias chuvosos",
		Impact:      fmt.Sprintf("%.1f%%", (rainMean/dryMean-1)*100),
		Confidence:  confidence,
	}
}

// optimalBandPattern buckets temperature into 5 equal-width bins and
// reports the best-selling one. Needs more than 3 distinct non-empty
// bins to be meaningful, and the winning bin needs enough samples.
func (a *Analyzer) optimalBandPattern(records []models.Record, temps []float64) *models.Pattern {
	const bins = 5

	minTemp, maxTemp := temps[0], temps[0]
	for _, t := range temps {
		if t < minTemp {
			minTemp = t
		}
		if t > maxTemp {
			maxTemp = t
		}
	}
	if maxTemp == minTemp {
		return nil
	}

	width := (maxTemp - minTemp) / bins
	sums := make([]float64, bins)
	counts := make([]int, bins)

	for _, r := range records {
		b := int((r.Temperature - minTemp) / width)
		if b >= bins {
			b = bins - 1
		}
		sums[b] += r.Total
		counts[b]++
	}

	nonEmpty := 0
	best := -1
	bestMean := math.Inf(-1)
	for b := 0; b < bins; b++ {
		if counts[b] == 0 {
			continue
		}
		nonEmpty++
		mean := sums[b] / float64(counts[b])
		if mean > bestMean {
			bestMean = mean
			best = b
		}
	}

	if nonEmpty <= 3 || best < 0 || counts[best] <= minPatternSamples {
		return nil
	}

	low := minTemp + float64(best)*width
	high := low + width

	return &models.Pattern{
		Type:        models.PatternOptimalTemp,
		Description: fmt.Sprintf("Vendas são melhores entre %.0f°C e %.0f°C", low, high),
		Impact:      "Faixa ótima identificada",
		Confidence:  models.ConfidenceMedium,
	}
}

// pearson is the correlation coefficient rounded to 3 decimals. A
// zero-variance column has no defined correlation and reports as 0.
func pearson(x, y []float64) float64 {
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return 0
	}
	return math.Round(c*1000) / 1000
}

// quantile computes the linearly interpolated p-quantile, matching the
// convention the historical reports were produced with.
func quantile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

func column(records []models.Record, get func(models.Record) float64) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = get(r)
	}
	return out
}
